// Package pricing computes the ceiling price of an upload: the client
// pre-commits to a size envelope and is billed for that envelope, rounded
// up to whole gigabytes, regardless of the eventual actual size.
package pricing

import "math"

// MB is the size unit of the declared ceilings.
const MB = 1024 * 1024

// A Pricer prices upload ceilings.
type Pricer struct {
	// MaxSizeMB is the hard ceiling an upload can declare.
	MaxSizeMB int
	// PerGBRate is the price of one billed gigabyte, in token UI units.
	PerGBRate float64
}

// DerivePerGBRate turns a per-MB rate into the per-GB rate.
func DerivePerGBRate(perMBRate float64) float64 {
	return perMBRate * 1024
}

// ClampMB bounds the requested ceiling to [1, MaxSizeMB]. A zero or
// negative request falls back to the hard maximum.
func (p Pricer) ClampMB(requestedMB int) int {
	if requestedMB <= 0 {
		return p.MaxSizeMB
	}
	if requestedMB > p.MaxSizeMB {
		return p.MaxSizeMB
	}
	return requestedMB
}

// CeilingPrice prices the given ceiling: whole gigabytes, rounded up,
// minimum one billed gigabyte. Rounded to 2 decimals.
func (p Pricer) CeilingPrice(maxSizeMB int) float64 {
	gb := int(math.Ceil(float64(maxSizeMB) / 1024))
	if gb < 1 {
		gb = 1
	}
	return math.Round(p.PerGBRate*float64(gb)*100) / 100
}
