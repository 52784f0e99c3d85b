// Package payment implements the x402 payment protocol gate: it turns an
// HTTP request into a 402 challenge or, given a valid payment proof, into
// a verified receipt attached to the request context.
package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Protocol constants. Only the exact scheme on Solana is supported.
const (
	Version       = "0.0.1"
	SchemeExact   = "exact"
	NetworkSolana = "solana"

	Header         = "X-Payment"
	ResponseHeader = "X-Payment-Response"
)

type (
	// A Challenge is the 402 response body listing acceptable payments.
	Challenge struct {
		Version      string        `json:"version"`
		Requirements []Requirement `json:"requirements"`
		Error        string        `json:"error"`
	}

	// A Requirement describes one acceptable payment. Built per-request,
	// never persisted.
	Requirement struct {
		Scheme      string `json:"scheme"`
		Network     string `json:"network"`
		MaxAmount   string `json:"maxAmount"`
		Recipient   string `json:"recipient"`
		Asset       string `json:"asset"`
		Mint        string `json:"mint"`
		Timeout     int    `json:"timeout"`
		Resource    string `json:"resource"`
		Description string `json:"description"`
	}

	// A Proof is the client-supplied payment proof, opaque until verified.
	Proof struct {
		X402Version int    `json:"x402Version"`
		Scheme      string `json:"scheme"`
		Network     string `json:"network"`
		Signature   string `json:"signature"`
	}

	// A Receipt is the server-derived outcome of a verified payment.
	// Lifetime is one request.
	Receipt struct {
		Verified  bool    `json:"verified"`
		Signature string  `json:"signature"`
		Amount    float64 `json:"amount"`
		Timestamp int64   `json:"timestamp"`
		Token     string  `json:"token"`
		Payer     string  `json:"payer,omitempty"`
	}
)

// DecodeProof parses the X-Payment header value: base64 of a JSON object.
func DecodeProof(header string) (*Proof, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode payment header")
	}

	var proof Proof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, errors.Wrap(err, "could not parse payment proof")
	}
	return &proof, nil
}

// EncodeProof is the inverse of DecodeProof, used by clients and tests.
func EncodeProof(proof *Proof) string {
	raw, _ := json.Marshal(proof)
	return base64.StdEncoding.EncodeToString(raw)
}

// FormatAmount renders a token amount the way challenges advertise it.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", math.Round(amount*100)/100)
}
