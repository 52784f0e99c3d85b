package model

import "time"

// Object statuses. ObjectExpired is monotonic: an expired object never
// becomes active again.
const (
	ObjectActive  = "active"
	ObjectExpired = "expired"
)

// An Object represents the blob stored on the storage backend.
type Object struct {
	Base `json:",inline" storm:"inline"`

	Key string `json:"key" storm:"unique"`

	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`

	// Lifetime bounds. Zero values mean unbounded.
	ExpiresAt   time.Time `json:"expires_at"   storm:"index"`
	MaxReads    int       `json:"max_reads"`
	ReadCount   int       `json:"read_count"`
	Status      string    `json:"status"       storm:"index"`
	DeleteAfter time.Time `json:"delete_after"`

	StorageKey     string `json:"storage_key"`
	ChecksumSHA256 string `json:"checksum_sha256"`

	OwnerAddress     string  `json:"owner_address"`
	PaymentSignature string  `json:"payment_signature"`
	PricePaid        float64 `json:"price_paid"`
}

// TimeExpired returns true if the object's time bound has elapsed.
func (m *Object) TimeExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// ReadsExhausted returns true if the object's read-count bound is reached.
func (m *Object) ReadsExhausted() bool {
	return m.MaxReads > 0 && m.ReadCount >= m.MaxReads
}

// RemainingReads returns the number of reads left, or -1 when unbounded.
func (m *Object) RemainingReads() int {
	if m.MaxReads <= 0 {
		return -1
	}
	remaining := m.MaxReads - m.ReadCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
