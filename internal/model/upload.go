package model

import "time"

// An Upload represents a paid, single-use upload session.
// It is kept forever as an audit record of the payment, even after the
// resulting object is deleted.
type Upload struct {
	Base `json:",inline" storm:"inline"`

	UploadID  string `json:"upload_id"  storm:"unique"`
	ObjectKey string `json:"object_key" storm:"unique"`

	Filename         string    `json:"filename"`
	ContentType      string    `json:"content_type"`
	MaxBytes         int64     `json:"max_bytes"`
	PaidAmount       float64   `json:"paid_amount"`
	PaymentSignature string    `json:"payment_signature"`
	UploaderAddress  string    `json:"uploader_address"`
	ExpiresAt        time.Time `json:"expires_at" storm:"index"`
	Used             bool      `json:"used"`

	// Filled once the physical upload completed.
	ActualSize     int64     `json:"actual_size"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
	CompletedAt    time.Time `json:"completed_at"`
	StorageKey     string    `json:"storage_key"`
}

// Expired returns true if the session can no longer accept an upload.
func (m *Upload) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
