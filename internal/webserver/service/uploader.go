package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// ErrTooLarge is returned the instant a body exceeds its byte cap.
var ErrTooLarge = errors.New("payload too large")

// A BoundedBody is a fully received upload body with its checksum.
type BoundedBody struct {
	Bytes          []byte
	Size           int64
	ChecksumSHA256 string
}

// ReadBounded consumes r while enforcing the byte cap incrementally: the
// read is aborted the moment the running count exceeds max, not after the
// fact. The checksum is computed on the fly.
func ReadBounded(r io.Reader, max int64) (*BoundedBody, error) {
	var buf bytes.Buffer
	h := sha256.New()
	w := io.MultiWriter(&buf, h)

	chunk := make([]byte, 32*1024)
	var received int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			received += int64(n)
			if received > max {
				return nil, ErrTooLarge
			}
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return nil, errors.Wrap(werr, "could not buffer body")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "could not read body")
		}
	}

	return &BoundedBody{
		Bytes:          buf.Bytes(),
		Size:           received,
		ChecksumSHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
