package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mdouchement/x402vault/internal/model"
	"github.com/pkg/errors"
)

// EffectiveStatus computes the status an object should report right now,
// regardless of what is persisted. Metadata must never present a resource
// as available when its time or read-count bound is already exceeded; the
// reaper eventually persists the same conclusion.
func EffectiveStatus(m *model.Object, now time.Time) string {
	if m.Status == model.ObjectExpired {
		return model.ObjectExpired
	}
	if m.TimeExpired(now) || m.ReadsExhausted() {
		return model.ObjectExpired
	}
	return model.ObjectActive
}

// SetupObjectBounds configures the object lifetime bounds according to the
// upload request headers. X-Delete-After wins over X-Delete-At.
func SetupObjectBounds(m *model.Object, r *http.Request) error {
	m.ExpiresAt = time.Time{} // Reset
	m.MaxReads = 0

	after := r.Header.Get("X-Delete-After")
	if after != "" {
		seconds, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return errors.Wrap(err, "X-Delete-After")
		}
		m.ExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	}

	at := r.Header.Get("X-Delete-At")
	if after == "" && at != "" {
		unix, err := strconv.ParseInt(at, 10, 64)
		if err != nil {
			return errors.Wrap(err, "X-Delete-At")
		}
		m.ExpiresAt = time.Unix(unix, 0)
	}

	reads := r.Header.Get("X-Max-Reads")
	if reads != "" {
		n, err := strconv.Atoi(reads)
		if err != nil || n < 1 {
			return errors.New("X-Max-Reads: must be a positive integer")
		}
		m.MaxReads = n
	}

	return nil
}
