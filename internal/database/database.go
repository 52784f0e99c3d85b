package database

import (
	"time"

	"github.com/mdouchement/x402vault/internal/model"
	"github.com/pkg/errors"
)

// Sentinel errors returned by the transactional operations.
var (
	// ErrSessionUsed is returned when an upload session is completed twice.
	ErrSessionUsed = errors.New("upload session already used")
	// ErrReadsExhausted is returned when a read is consumed on an object
	// whose read-count bound is already reached.
	ErrReadsExhausted = errors.New("maximum read count reached")
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		UploadInteraction
		ObjectInteraction
	}

	// An UploadInteraction defines all the methods used to interact with an upload session record.
	UploadInteraction interface {
		FindUpload(uploadID string) (*model.Upload, error)
		FindUploadByObjectKey(key string) (*model.Upload, error)
		// CompleteUpload marks the session used and creates the object,
		// in a single transaction. The object creation is an
		// insert-if-absent on the object key so a concurrent retry cannot
		// create two conflicting objects. Returns ErrSessionUsed if the
		// session was completed in the meantime.
		CompleteUpload(session *model.Upload, object *model.Object) error
	}

	// An ObjectInteraction defines all the methods used to interact with an object record.
	ObjectInteraction interface {
		AllObjects() ([]*model.Object, error)
		ListObjects(filter ObjectFilter) ([]*model.Object, error)
		FindObjectByKey(key string) (*model.Object, error)
		DeleteObject(id string) error
		// ConsumeRead increments the object's read count in a single
		// transaction. When the increment reaches the read-count bound,
		// the object is flipped to expired and deleteAfter is set to
		// now+ttl so the last signed URL outlives the object. Returns
		// ErrReadsExhausted when the bound was already reached.
		//
		// The guarantee is transactional for a single instance sharing
		// the database file; it is advisory across instances.
		ConsumeRead(key string, ttl time.Duration) (*model.Object, error)
	}

	// An ObjectFilter restricts and pages ListObjects.
	ObjectFilter struct {
		IncludeExpired bool
		OwnerAddress   string
		Limit          int
		Offset         int
	}
)
