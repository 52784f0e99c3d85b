package service

import (
	"context"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/pkg/errors"
)

// An ObjectDestroyer removes an object's blob and metadata row. The blob
// delete is best-effort: an orphaned blob is logged, never a reason to
// keep the row.
type ObjectDestroyer struct {
	logger   logger.Logger
	database database.Client
	storage  storage.Backend
	object   *model.Object
}

// NewObjectDestroyer returns a new ObjectDestroyer.
func NewObjectDestroyer(log logger.Logger, database database.Client, storage storage.Backend, object *model.Object) *ObjectDestroyer {
	return &ObjectDestroyer{
		logger:   log,
		database: database,
		storage:  storage,
		object:   object,
	}
}

// Destroy removes the blob then the row.
func (s *ObjectDestroyer) Destroy(ctx context.Context) error {
	if s.object.StorageKey != "" {
		if err := s.storage.Remove(ctx, s.object.StorageKey); err != nil {
			s.logger.WithPrefix("[destroyer]").Errorf("orphaned blob %s: %s", s.object.StorageKey, err)
		}
	}

	err := s.database.DeleteObject(s.object.ID)
	return errors.Wrap(err, "ObjectDestroyer object")
}
