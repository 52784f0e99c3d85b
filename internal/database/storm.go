package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Upload{}); err != nil {
		return errors.Wrap(err, "could not init upload index")
	}

	err = db.Init(&model.Object{})
	return errors.Wrap(err, "could not init object index")
}

// StormReIndex reindexes Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Upload{}); err != nil {
		return errors.Wrap(err, "could not ReIndex uploads")
	}

	err = db.ReIndex(&model.Object{})
	return errors.Wrap(err, "could not ReIndex objects")
}

// StormOpen opens the Storm database and returns a Client.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	prepare(m)
	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

func prepare(m model.Model) {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}
}

//
// Upload
//

func (c *strm) FindUpload(uploadID string) (*model.Upload, error) {
	var upload model.Upload
	err := c.db.One("UploadID", uploadID, &upload)
	return &upload, errors.Wrap(err, "could not find upload")
}

func (c *strm) FindUploadByObjectKey(key string) (*model.Upload, error) {
	var upload model.Upload
	err := c.db.One("ObjectKey", key, &upload)
	return &upload, errors.Wrap(err, "could not find upload")
}

func (c *strm) CompleteUpload(session *model.Upload, object *model.Object) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var current model.Upload
	if err := tx.One("UploadID", session.UploadID, &current); err != nil {
		return errors.Wrap(err, "could not find upload")
	}
	if current.Used {
		return ErrSessionUsed
	}

	prepare(session)
	if err := tx.Save(session); err != nil {
		return errors.Wrap(err, "could not save upload")
	}

	// Insert-if-absent keeps a client retry from creating two conflicting
	// objects for the same key.
	var existing model.Object
	err = tx.One("Key", object.Key, &existing)
	switch {
	case err == nil:
		*object = existing
	case errors.Cause(err) == storm.ErrNotFound:
		prepare(object)
		if err := tx.Save(object); err != nil {
			return errors.Wrap(err, "could not save object")
		}
	default:
		return errors.Wrap(err, "could not find object")
	}

	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

//
// Object
//

func (c *strm) AllObjects() ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.db.All(&objects)
	return objects, errors.Wrap(err, "could not get all objects")
}

func (c *strm) ListObjects(filter ObjectFilter) ([]*model.Object, error) {
	matchers := []q.Matcher{q.True()}
	if !filter.IncludeExpired {
		matchers = append(matchers, q.Eq("Status", model.ObjectActive))
	}
	if filter.OwnerAddress != "" {
		matchers = append(matchers, q.Eq("OwnerAddress", filter.OwnerAddress))
	}

	query := c.db.Select(matchers...).OrderBy("UploadedAt").Reverse()
	if filter.Offset > 0 {
		query = query.Skip(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	objects := make([]*model.Object, 0)
	err := query.Find(&objects)
	if errors.Cause(err) == storm.ErrNotFound {
		return objects, nil
	}
	return objects, errors.Wrap(err, "could not list objects")
}

func (c *strm) FindObjectByKey(key string) (*model.Object, error) {
	var object model.Object
	err := c.db.One("Key", key, &object)
	return &object, errors.Wrap(err, "could not find object")
}

func (c *strm) DeleteObject(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.Object{})
	return errors.Wrap(err, "could not delete object")
}

func (c *strm) ConsumeRead(key string, ttl time.Duration) (*model.Object, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var object model.Object
	if err := tx.One("Key", key, &object); err != nil {
		return nil, errors.Wrap(err, "could not find object")
	}

	if object.Status == model.ObjectExpired || object.ReadsExhausted() {
		return nil, ErrReadsExhausted
	}

	object.ReadCount++
	if object.ReadsExhausted() {
		object.Status = model.ObjectExpired
		object.DeleteAfter = time.Now().Add(ttl)
	}

	prepare(&object)
	if err := tx.Save(&object); err != nil {
		return nil, errors.Wrap(err, "could not save object")
	}

	return &object, errors.Wrap(tx.Commit(), "could not commit transaction")
}
