package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/payment"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver/serializer"
	"github.com/mdouchement/x402vault/internal/webserver/service"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
	"github.com/pkg/errors"
)

type object struct {
	logger         logger.Logger
	db             database.Client
	storage        storage.Backend
	signedURLTTL   time.Duration
	restrictDelete bool
}

// Show returns the metadata descriptor. No payment required.
func (h *object) Show(c echo.Context) error {
	c.Set("handler_method", "object.Show")

	o, err := h.load(c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Object(o, time.Now()))
}

// List returns a page of objects. Expired ones are excluded unless asked.
func (h *object) List(c echo.Context) error {
	c.Set("handler_method", "object.List")

	filter := database.ObjectFilter{
		IncludeExpired: c.QueryParam("includeExpired") == "true",
		OwnerAddress:   c.QueryParam("uploader"),
		Limit:          50,
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	objects, err := h.db.ListObjects(filter)
	if err != nil {
		return errors.Wrap(err, "object.List")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"files":  serializer.Objects(objects, time.Now()),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// View authorizes one paid read: it consumes a read grant and redirects to
// a short-lived signed URL of the blob. Expiry transitions are applied
// lazily on the way.
func (h *object) View(c echo.Context) error {
	c.Set("handler_method", "object.View")

	o, err := h.load(c.Param("id"))
	if err != nil {
		return err
	}

	now := time.Now()
	switch {
	case o.Status == model.ObjectExpired:
		return weberror.New(http.StatusGone, "file has expired")
	case o.TimeExpired(now):
		h.expire(o)
		return weberror.New(http.StatusGone, "file has expired")
	case o.ReadsExhausted():
		h.expire(o)
		return weberror.New(http.StatusGone, "maximum read limit reached")
	}

	o, err = h.db.ConsumeRead(o.Key, h.signedURLTTL)
	if errors.Is(err, database.ErrReadsExhausted) {
		return weberror.New(http.StatusGone, "maximum read limit reached")
	}
	if err != nil {
		return errors.Wrap(err, "object.View")
	}

	url, err := h.storage.SignedURL(c.Request().Context(), o.StorageKey, h.signedURLTTL)
	if err != nil {
		h.logger.WithPrefix("[object]").Error(err)
		return weberror.New(http.StatusBadGateway, "file storage not available")
	}

	return c.Redirect(http.StatusFound, url)
}

// Delete removes the object: blob best-effort, metadata row always. When
// owner-restricted deletion is enabled and the object records an owner,
// the payer of the gating payment must match.
func (h *object) Delete(c echo.Context) error {
	c.Set("handler_method", "object.Delete")

	o, err := h.load(c.Param("id"))
	if err != nil {
		return err
	}

	if h.restrictDelete && o.OwnerAddress != "" {
		receipt := payment.ReceiptFrom(c)
		if receipt == nil || receipt.Payer != o.OwnerAddress {
			return weberror.New(http.StatusForbidden, "only the uploader can delete this file")
		}
	}

	destroyer := service.NewObjectDestroyer(h.logger, h.db, h.storage, o)
	if err := destroyer.Destroy(c.Request().Context()); err != nil {
		return errors.Wrap(err, "object.Delete")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"objectId": o.Key,
	})
}

func (h *object) load(key string) (*model.Object, error) {
	o, err := h.db.FindObjectByKey(key)
	if err != nil {
		if h.db.IsNotFound(err) {
			return nil, weberror.New(http.StatusNotFound, "file not found")
		}
		return nil, errors.Wrap(err, "object.load")
	}
	return o, nil
}

// expire persists a lazy active->expired transition. Failure only gets
// logged: the caller already decided the object is gone.
func (h *object) expire(o *model.Object) {
	o.Status = model.ObjectExpired
	if err := h.db.Save(o); err != nil {
		h.logger.WithPrefix("[object]").Error(err)
	}
}
