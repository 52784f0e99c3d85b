package webserver

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/payment"
	"github.com/mdouchement/x402vault/internal/pricing"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver/serializer"
	"github.com/mdouchement/x402vault/internal/webserver/service"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
	"github.com/pkg/errors"
)

// sessionTTL is the window an upload slot stays open after payment.
const sessionTTL = 15 * time.Minute

type upload struct {
	logger  logger.Logger
	db      database.Client
	storage storage.Backend
	gate    *payment.Gate
	pricer  pricing.Pricer
}

type initiateParams struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	MaxSizeMB   int    `json:"maxSizeMB"`
}

// Initiate prices an upload ceiling and, once paid, reserves a
// single-use, time-boxed upload slot.
func (h *upload) Initiate(c echo.Context) error {
	c.Set("handler_method", "upload.Initiate")

	var params initiateParams
	if err := c.Bind(&params); err != nil {
		return weberror.New(http.StatusBadRequest, "invalid request body")
	}
	if params.Filename == "" || params.ContentType == "" {
		return weberror.New(http.StatusBadRequest, "filename and contentType are required")
	}

	cappedMB := h.pricer.ClampMB(params.MaxSizeMB)
	amount := h.pricer.CeilingPrice(cappedMB)

	receipt, err := h.gate.Clear(c, amount)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil // 402 challenge rendered
	}

	session := &model.Upload{
		UploadID:         randomHex(16),
		ObjectKey:        fmt.Sprintf("obj_%d_%s", time.Now().UnixMilli(), randomHex(6)),
		Filename:         path.Base(params.Filename),
		ContentType:      params.ContentType,
		MaxBytes:         int64(cappedMB) * pricing.MB,
		PaidAmount:       amount,
		PaymentSignature: receipt.Signature,
		UploaderAddress:  receipt.Payer,
		ExpiresAt:        time.Now().Add(sessionTTL),
	}
	if err := h.db.Save(session); err != nil {
		return weberror.New(http.StatusInternalServerError, "failed to initiate upload")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"method":           http.MethodPut,
		"uploadUrl":        "/uploads/upload/" + session.UploadID,
		"objectKey":        session.ObjectKey,
		"uploadExpiresAt":  session.ExpiresAt,
		"contentType":      session.ContentType,
		"maxBytes":         session.MaxBytes,
		"paymentSignature": session.PaymentSignature,
		"verifyUrl":        "/uploads/verify/" + session.ObjectKey,
		"fileMetaUrl":      "/objects/" + session.ObjectKey,
	})
}

// Upload fulfills a reserved slot with the physical bytes. The slot's
// declared constraints (size, content type, checksum) are enforced before
// anything is persisted.
func (h *upload) Upload(c echo.Context) error {
	c.Set("handler_method", "upload.Upload")

	session, err := h.db.FindUpload(c.Param("id"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return weberror.New(http.StatusNotFound, "upload session not found")
		}
		return errors.Wrap(err, "upload.Upload")
	}

	if session.Used {
		return weberror.New(http.StatusConflict, "upload already completed for this URL")
	}
	if session.Expired(time.Now()) {
		return weberror.New(http.StatusGone, "upload URL expired")
	}

	if provided := c.Request().Header.Get(echo.HeaderContentType); provided != "" {
		mediatype, _, err := mime.ParseMediaType(provided)
		if err != nil || mediatype != session.ContentType {
			return weberror.New(http.StatusUnsupportedMediaType, "unsupported content type")
		}
	}

	declared := c.Request().ContentLength
	if declared <= 0 {
		return weberror.New(http.StatusLengthRequired, "Content-Length required")
	}
	if declared > session.MaxBytes {
		return weberror.New(http.StatusRequestEntityTooLarge, "payload too large")
	}

	object := &model.Object{
		Key:    session.ObjectKey,
		Status: model.ObjectActive,
	}
	if err := service.SetupObjectBounds(object, c.Request()); err != nil {
		return weberror.New(http.StatusBadRequest, err.Error())
	}

	body, err := service.ReadBounded(c.Request().Body, session.MaxBytes)
	if errors.Is(err, service.ErrTooLarge) {
		// Abort the connection, do not drain the rest of the stream.
		c.Request().Body.Close()
		return weberror.New(http.StatusRequestEntityTooLarge, "payload too large")
	}
	if err != nil {
		return weberror.New(http.StatusBadRequest, "could not read request body")
	}

	if body.Size != declared {
		return weberror.New(http.StatusBadRequest, "content length mismatch")
	}

	if provided := strings.ToLower(c.Request().Header.Get("X-Checksum-Sha256")); provided != "" {
		if provided != body.ChecksumSHA256 {
			return weberror.New(http.StatusBadRequest, "checksum mismatch")
		}
	}

	storageKey := path.Join("uploads", session.ObjectKey, session.Filename)
	err = h.storage.Upload(c.Request().Context(), storageKey, session.ContentType, bytes.NewReader(body.Bytes))
	if err != nil {
		h.logger.WithPrefix("[upload]").Error(err)
		return weberror.New(http.StatusBadGateway, "failed to store file")
	}

	session.Used = true
	session.ActualSize = body.Size
	session.ChecksumSHA256 = body.ChecksumSHA256
	session.CompletedAt = time.Now()
	session.StorageKey = storageKey

	object.Name = session.Filename
	object.Size = body.Size
	object.ContentType = session.ContentType
	object.UploadedAt = session.CompletedAt
	object.StorageKey = storageKey
	object.ChecksumSHA256 = body.ChecksumSHA256
	object.OwnerAddress = session.UploaderAddress
	object.PaymentSignature = session.PaymentSignature
	object.PricePaid = session.PaidAmount

	err = h.db.CompleteUpload(session, object)
	if errors.Is(err, database.ErrSessionUsed) {
		return weberror.New(http.StatusConflict, "upload already completed for this URL")
	}
	if err != nil {
		return errors.Wrap(err, "upload.Upload")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"objectId": object.Key,
		"size":     body.Size,
	})
}

// Verify returns the audit descriptor of an upload session.
func (h *upload) Verify(c echo.Context) error {
	c.Set("handler_method", "upload.Verify")

	session, err := h.db.FindUploadByObjectKey(c.Param("key"))
	if err != nil {
		if h.db.IsNotFound(err) {
			return weberror.New(http.StatusNotFound, "session not found")
		}
		return errors.Wrap(err, "upload.Verify")
	}

	return c.JSON(http.StatusOK, serializer.Upload(session))
}

func randomHex(n int) string {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	return hex.EncodeToString(raw)
}
