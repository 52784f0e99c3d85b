package webserver

import (
	"io"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
	"github.com/pkg/errors"
)

type localReader interface {
	Reader(key string) (io.ReadCloser, error)
}

// local serves the blobs behind the filesystem backend's signed URLs.
// S3 deployments never hit this route, the URLs point at the bucket.
type local struct {
	logger  logger.Logger
	storage storage.Backend
	secret  []byte
}

func (h *local) Download(c echo.Context) error {
	c.Set("handler_method", "local.Download")

	backend, ok := h.storage.(localReader)
	if !ok {
		return weberror.New(http.StatusNotFound, "file not found")
	}

	key, err := storage.VerifyLocalToken(h.secret, c.Param("token"))
	if errors.Is(err, storage.ErrLinkExpired) {
		return weberror.New(http.StatusGone, "link expired")
	}
	if err != nil {
		return weberror.New(http.StatusForbidden, "invalid link")
	}

	r, err := backend.Reader(key)
	if err != nil {
		h.logger.WithPrefix("[local]").Error(err)
		return weberror.New(http.StatusNotFound, "file not found")
	}
	defer r.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+path.Base(key)+`"`)
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, r)
}
