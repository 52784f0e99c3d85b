package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type reader interface {
	Reader(key string) (io.ReadCloser, error)
}

func TestFileSystemUploadAndReader(t *testing.T) {
	backend := storage.NewFileSystem(t.TempDir(), "http://localhost:3001", secret)

	err := backend.Upload(context.Background(), "uploads/obj_1/report.pdf", "application/pdf", strings.NewReader("content"))
	require.NoError(t, err)

	rc, err := backend.(reader).Reader("uploads/obj_1/report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(payload))
}

func TestFileSystemSignedURL(t *testing.T) {
	backend := storage.NewFileSystem(t.TempDir(), "http://localhost:3001", secret)

	url, err := backend.SignedURL(context.Background(), "uploads/obj_1/report.pdf", time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:3001/local/"))

	token := strings.TrimPrefix(url, "http://localhost:3001/local/")
	key, err := storage.VerifyLocalToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "uploads/obj_1/report.pdf", key)

	// Wrong secret.
	_, err = storage.VerifyLocalToken([]byte("other"), token)
	assert.Error(t, err)
}

func TestFileSystemSignedURLExpired(t *testing.T) {
	backend := storage.NewFileSystem(t.TempDir(), "http://localhost:3001", secret)

	url, err := backend.SignedURL(context.Background(), "uploads/obj_1/report.pdf", -time.Minute)
	require.NoError(t, err)

	token := strings.TrimPrefix(url, "http://localhost:3001/local/")
	_, err = storage.VerifyLocalToken(secret, token)
	assert.ErrorIs(t, err, storage.ErrLinkExpired)
}

func TestFileSystemRemove(t *testing.T) {
	backend := storage.NewFileSystem(t.TempDir(), "http://localhost:3001", secret)

	err := backend.Upload(context.Background(), "uploads/obj_1/report.pdf", "application/pdf", strings.NewReader("content"))
	require.NoError(t, err)

	require.NoError(t, backend.Remove(context.Background(), "uploads/obj_1/report.pdf"))

	_, err = backend.(reader).Reader("uploads/obj_1/report.pdf")
	assert.Error(t, err)

	// Removing a missing blob is not an error.
	assert.NoError(t, backend.Remove(context.Background(), "uploads/obj_1/report.pdf"))
}
