package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrLinkExpired is returned when a local signed URL outlived its TTL.
var ErrLinkExpired = errors.New("signed link expired")

type fs struct {
	workspace string
	baseURL   string
	secret    []byte
}

// NewFileSystem returns a new File System backend for self-hosted
// deployments. Signed URLs point back at the server's /local route and
// carry a JWT bound to the blob key.
func NewFileSystem(workspace, baseURL string, secret []byte) Backend {
	return &fs{
		workspace: workspace,
		baseURL:   baseURL,
		secret:    secret,
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) Upload(_ context.Context, key, _ string, r io.Reader) error {
	filename := filepath.Join(b.workspace, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrap(err, "could not create directory")
	}

	wc, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create file")
	}
	defer wc.Close()

	if _, err = io.Copy(wc, r); err != nil {
		return errors.Wrap(err, "could not write file")
	}

	err = wc.Sync()
	return errors.Wrap(err, "could not write file")
}

func (b *fs) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"key": key,
		"exp": jwt.NewNumericDate(time.Now().Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", errors.Wrap(err, "could not sign blob URL")
	}
	return b.baseURL + "/local/" + token, nil
}

func (b *fs) Remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(b.workspace, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete file")
	}

	// Best effort removal of the emptied key directory.
	os.Remove(filepath.Dir(filepath.Join(b.workspace, filepath.FromSlash(key))))
	return nil
}

// Reader returns a ReadCloser of the blob. Used by the /local route.
func (b *fs) Reader(key string) (io.ReadCloser, error) {
	rc, err := os.Open(filepath.Join(b.workspace, filepath.FromSlash(key)))
	return rc, errors.Wrap(err, "could not open file")
}

// VerifyLocalToken validates a /local URL token and returns the blob key.
func VerifyLocalToken(secret []byte, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrLinkExpired
	}
	if err != nil {
		return "", errors.Wrap(err, "could not parse token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	key, _ := claims["key"].(string)
	if key == "" {
		return "", errors.New("invalid token claims")
	}
	return key, nil
}
