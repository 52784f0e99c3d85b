package service_test

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/webserver/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()

	o := &model.Object{Status: model.ObjectActive}
	assert.Equal(t, model.ObjectActive, service.EffectiveStatus(o, now))

	// Persisted expiry wins, whatever the bounds say.
	o = &model.Object{Status: model.ObjectExpired}
	assert.Equal(t, model.ObjectExpired, service.EffectiveStatus(o, now))

	// Time bound exceeded but not yet persisted.
	o = &model.Object{Status: model.ObjectActive, ExpiresAt: now.Add(-time.Minute)}
	assert.Equal(t, model.ObjectExpired, service.EffectiveStatus(o, now))

	// Read bound exceeded but not yet persisted.
	o = &model.Object{Status: model.ObjectActive, MaxReads: 2, ReadCount: 2}
	assert.Equal(t, model.ObjectExpired, service.EffectiveStatus(o, now))

	// Bounds set but not reached.
	o = &model.Object{
		Status:    model.ObjectActive,
		ExpiresAt: now.Add(time.Hour),
		MaxReads:  2,
		ReadCount: 1,
	}
	assert.Equal(t, model.ObjectActive, service.EffectiveStatus(o, now))
}

func TestSetupObjectBounds(t *testing.T) {
	o := &model.Object{}

	r := httptest.NewRequest("PUT", "/uploads/upload/u1", nil)
	require.NoError(t, service.SetupObjectBounds(o, r))
	assert.True(t, o.ExpiresAt.IsZero())
	assert.Zero(t, o.MaxReads)

	r.Header.Set("X-Delete-After", "3600")
	r.Header.Set("X-Max-Reads", "3")
	require.NoError(t, service.SetupObjectBounds(o, r))
	assert.WithinDuration(t, time.Now().Add(time.Hour), o.ExpiresAt, 5*time.Second)
	assert.Equal(t, 3, o.MaxReads)
}

func TestSetupObjectBoundsDeleteAt(t *testing.T) {
	o := &model.Object{}
	at := time.Now().Add(30 * time.Minute).Unix()

	r := httptest.NewRequest("PUT", "/uploads/upload/u1", nil)
	r.Header.Set("X-Delete-At", strconv.FormatInt(at, 10))
	require.NoError(t, service.SetupObjectBounds(o, r))
	assert.Equal(t, at, o.ExpiresAt.Unix())
}

func TestSetupObjectBoundsInvalid(t *testing.T) {
	o := &model.Object{}

	r := httptest.NewRequest("PUT", "/uploads/upload/u1", nil)
	r.Header.Set("X-Delete-After", "soon")
	assert.Error(t, service.SetupObjectBounds(o, r))

	r = httptest.NewRequest("PUT", "/uploads/upload/u1", nil)
	r.Header.Set("X-Max-Reads", "0")
	assert.Error(t, service.SetupObjectBounds(o, r))
}
