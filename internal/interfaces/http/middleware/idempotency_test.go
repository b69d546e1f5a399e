package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSealer(t *testing.T) *encryption.Service {
	t.Helper()
	keyring, err := encryption.NewKeyringFromKeys("key-1", map[string][]byte{
		"key-1": bytes.Repeat([]byte{'k'}, 32),
	})
	require.NoError(t, err)
	svc, err := encryption.NewService(keyring, encryption.Config{}, nil)
	require.NoError(t, err)
	return svc
}

type idempotencyFixture struct {
	router *gin.Engine
	store  shared.IdempotencyStore
	calls  atomic.Int32
}

func newIdempotencyFixture(t *testing.T, store shared.IdempotencyStore, status int) *idempotencyFixture {
	t.Helper()
	f := &idempotencyFixture{store: store}
	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, "tenant-a")
		c.Next()
	})
	f.router.Use(Idempotency(IdempotencyConfig{Store: store, Sealer: newSealer(t), TTL: time.Hour}))
	f.router.POST("/contacts", func(c *gin.Context) {
		n := f.calls.Add(1)
		c.JSON(status, gin.H{"call": n, "email": "ana@example.com"})
	})
	return f
}

func (f *idempotencyFixture) post(key, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	first := f.post("k1", `{"name":"Ana"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))

	second := f.post("k1", `{"name":"Ana"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestIdempotency_StoredBodyIsSealed(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	require.Equal(t, http.StatusCreated, f.post("k1", `{}`).Code)

	stored, err := store.Reserve(context.Background(), "tenant-a:k1",
		fingerprint(http.MethodPost, "/contacts", []byte(`{}`)), time.Hour)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, string(stored.Body), "ana@example.com")

	_, err = encryption.ParseEnvelope(stored.Body)
	assert.NoError(t, err)
}

func TestIdempotency_DifferentBodySameKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	require.Equal(t, http.StatusCreated, f.post("k1", `{"name":"Ana"}`).Code)

	w := f.post("k1", `{"name":"Bea"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeIdempotencyReused, decodeError(t, w).Code)
}

func TestIdempotency_FailedResponseReleasesKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	f := newIdempotencyFixture(t, store, http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, f.post("k1", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.post("k1", `{}`).Code)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	var calls atomic.Int32
	r := gin.New()
	r.Use(gin.Recovery(), func(c *gin.Context) {
		c.Set(TenantIDKey, "tenant-a")
		c.Next()
	})
	r.Use(Idempotency(IdempotencyConfig{Store: store, Sealer: newSealer(t), TTL: time.Hour}))
	r.POST("/contacts", func(c *gin.Context) {
		if calls.Add(1) == 1 {
			panic("database gone")
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "k1")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusInternalServerError, post().Code)
	assert.Equal(t, http.StatusCreated, post().Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_WithoutKeyIsPassThrough(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	f.post("", `{}`)
	f.post("", `{}`)
	assert.Equal(t, int32(2), f.calls.Load())
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Reserve(ctx context.Context, key, fp string, ttl time.Duration) (*shared.StoredResponse, error) {
	args := m.Called(ctx, key, fp, ttl)
	resp, _ := args.Get(0).(*shared.StoredResponse)
	return resp, args.Error(1)
}

func (m *mockIdempotencyStore) Complete(ctx context.Context, key string, resp shared.StoredResponse, ttl time.Duration) error {
	return m.Called(ctx, key, resp, ttl).Error(0)
}

func (m *mockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockIdempotencyStore) Close() error { return nil }

func TestIdempotency_InFlight(t *testing.T) {
	store := new(mockIdempotencyStore)
	store.On("Reserve", mock.Anything, "tenant-a:k1", mock.Anything, time.Hour).
		Return(nil, shared.ErrIdempotencyInFlight)
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	w := f.post("k1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeIdempotencyInFlight, decodeError(t, w).Code)
	assert.Zero(t, f.calls.Load())
}

func TestIdempotency_StoreDownStillServes(t *testing.T) {
	store := new(mockIdempotencyStore)
	store.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	assert.Equal(t, http.StatusCreated, f.post("k1", `{}`).Code)
	store.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotency_TamperedStoredBody(t *testing.T) {
	store := new(mockIdempotencyStore)
	store.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&shared.StoredResponse{StatusCode: http.StatusCreated, Body: []byte(`{"not":"an envelope"}`)}, nil)
	f := newIdempotencyFixture(t, store, http.StatusCreated)

	w := f.post("k1", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeDecryptionFailed, decodeError(t, w).Code)
}
