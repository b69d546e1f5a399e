package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp struct {
		Success bool          `json:"success"`
		Error   dto.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error
}

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-with-at-least-32-characters",
		AccessTokenExpiration: time.Hour,
		Issuer:                "crm-test",
	})
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	t.Run("propagates client id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Body.String())
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("generates when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, w.Body.String())
		assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
	})
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"far too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestJWTAuth(t *testing.T) {
	jwtSvc := newJWTService()
	blacklist := auth.NewInMemoryTokenBlacklist()
	tenantID := uuid.New()
	userID := uuid.New()

	r := gin.New()
	r.Use(RequestID(), JWTAuth(JWTConfig{JWTService: jwtSvc, Blacklist: blacklist, SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/me", func(c *gin.Context) {
		tid, err := GetTenantUUID(c)
		require.NoError(t, err)
		c.String(http.StatusOK, tid.String())
	})

	token, _, err := jwtSvc.GenerateAccessToken(auth.TokenInput{TenantID: tenantID, UserID: userID, Username: "ana"})
	require.NoError(t, err)

	t.Run("skip path", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeError(t, w).Code)
	})

	t.Run("valid token sets tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID.String(), w.Body.String())
	})

	t.Run("revoked token", func(t *testing.T) {
		claims, err := jwtSvc.ValidateAccessToken(token)
		require.NoError(t, err)
		require.NoError(t, blacklist.Revoke(t.Context(), claims.ID, time.Hour))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, decodeError(t, w).Code)
	})
}

func TestRequirePermission(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if perms := c.GetHeader("X-Test-Perms"); perms != "" {
			c.Set(JWTClaimsKey, &auth.Claims{Permissions: []string{perms}})
		}
		c.Next()
	})
	r.GET("/", RequirePermission(auth.PermissionContactRead, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		perms  string
		status int
	}{
		{"no claims", "", http.StatusUnauthorized},
		{"missing permission", auth.PermissionProposalRead, http.StatusForbidden},
		{"granted", auth.PermissionContactRead, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.perms != "" {
				req.Header.Set("X-Test-Perms", tt.perms)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	r := gin.New()
	r.Use(RateLimit(limiter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_ScopedByTenantAfterAuth(t *testing.T) {
	jwtSvc := newJWTService()
	limiter := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.Use(JWTAuth(JWTConfig{JWTService: jwtSvc, Blacklist: auth.NewInMemoryTokenBlacklist()}), RateLimit(limiter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(tenantID uuid.UUID) int {
		token, _, err := jwtSvc.GenerateAccessToken(auth.TokenInput{TenantID: tenantID, UserID: uuid.New(), Username: "ana"})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w.Code
	}

	tenantA, tenantB := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, call(tenantA))
	assert.Equal(t, http.StatusTooManyRequests, call(tenantA))
	assert.Equal(t, http.StatusOK, call(tenantB))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Contains(t, limiter.clients, tenantA.String()+":192.0.2.1")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("a")
	assert.True(t, ok)
	ok, _ = limiter.Allow("a")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)

	now = now.Add(5 * time.Minute)
	limiter.evict()
	assert.Empty(t, limiter.clients)
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig()))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()
	type body struct {
		Email string `json:"email" binding:"required,email"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"email":"nope"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	require.Len(t, info.Details, 1)
	assert.Equal(t, "email", info.Details[0].Field)
	assert.Equal(t, "Invalid email format", info.Details[0].Message)
}

func TestHandleValidationError_Currency(t *testing.T) {
	SetupValidator()
	type body struct {
		Currency string `json:"currency" binding:"omitempty,currency"`
		Title    string `json:"title" binding:"required,min=1,max=5"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"currency":"XYZ","title":"too long"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	require.Len(t, info.Details, 2)
	assert.Equal(t, "currency", info.Details[0].Field)
	assert.Equal(t, "Unsupported currency code", info.Details[0].Message)
	assert.Equal(t, "title", info.Details[1].Field)
	assert.Equal(t, "Must be at most 5 characters", info.Details[1].Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"currency":"eur","title":"ok"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
