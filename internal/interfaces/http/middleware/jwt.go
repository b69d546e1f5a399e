package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys set by JWTAuth
const (
	JWTClaimsKey = "jwt_claims"
	UserIDKey    = "user_id"
	TenantIDKey  = "tenant_id"
	BearerPrefix = "Bearer "
)

// JWTConfig configures JWTAuth
type JWTConfig struct {
	JWTService *auth.JWTService
	// Blacklist is optional
	Blacklist auth.TokenBlacklist
	SkipPaths []string
	Logger    *zap.Logger
}

// JWTAuth authenticates the bearer token and stores its claims, tenant and
// user on the gin and request contexts. The tenant always comes from the
// token; there is no header override.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, BearerPrefix)
		if !found || token == "" {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			log.Warn("JWT authentication failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
			respondAuthError(c, err)
			return
		}
		if _, err := claims.TenantUUID(); err != nil {
			respondAuthError(c, auth.ErrMissingTenantID)
			return
		}

		if cfg.Blacklist != nil && claims.ID != "" {
			revoked, err := cfg.Blacklist.IsRevoked(c.Request.Context(), claims.ID)
			switch {
			case err != nil:
				log.Error("Failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
			case revoked:
				respondAuthError(c, auth.ErrTokenRevoked)
				return
			}
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Set(TenantIDKey, claims.TenantID)

		ctx := logger.WithTenantID(c.Request.Context(), claims.TenantID)
		ctx = logger.WithUserID(ctx, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		abortWithError(c, dto.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		abortWithError(c, dto.ErrCodeTokenRevoked, "Token has been revoked")
	default:
		abortWithError(c, dto.ErrCodeTokenInvalid, "Invalid token")
	}
}

// GetJWTClaims returns the authenticated claims, or nil
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetTenantUUID returns the authenticated tenant
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.GetString(TenantIDKey))
}

// GetUserUUID returns the authenticated user
func GetUserUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.GetString(UserIDKey))
}
