package handler

import (
	"time"

	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles token lifecycle endpoints. Tokens are issued by the
// identity provider; this service only revokes them.
type AuthHandler struct {
	BaseHandler
	blacklist auth.TokenBlacklist
	now       func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(blacklist auth.TokenBlacklist, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: newBaseHandler(log),
		blacklist:   blacklist,
		now:         time.Now,
	}
}

// Logout handles POST /auth/logout by revoking the presented token until
// it would have expired anyway
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil || claims.ID == "" {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	ttl := claims.RemainingTTL(h.now())
	if err := h.blacklist.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
		logger.WithLogger(c.Request.Context(), h.logger).Error("Failed to revoke token", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "Token could not be revoked")
		return
	}
	logger.WithLogger(c.Request.Context(), h.logger).Info("Token revoked",
		zap.String("jti", claims.ID),
		zap.Duration("ttl", ttl),
	)
	h.NoContent(c)
}
