package middleware

import (
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission rejects requests whose token lacks permission
func RequirePermission(permission string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !claims.HasPermission(permission) {
			log.Warn("Permission denied",
				zap.String("user_id", claims.UserID),
				zap.String("required", permission),
				zap.String("path", c.Request.URL.Path),
			)
			abortWithError(c, dto.ErrCodeForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}
