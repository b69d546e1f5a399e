package middleware

import (
	"net/http"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request. Health probes are not traced.
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
}

// SpanAttributes copies the request, tenant and user ids onto the active
// span. It must run after JWTAuth.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			telemetry.SetAttributes(span,
				"request_id", c.GetString(RequestIDKey),
				telemetry.SpanAttrTenantID, c.GetString(TenantIDKey),
				"user_id", c.GetString(UserIDKey),
			)
		}
		c.Next()
	}
}
