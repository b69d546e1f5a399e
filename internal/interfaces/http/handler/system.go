package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	enc       *encryption.Service
	db        Pinger
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(enc *encryption.Service, db Pinger, version string, log *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: newBaseHandler(log),
		enc:         enc,
		db:          db,
		version:     version,
		startTime:   time.Now(),
	}
}

// EncryptionInfo describes the active encryption setup. It never carries
// key material.
type EncryptionInfo struct {
	Algorithm    string   `json:"algorithm"`
	DefaultKeyID string   `json:"default_key_id"`
	KeyIDs       []string `json:"key_ids"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	GoVersion  string         `json:"go_version"`
	Uptime     string         `json:"uptime"`
	Encryption EncryptionInfo `json:"encryption"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Health check: database unreachable", zap.Error(err))
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
			return
		}
		resp.Database = "ok"
	}
	h.Success(c, resp)
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "CRM Backend API",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Encryption: EncryptionInfo{
			Algorithm:    h.enc.Algorithm(),
			DefaultKeyID: h.enc.DefaultKeyID(),
			KeyIDs:       h.enc.KeyIDs(),
		},
	})
}
