package router

import (
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the endpoint handlers mounted by Setup
type Handlers struct {
	Contact  *handler.ContactHandler
	Proposal *handler.ProposalHandler
	Security *handler.SecurityHandler
	Audit    *handler.AuditHandler
	Auth     *handler.AuthHandler
	System   *handler.SystemHandler
}

// Middleware is the per-API middleware mounted by Setup. Authenticate is
// required; the others may be nil.
type Middleware struct {
	Authenticate   gin.HandlerFunc
	RateLimit      gin.HandlerFunc
	SpanAttributes gin.HandlerFunc
	Idempotency    gin.HandlerFunc
}

// Setup mounts /health and every /api/v1 route on engine
func Setup(engine *gin.Engine, h Handlers, mw Middleware, log *zap.Logger) {
	middleware.SetupValidator()
	engine.GET("/health", h.System.Health)

	apiMiddleware := []gin.HandlerFunc{mw.Authenticate}
	for _, m := range []gin.HandlerFunc{mw.RateLimit, mw.SpanAttributes, mw.Idempotency} {
		if m != nil {
			apiMiddleware = append(apiMiddleware, m)
		}
	}
	r := NewRouter(engine, WithMiddleware(apiMiddleware...))

	perm := func(p string) gin.HandlerFunc { return middleware.RequirePermission(p, log) }
	contactRead, contactWrite := perm(auth.PermissionContactRead), perm(auth.PermissionContactWrite)
	proposalRead, proposalWrite := perm(auth.PermissionProposalRead), perm(auth.PermissionProposalWrite)

	r.Register(NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo))

	r.Register(NewDomainGroup("auth", "/auth").
		POST("/logout", h.Auth.Logout))

	r.Register(NewDomainGroup("crm", "/crm/contacts").
		POST("", contactWrite, h.Contact.Create).
		GET("", contactRead, h.Contact.List).
		GET("/:id", contactRead, h.Contact.GetByID).
		PUT("/:id", contactWrite, h.Contact.Update).
		DELETE("/:id", contactWrite, h.Contact.Delete).
		POST("/:id/archive", contactWrite, h.Contact.Archive).
		POST("/:id/activate", contactWrite, h.Contact.Activate).
		POST("/:id/deactivate", contactWrite, h.Contact.Deactivate))

	r.Register(NewDomainGroup("sales", "/sales/proposals").
		POST("", proposalWrite, h.Proposal.Create).
		GET("", proposalRead, h.Proposal.List).
		GET("/:id", proposalRead, h.Proposal.GetByID).
		GET("/:id/sealed-content", proposalRead, h.Proposal.GetSealedContent).
		PUT("/:id", proposalWrite, h.Proposal.Update).
		PUT("/:id/content", proposalWrite, h.Proposal.UpdateContent).
		DELETE("/:id", proposalWrite, h.Proposal.Delete).
		POST("/:id/send", proposalWrite, h.Proposal.Send).
		POST("/:id/accept", proposalWrite, h.Proposal.Accept).
		POST("/:id/reject", proposalWrite, h.Proposal.Reject))

	r.Register(NewDomainGroup("security", "/security").
		Use(perm(auth.PermissionSecurityCrypto)).
		POST("/encrypt", h.Security.Encrypt).
		POST("/decrypt", h.Security.Decrypt))

	r.Register(NewDomainGroup("audit", "/audit").
		Use(perm(auth.PermissionAuditRead)).
		GET("/:id", h.Audit.History))

	r.Setup()
}
