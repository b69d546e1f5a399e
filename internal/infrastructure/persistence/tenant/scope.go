// Package tenant provides multi-tenant database scoping for GORM.
//
// The tenant ID travels in the request context (set by the tenant middleware
// through logger.WithTenantID). TenantDB turns it into a WHERE tenant_id = ?
// condition so repositories never query across tenants by accident.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	db.WithContext(ctx).Find(&contacts) // WHERE tenant_id = '...'
package tenant

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is the tenant column shared by every tenant-scoped table
const Column = "tenant_id"

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// FromContext returns the tenant ID carried by ctx.
func FromContext(ctx context.Context) (uuid.UUID, error) {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		return uuid.Nil, ErrTenantIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(Column+" = ?", tenantID)
	}
}

// TenantDB wraps GORM DB with automatic tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a new TenantDB
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// DB returns the underlying GORM DB without tenant scoping.
// Only system-level operations (migrations, health checks) should use it.
func (t *TenantDB) DB() *gorm.DB {
	return t.db
}

// WithContext returns a GORM DB scoped to the tenant from context.
// Without a valid tenant the returned DB carries an error, so any
// statement executed on it fails.
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	db := t.db.WithContext(ctx)
	tenantID, err := FromContext(ctx)
	if err != nil {
		_ = db.AddError(err)
		return db
	}
	return db.Scopes(Scope(tenantID))
}

// ForTenant returns a GORM DB scoped to an explicit tenant ID.
func (t *TenantDB) ForTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	db := t.db.WithContext(ctx)
	if tenantID == uuid.Nil {
		_ = db.AddError(ErrTenantIDRequired)
		return db
	}
	return db.Scopes(Scope(tenantID))
}

// Transaction executes fn within a database transaction scoped to tenantID.
func (t *TenantDB) Transaction(ctx context.Context, tenantID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if tenantID == uuid.Nil {
		return ErrTenantIDRequired
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx.Scopes(Scope(tenantID)))
	})
}
