package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntityContact is the entity name bound into contact envelopes
const EntityContact = "contact"

// GormContactRepository implements contact.Repository using GORM.
// Sensitive fields are sealed field by field before they reach the
// database; each envelope is bound to tenant, record and field.
type GormContactRepository struct {
	db     *tenant.TenantDB
	enc    *encryption.Service
	fields []string
	logger *zap.Logger
}

// NewGormContactRepository creates a new GormContactRepository.
// fields selects which sensitive fields are encrypted on write; reads
// decrypt every sensitive column that holds an envelope.
func NewGormContactRepository(db *gorm.DB, enc *encryption.Service, fields []string, log *zap.Logger) *GormContactRepository {
	if log == nil {
		log = zap.NewNop()
	}
	if fields == nil {
		fields = contact.SensitiveFields
	}
	return &GormContactRepository{
		db:     tenant.NewTenantDB(db),
		enc:    enc,
		fields: fields,
		logger: log,
	}
}

// ContactAAD returns the additional data bound into a contact's envelopes
func ContactAAD(tenantID, id uuid.UUID) map[string]any {
	return map[string]any{
		"tenantId": tenantID.String(),
		"entity":   EntityContact,
		"id":       id.String(),
	}
}

// FindByIDForTenant finds a contact by ID within a tenant
func (r *GormContactRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*contact.Contact, error) {
	var model models.ContactModel
	if err := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contact.ErrContactNotFound
		}
		return nil, err
	}
	return r.open(ctx, &model), nil
}

// FindAllForTenant finds all contacts for a tenant
func (r *GormContactRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]contact.Contact, error) {
	var rows []models.ContactModel
	query := r.applyFilter(r.db.ForTenant(ctx, tenantID).Model(&models.ContactModel{}), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	contacts := make([]contact.Contact, len(rows))
	for i := range rows {
		contacts[i] = *r.open(ctx, &rows[i])
	}
	return contacts, nil
}

// CountForTenant counts contacts for a tenant
func (r *GormContactRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.ForTenant(ctx, tenantID).Model(&models.ContactModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByEmail checks if another contact in the tenant has the email
func (r *GormContactRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int64
	query := r.db.ForTenant(ctx, tenantID).
		Model(&models.ContactModel{}).
		Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new contact with its sensitive fields sealed
func (r *GormContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	model := models.ContactModelFromDomain(c)
	if err := r.seal(ctx, c, model); err != nil {
		return err
	}
	return translateContactError(r.db.ForTenant(ctx, c.TenantID).Create(model).Error)
}

// Save updates a contact with an optimistic lock on the previous version.
// Fields that could not be decrypted on load are never written back.
func (r *GormContactRepository) Save(ctx context.Context, c *contact.Contact) error {
	model := models.ContactModelFromDomain(c)
	if err := r.seal(ctx, c, model); err != nil {
		return err
	}

	omit := []string{"created_at", "created_by", "tenant_id"}
	cols := model.SensitiveColumns()
	for _, f := range c.UnreadableFields {
		if _, ok := cols[f]; ok {
			omit = append(omit, f)
		}
	}

	result := r.db.ForTenant(ctx, c.TenantID).
		Model(model).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Select("*").
		Omit(omit...).
		Updates(model)
	if result.Error != nil {
		return translateContactError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// translateContactError maps a unique violation to ErrEmailTaken: the
// tenant/email index is the only unique key a write can collide with.
// Requires a session opened with TranslateError.
func translateContactError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return contact.ErrEmailTaken
	}
	return err
}

// DeleteForTenant deletes a contact within a tenant
func (r *GormContactRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).Delete(&models.ContactModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contact.ErrContactNotFound
	}
	return nil
}

// seal encrypts the configured sensitive fields into the model's columns.
// Empty values are stored as NULL. Unconfigured fields are stored as-is.
func (r *GormContactRepository) seal(ctx context.Context, c *contact.Contact, model *models.ContactModel) error {
	values := c.SensitiveValues()
	record := encryption.Record{}
	for field, value := range values {
		if value != "" && !c.IsUnreadable(field) {
			record[field] = value
		}
	}

	sealed, err := r.enc.EncryptFields(ctx, record, r.fields,
		encryption.WithAdditionalData(ContactAAD(c.TenantID, c.ID)))
	if err != nil {
		return fmt.Errorf("failed to seal contact %s: %w", c.ID, err)
	}

	for field, col := range model.SensitiveColumns() {
		switch v := sealed[field].(type) {
		case *encryption.Envelope:
			s := v.String()
			*col = &s
		case string:
			if r.encrypts(field) {
				return fmt.Errorf("refusing to store %s in plaintext", field)
			}
			s := v
			*col = &s
		default:
			*col = nil
		}
	}
	return nil
}

func (r *GormContactRepository) encrypts(field string) bool {
	return slices.Contains(r.fields, field)
}

// open maps a row to a Contact, decrypting every sensitive column that
// holds an envelope. Fields that fail to decrypt are blanked and flagged.
func (r *GormContactRepository) open(ctx context.Context, model *models.ContactModel) *contact.Contact {
	c := model.ToDomain()

	record := encryption.Record{}
	for field, col := range model.SensitiveColumns() {
		if *col == nil {
			continue
		}
		raw := **col
		content, err := encryption.DecodeContent([]byte(raw))
		switch v := content.(type) {
		case *encryption.Envelope:
			record[field] = v
		case encryption.PlainContent:
			record[field] = raw
		default:
			if err != nil && !errors.Is(err, encryption.ErrMalformedEnvelope) {
				// not JSON at all: a plaintext value
				record[field] = raw
				continue
			}
			c.MarkUnreadable(field)
		}
	}

	opened, err := r.enc.DecryptFields(ctx, record, contact.SensitiveFields,
		encryption.WithAdditionalData(ContactAAD(c.TenantID, c.ID)))
	failed := encryption.FailedFields(err)
	if err != nil {
		logger.WithLogger(ctx, r.logger).Warn("contact fields could not be decrypted",
			zap.String("contact_id", c.ID.String()),
			zap.Strings("fields", failed),
			zap.Error(err),
		)
	}

	for field, value := range opened {
		if slices.Contains(failed, field) {
			continue
		}
		switch v := value.(type) {
		case string:
			c.SetSensitiveValue(field, v)
		case *encryption.Envelope:
			c.MarkUnreadable(field)
		default:
			c.SetSensitiveValue(field, fmt.Sprint(v))
		}
	}
	c.MarkUnreadable(failed...)
	return c
}

// applyFilter applies filter options to the query
func (r *GormContactRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(ContactSortColumns.OrderClause(filter.OrderBy, filter.OrderDir))
}

// applyFilterWithoutPagination applies search and filters without pagination.
// Only plaintext columns are searchable.
func (r *GormContactRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "company":
			query = query.Where("company = ?", value)
		}
	}
	return query
}

var _ contact.Repository = (*GormContactRepository)(nil)
