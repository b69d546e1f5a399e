package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/crm/backend/internal/domain/proposal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// proposalListColumns are selected by list queries, which skip content
var proposalListColumns = []string{
	"id", "created_at", "updated_at", "version", "tenant_id", "created_by",
	"title", "contact_id", "amount", "currency", "status",
	"valid_until", "sent_at", "decided_at", "rejection_reason",
}

// GormProposalRepository implements proposal.Repository using GORM.
// The content column is stored sealed; sealing and opening happen in the
// application service, which owns the update-envelope contract.
type GormProposalRepository struct {
	db *tenant.TenantDB
}

// NewGormProposalRepository creates a new GormProposalRepository
func NewGormProposalRepository(db *gorm.DB) *GormProposalRepository {
	return &GormProposalRepository{db: tenant.NewTenantDB(db)}
}

// FindByIDForTenant finds a proposal by ID within a tenant
func (r *GormProposalRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*proposal.Proposal, error) {
	var model models.ProposalModel
	if err := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, proposal.ErrProposalNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all proposals for a tenant without their content
func (r *GormProposalRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]proposal.Proposal, error) {
	var rows []models.ProposalModel
	query := r.applyFilter(r.db.ForTenant(ctx, tenantID).Model(&models.ProposalModel{}).Select(proposalListColumns), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	proposals := make([]proposal.Proposal, len(rows))
	for i := range rows {
		proposals[i] = *rows[i].ToDomain()
	}
	return proposals, nil
}

// CountForTenant counts proposals for a tenant
func (r *GormProposalRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.ForTenant(ctx, tenantID).Model(&models.ProposalModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new proposal
func (r *GormProposalRepository) Create(ctx context.Context, p *proposal.Proposal) error {
	return r.db.ForTenant(ctx, p.TenantID).Create(models.ProposalModelFromDomain(p)).Error
}

// Save updates a proposal with an optimistic lock on the previous version
func (r *GormProposalRepository) Save(ctx context.Context, p *proposal.Proposal) error {
	model := models.ProposalModelFromDomain(p)
	result := r.db.ForTenant(ctx, p.TenantID).
		Model(model).
		Where("id = ? AND version = ?", p.ID, p.Version-1).
		Select("*").
		Omit("created_at", "created_by", "tenant_id").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// DeleteForTenant deletes a proposal within a tenant
func (r *GormProposalRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).Delete(&models.ProposalModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return proposal.ErrProposalNotFound
	}
	return nil
}

// applyFilter applies filter options to the query
func (r *GormProposalRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(ProposalSortColumns.OrderClause(filter.OrderBy, filter.OrderDir))
}

// applyFilterWithoutPagination applies search and filters without pagination
func (r *GormProposalRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		}
	}
	return query
}

var _ proposal.Repository = (*GormProposalRepository)(nil)
