package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecord is a persisted domain event. Domain events carry field names
// and identifiers only, so the payload holds no personal data.
type AuditRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_events_aggregate,priority:1" json:"tenant_id"`
	AggregateType string    `gorm:"type:varchar(50);not null" json:"aggregate_type"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_events_aggregate,priority:2" json:"aggregate_id"`
	EventType     string    `gorm:"type:varchar(100);not null" json:"event_type"`
	Payload       string    `gorm:"type:jsonb;not null" json:"payload"`
	OccurredAt    time.Time `gorm:"not null" json:"occurred_at"`
}

// TableName returns the table name for GORM
func (AuditRecord) TableName() string {
	return "audit_events"
}

// AuditStore persists and reads audit records
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a new GORM-backed audit store
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record stores one event
func (s *AuditStore) Record(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event %s: %w", event.EventType(), err)
	}
	record := AuditRecord{
		ID:            event.EventID(),
		TenantID:      event.TenantID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.EventType(),
		Payload:       string(payload),
		OccurredAt:    event.OccurredAt(),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// ListForAggregate returns the history of an aggregate, oldest first
func (s *AuditStore) ListForAggregate(ctx context.Context, tenantID, aggregateID uuid.UUID, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []AuditRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND aggregate_id = ?", tenantID, aggregateID).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// AuditHandler writes every published event to the audit store
type AuditHandler struct {
	store *AuditStore
}

// NewAuditHandler creates an audit handler
func NewAuditHandler(store *AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// Handle records the event
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return h.store.Record(ctx, event)
}

// EventTypes returns nil; the audit handler receives all events
func (h *AuditHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
