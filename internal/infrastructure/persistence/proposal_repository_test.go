package persistence

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/proposal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sealedDoc = `{"encrypted":"aa:bb","iv":"00","keyId":"key-1","algorithm":"aes-256-gcm"}`

func newTestProposal(t *testing.T, tenantID uuid.UUID, title string) *proposal.Proposal {
	t.Helper()
	amount, err := valueobject.NewMoneyFromString("1500.50", valueobject.EUR)
	require.NoError(t, err)
	validUntil := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	p, err := proposal.NewProposal(tenantID, uuid.New(), title, amount, &validUntil)
	require.NoError(t, err)
	require.NoError(t, p.ReplaceContent(sealedDoc, json.RawMessage(`{"sections":[]}`)))
	return p
}

func TestGormProposalRepository_CreateAndFind(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormProposalRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	p := newTestProposal(t, tenantID, "Annual support")
	require.NoError(t, repo.Create(ctx, p))

	found, err := repo.FindByIDForTenant(ctx, tenantID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annual support", found.Title)
	assert.Equal(t, proposal.StatusDraft, found.Status)
	assert.Equal(t, "1500.50 EUR", found.Amount.String())
	assert.JSONEq(t, sealedDoc, found.SealedContent)
	assert.Equal(t, proposal.ContentNotLoaded, found.ContentStatus)
	assert.Nil(t, found.Content)

	_, err = repo.FindByIDForTenant(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, proposal.ErrProposalNotFound)
}

func TestGormProposalRepository_ListSkipsContent(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormProposalRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	first := newTestProposal(t, tenantID, "Website redesign")
	second := newTestProposal(t, tenantID, "Hosting")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, second.Send())
	require.NoError(t, repo.Save(ctx, second))

	list, err := repo.FindAllForTenant(ctx, tenantID, shared.Filter{OrderBy: "title", OrderDir: "asc"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Hosting", list[0].Title)
	for _, p := range list {
		assert.Empty(t, p.SealedContent)
	}

	sent, err := repo.FindAllForTenant(ctx, tenantID, shared.Filter{Filters: map[string]any{"status": "sent"}})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, second.ID, sent[0].ID)
	assert.NotNil(t, sent[0].SentAt)

	count, err := repo.CountForTenant(ctx, tenantID, shared.Filter{Search: "WEB"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	byContact, err := repo.FindAllForTenant(ctx, tenantID, shared.Filter{Filters: map[string]any{"contact_id": first.ContactID}})
	require.NoError(t, err)
	require.Len(t, byContact, 1)
	assert.Equal(t, first.ID, byContact[0].ID)
}

func TestGormProposalRepository_OptimisticLock(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormProposalRepository(db)
	ctx := context.Background()

	p := newTestProposal(t, uuid.New(), "Consulting")
	require.NoError(t, repo.Create(ctx, p))

	stale, err := repo.FindByIDForTenant(ctx, p.TenantID, p.ID)
	require.NoError(t, err)

	require.NoError(t, p.ReplaceContent(`{"encrypted":"cc:dd","iv":"01","keyId":"key-1"}`, nil))
	require.NoError(t, repo.Save(ctx, p))

	require.NoError(t, stale.Send())
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)
}

func TestGormProposalRepository_Delete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormProposalRepository(db)
	ctx := context.Background()

	p := newTestProposal(t, uuid.New(), "Audit")
	require.NoError(t, repo.Create(ctx, p))

	assert.ErrorIs(t, repo.DeleteForTenant(ctx, uuid.New(), p.ID), proposal.ErrProposalNotFound)
	require.NoError(t, repo.DeleteForTenant(ctx, p.TenantID, p.ID))
}

func TestGormProposalRepository_ListQuery(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormProposalRepository(db.DB)
	tenantID := uuid.New()

	// the select list ends at rejection_reason: content is never read by lists
	mock.ExpectQuery(`SELECT "id",.*"rejection_reason" FROM "proposals" WHERE tenant_id = \$1 AND ` +
		regexp.QuoteMeta(`LOWER(title) LIKE $2 ORDER BY created_at DESC LIMIT $3`)).
		WithArgs(tenantID, "%web%", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title", "currency", "status"}).
			AddRow(uuid.New().String(), tenantID.String(), "Web", "USD", "draft"))

	list, err := repo.FindAllForTenant(context.Background(), tenantID, shared.Filter{
		Page: 1, PageSize: 20, Search: "Web", OrderDir: "desc",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Web", list[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
