package proposal

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/proposal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProposalRepository is a mock implementation of proposal.Repository
type MockProposalRepository struct {
	mock.Mock
}

func (m *MockProposalRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*proposal.Proposal, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proposal.Proposal), args.Error(1)
}

func (m *MockProposalRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]proposal.Proposal, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]proposal.Proposal), args.Error(1)
}

func (m *MockProposalRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProposalRepository) Create(ctx context.Context, p *proposal.Proposal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProposalRepository) Save(ctx context.Context, p *proposal.Proposal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProposalRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockContactRepository is a mock implementation of contact.Repository
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*contact.Contact, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contact.Contact), args.Error(1)
}

func (m *MockContactRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]contact.Contact, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]contact.Contact), args.Error(1)
}

func (m *MockContactRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContactRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockContactRepository) Save(ctx context.Context, c *contact.Contact) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockContactRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

type fixture struct {
	repo     *MockProposalRepository
	contacts *MockContactRepository
	pub      *MockEventPublisher
	enc      *encryption.Service
	svc      *ProposalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keyring, err := encryption.NewKeyringFromKeys("key-1", map[string][]byte{
		"key-1": bytes.Repeat([]byte{'k'}, 32),
	})
	require.NoError(t, err)
	enc, err := encryption.NewService(keyring, encryption.Config{}, nil)
	require.NoError(t, err)

	f := &fixture{
		repo:     new(MockProposalRepository),
		contacts: new(MockContactRepository),
		pub:      new(MockEventPublisher),
		enc:      enc,
	}
	f.svc = NewProposalService(f.repo, f.contacts, enc, nil)
	f.svc.SetEventPublisher(f.pub)
	return f
}

// draft returns a stored draft whose content is sealed for it
func (f *fixture) draft(t *testing.T, tenantID uuid.UUID, document string) *proposal.Proposal {
	t.Helper()
	amount, err := valueobject.NewMoneyFromString("1500.50", valueobject.EUR)
	require.NoError(t, err)
	p, err := proposal.NewProposal(tenantID, uuid.New(), "Website redesign", amount, nil)
	require.NoError(t, err)

	env, err := f.enc.Encrypt(context.Background(), json.RawMessage(document),
		encryption.WithAdditionalData(ContentAAD(tenantID, p.ID)))
	require.NoError(t, err)
	require.NoError(t, p.ReplaceContent(env.String(), nil))
	p.Content = nil
	p.ContentStatus = proposal.ContentNotLoaded
	p.PullEvents()
	return p
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}

func publishes(types ...string) any {
	return mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return assert.ObjectsAreEqual(types, eventTypes(events))
	})
}

func TestProposalService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	contactID := uuid.New()
	owner, err := contact.NewContact(tenantID, "Jane Buyer")
	require.NoError(t, err)

	t.Run("seals content bound to the proposal", func(t *testing.T) {
		f := newFixture(t)
		var stored *proposal.Proposal
		f.contacts.On("FindByIDForTenant", mock.Anything, tenantID, contactID).Return(owner, nil)
		f.repo.On("Create", mock.Anything, mock.AnythingOfType("*proposal.Proposal")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*proposal.Proposal) }).
			Return(nil)
		f.pub.On("Publish", mock.Anything, publishes(proposal.EventTypeProposalCreated)).Return(nil)

		resp, err := f.svc.Create(ctx, tenantID, CreateProposalRequest{
			Title:     "Website redesign",
			ContactID: contactID,
			Amount:    decimal.RequireFromString("1500.5"),
			Currency:  "eur",
			Content:   json.RawMessage(`{"sections":[{"title":"Scope","body":"Three pages"}]}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "draft", resp.Status)
		assert.Equal(t, "EUR", resp.Currency)
		assert.Equal(t, "available", resp.ContentStatus)
		assert.JSONEq(t, `{"sections":[{"title":"Scope","body":"Three pages"}]}`, string(resp.Content))

		require.NotNil(t, stored)
		assert.NotContains(t, stored.SealedContent, "Three pages")
		env, err := encryption.ParseEnvelope([]byte(stored.SealedContent))
		require.NoError(t, err)
		assert.Equal(t, "proposal", env.AdditionalData["entity"])
		assert.Equal(t, stored.ID.String(), env.AdditionalData["id"])
		assert.Equal(t, tenantID.String(), env.AdditionalData["tenantId"])

		var document json.RawMessage
		require.NoError(t, f.enc.DecryptInto(ctx, env, &document,
			encryption.WithAdditionalData(ContentAAD(tenantID, stored.ID))))
		assert.JSONEq(t, `{"sections":[{"title":"Scope","body":"Three pages"}]}`, string(document))
		f.repo.AssertExpectations(t)
		f.pub.AssertExpectations(t)
	})

	t.Run("uses default content", func(t *testing.T) {
		f := newFixture(t)
		f.contacts.On("FindByIDForTenant", mock.Anything, tenantID, contactID).Return(owner, nil)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.svc.Create(ctx, tenantID, CreateProposalRequest{
			Title:     "Support plan",
			ContactID: contactID,
			Amount:    decimal.NewFromInt(100),
		})
		require.NoError(t, err)
		assert.Equal(t, "USD", resp.Currency)
		assert.JSONEq(t, `{"sections":[]}`, string(resp.Content))
	})

	t.Run("requires an existing contact", func(t *testing.T) {
		f := newFixture(t)
		f.contacts.On("FindByIDForTenant", mock.Anything, tenantID, contactID).Return(nil, contact.ErrContactNotFound)

		_, err := f.svc.Create(ctx, tenantID, CreateProposalRequest{Title: "x", ContactID: contactID})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects an envelope as initial content", func(t *testing.T) {
		f := newFixture(t)
		f.contacts.On("FindByIDForTenant", mock.Anything, tenantID, contactID).Return(owner, nil)
		env, err := f.enc.Encrypt(ctx, "secret")
		require.NoError(t, err)

		_, err = f.svc.Create(ctx, tenantID, CreateProposalRequest{
			Title:     "x",
			ContactID: contactID,
			Content:   json.RawMessage(env.String()),
		})
		assert.ErrorIs(t, err, ErrOpaqueContent)
	})

	t.Run("rejects unsupported currency", func(t *testing.T) {
		f := newFixture(t)
		f.contacts.On("FindByIDForTenant", mock.Anything, tenantID, contactID).Return(owner, nil)

		_, err := f.svc.Create(ctx, tenantID, CreateProposalRequest{Title: "x", ContactID: contactID, Currency: "XYZ"})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "INVALID_CURRENCY", de.Code)
	})
}

func TestProposalService_GetByID(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("opens content", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[{"title":"Scope"}]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		resp, err := f.svc.GetByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "available", resp.ContentStatus)
		assert.JSONEq(t, `{"sections":[{"title":"Scope"}]}`, string(resp.Content))
		assert.Equal(t, "1500.5", resp.Amount.String())
	})

	t.Run("content moved from another proposal is unavailable", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		other := f.draft(t, tenantID, `{"sections":[{"title":"Other"}]}`)
		p.SealedContent = other.SealedContent
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		resp, err := f.svc.GetByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "unavailable", resp.ContentStatus)
		assert.JSONEq(t, string(proposal.DefaultContent), string(resp.Content))
	})

	t.Run("serves legacy plaintext", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{}`)
		p.SealedContent = `{"sections":[{"title":"Legacy"}]}`
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		resp, err := f.svc.GetByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "available", resp.ContentStatus)
		assert.JSONEq(t, `{"sections":[{"title":"Legacy"}]}`, string(resp.Content))
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, id).Return(nil, proposal.ErrProposalNotFound)

		_, err := f.svc.GetByID(ctx, tenantID, id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestProposalService_UpdateContent(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	newDocument := json.RawMessage(`{"sections":[{"title":"Revised"}]}`)

	updateBody := func(t *testing.T, env *encryption.Envelope, data json.RawMessage) json.RawMessage {
		t.Helper()
		body, err := json.Marshal(encryption.EnvelopeUpdate{Envelope: *env, UpdateData: data})
		require.NoError(t, err)
		return body
	}

	t.Run("seals a plain document", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		before := p.SealedContent
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("Save", mock.Anything, p).Return(nil)
		f.pub.On("Publish", mock.Anything, publishes(proposal.EventTypeProposalContentChanged)).Return(nil)

		resp, err := f.svc.UpdateContent(ctx, tenantID, p.ID, newDocument)
		require.NoError(t, err)
		assert.JSONEq(t, string(newDocument), string(resp.Content))
		assert.NotEqual(t, before, p.SealedContent)
		assert.Equal(t, 2, resp.Version)
		f.pub.AssertExpectations(t)
	})

	t.Run("replaces through the current envelope", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		current, err := encryption.ParseEnvelope([]byte(p.SealedContent))
		require.NoError(t, err)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("Save", mock.Anything, p).Return(nil)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.svc.UpdateContent(ctx, tenantID, p.ID, updateBody(t, current, newDocument))
		require.NoError(t, err)
		assert.JSONEq(t, string(newDocument), string(resp.Content))

		replaced, err := encryption.ParseEnvelope([]byte(p.SealedContent))
		require.NoError(t, err)
		assert.NotEqual(t, current.Encrypted, replaced.Encrypted)
		var document json.RawMessage
		require.NoError(t, f.enc.DecryptInto(ctx, replaced, &document,
			encryption.WithAdditionalData(ContentAAD(tenantID, p.ID))))
		assert.JSONEq(t, string(newDocument), string(document))
	})

	t.Run("stale envelope conflicts", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		stale, err := f.enc.Encrypt(ctx, json.RawMessage(`{"sections":[]}`),
			encryption.WithAdditionalData(ContentAAD(tenantID, p.ID)))
		require.NoError(t, err)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err = f.svc.UpdateContent(ctx, tenantID, p.ID, updateBody(t, stale, newDocument))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("envelope of another proposal fails authentication", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		other := f.draft(t, tenantID, `{"sections":[]}`)
		p.SealedContent = other.SealedContent
		foreign, err := encryption.ParseEnvelope([]byte(other.SealedContent))
		require.NoError(t, err)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err = f.svc.UpdateContent(ctx, tenantID, p.ID, updateBody(t, foreign, newDocument))
		assert.ErrorIs(t, err, encryption.ErrAuthenticationFailed)
		assert.True(t, encryption.IsDecryptionFailure(err))
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("bare envelope is rejected", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err := f.svc.UpdateContent(ctx, tenantID, p.ID, json.RawMessage(p.SealedContent))
		assert.ErrorIs(t, err, ErrOpaqueContent)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		body := json.RawMessage(`{"encrypted":"zz:yy","iv":"00","keyId":"key-1","_updateData":{}}`)
		_, err := f.svc.UpdateContent(ctx, tenantID, p.ID, body)
		assert.ErrorIs(t, err, encryption.ErrMalformedEnvelope)
	})

	t.Run("invalid json", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err := f.svc.UpdateContent(ctx, tenantID, p.ID, json.RawMessage(`{"sections":`))
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("only drafts", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		require.NoError(t, p.Send())
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err := f.svc.UpdateContent(ctx, tenantID, p.ID, newDocument)
		assert.ErrorIs(t, err, proposal.ErrNotDraft)
	})
}

func TestProposalService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("send then accept", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("Save", mock.Anything, p).Return(nil).Twice()
		f.pub.On("Publish", mock.Anything, publishes(proposal.EventTypeProposalStatusChanged)).Return(nil).Twice()

		resp, err := f.svc.Send(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "sent", resp.Status)
		assert.NotNil(t, resp.SentAt)

		resp, err = f.svc.Accept(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "accepted", resp.Status)
		assert.NotNil(t, resp.DecidedAt)
		assert.Equal(t, 3, resp.Version)
		f.repo.AssertExpectations(t)
	})

	t.Run("reject records reason", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		require.NoError(t, p.Send())
		p.PullEvents()
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("Save", mock.Anything, p).Return(nil)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.svc.Reject(ctx, tenantID, p.ID, RejectProposalRequest{Reason: " Too expensive "})
		require.NoError(t, err)
		assert.Equal(t, "rejected", resp.Status)
		assert.Equal(t, "Too expensive", resp.RejectionReason)
	})

	t.Run("accept requires sent", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		_, err := f.svc.Accept(ctx, tenantID, p.ID)
		assert.ErrorIs(t, err, proposal.ErrNotSent)
		f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("conflict on save", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("Save", mock.Anything, p).Return(shared.ErrConcurrencyConflict)

		_, err := f.svc.Send(ctx, tenantID, p.ID)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestProposalService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	f := newFixture(t)
	p := f.draft(t, tenantID, `{"sections":[]}`)
	f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
	f.repo.On("Save", mock.Anything, p).Return(nil)

	validUntil := time.Now().AddDate(0, 1, 0)
	resp, err := f.svc.Update(ctx, tenantID, p.ID, UpdateProposalRequest{
		Title:      "Website redesign v2",
		Amount:     decimal.RequireFromString("2000"),
		ValidUntil: &validUntil,
	})
	require.NoError(t, err)
	assert.Equal(t, "Website redesign v2", resp.Title)
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, "available", resp.ContentStatus)
}

func TestProposalService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("deletes draft", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)
		f.repo.On("DeleteForTenant", mock.Anything, tenantID, p.ID).Return(nil)
		f.pub.On("Publish", mock.Anything, publishes(proposal.EventTypeProposalDeleted)).Return(nil)

		require.NoError(t, f.svc.Delete(ctx, tenantID, p.ID))
		f.repo.AssertExpectations(t)
		f.pub.AssertExpectations(t)
	})

	t.Run("sent proposals are kept", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		require.NoError(t, p.Send())
		f.repo.On("FindByIDForTenant", mock.Anything, tenantID, p.ID).Return(p, nil)

		err := f.svc.Delete(ctx, tenantID, p.ID)
		assert.ErrorIs(t, err, proposal.ErrCannotDelete)
		f.repo.AssertNotCalled(t, "DeleteForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProposalService_List(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	contactID := uuid.New()

	t.Run("filters by contact and status", func(t *testing.T) {
		f := newFixture(t)
		p := f.draft(t, tenantID, `{"sections":[]}`)
		matchFilter := mock.MatchedBy(func(filter shared.Filter) bool {
			return filter.Filters["contact_id"] == contactID && filter.Filters["status"] == "draft" && filter.Page == 2
		})
		f.repo.On("FindAllForTenant", mock.Anything, tenantID, matchFilter).Return([]proposal.Proposal{*p}, nil)
		f.repo.On("CountForTenant", mock.Anything, tenantID, matchFilter).Return(int64(21), nil)

		page, err := f.svc.List(ctx, tenantID, ProposalListFilter{
			ContactID: contactID.String(),
			Status:    "draft",
			Page:      2,
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, p.ID, page.Items[0].ID)
		assert.Equal(t, int64(21), page.Total)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("invalid contact id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.List(ctx, tenantID, ProposalListFilter{ContactID: "nope"})
		assert.Error(t, err)
	})
}
