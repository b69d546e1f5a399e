package proposal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoneyFromString(amount, valueobject.USD)
	require.NoError(t, err)
	return m
}

func newDraft(t *testing.T) *Proposal {
	t.Helper()
	p, err := NewProposal(uuid.New(), uuid.New(), "Website redesign", money(t, "12000"), nil)
	require.NoError(t, err)
	require.NoError(t, p.ReplaceContent(`{"sealed":1}`, json.RawMessage(`{"sections":[]}`)))
	p.PullEvents()
	return p
}

func TestNewProposal(t *testing.T) {
	tenantID, contactID := uuid.New(), uuid.New()

	t.Run("creates draft", func(t *testing.T) {
		p, err := NewProposal(tenantID, contactID, " Website redesign ", money(t, "12000"), nil)
		require.NoError(t, err)
		assert.Equal(t, "Website redesign", p.Title)
		assert.Equal(t, StatusDraft, p.Status)
		assert.Equal(t, contactID, p.ContactID)
		assert.Equal(t, ContentNotLoaded, p.ContentStatus)
		require.Len(t, p.PendingEvents(), 1)
		assert.Equal(t, EventTypeProposalCreated, p.PendingEvents()[0].EventType())
	})

	t.Run("validation", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		tests := []struct {
			name       string
			contactID  uuid.UUID
			title      string
			amount     valueobject.Money
			validUntil *time.Time
			code       string
		}{
			{"empty title", contactID, " ", money(t, "1"), nil, "INVALID_TITLE"},
			{"missing contact", uuid.Nil, "t", money(t, "1"), nil, "INVALID_CONTACT"},
			{"negative amount", contactID, "t", money(t, "-1"), nil, "INVALID_AMOUNT"},
			{"zero money", contactID, "t", valueobject.Money{}, nil, "INVALID_AMOUNT"},
			{"past validity", contactID, "t", money(t, "1"), &past, "INVALID_VALID_UNTIL"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewProposal(tenantID, tt.contactID, tt.title, tt.amount, tt.validUntil)
				var de *shared.DomainError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.code, de.Code)
			})
		}
	})
}

func TestProposal_ReplaceContent(t *testing.T) {
	p, err := NewProposal(uuid.New(), uuid.New(), "t", money(t, "1"), nil)
	require.NoError(t, err)

	require.NoError(t, p.ReplaceContent("sealed-1", json.RawMessage(`{"a":1}`)))
	assert.Equal(t, 1, p.Version, "initial content does not bump the version")
	assert.Equal(t, ContentAvailable, p.ContentStatus)

	require.NoError(t, p.ReplaceContent("sealed-2", json.RawMessage(`{"a":2}`)))
	assert.Equal(t, 2, p.Version)
	assert.Equal(t, "sealed-2", p.SealedContent)
	assert.Equal(t, EventTypeProposalContentChanged, p.PendingEvents()[1].EventType())

	assert.Error(t, p.ReplaceContent("", nil))

	require.NoError(t, p.Send())
	assert.ErrorIs(t, p.ReplaceContent("sealed-3", nil), ErrNotDraft)
	assert.Equal(t, "sealed-2", p.SealedContent)
}

func TestProposal_Lifecycle(t *testing.T) {
	t.Run("draft to accepted", func(t *testing.T) {
		p := newDraft(t)
		require.NoError(t, p.Send())
		assert.Equal(t, StatusSent, p.Status)
		assert.NotNil(t, p.SentAt)
		assert.False(t, p.CanDelete())

		require.NoError(t, p.Accept())
		assert.Equal(t, StatusAccepted, p.Status)
		assert.NotNil(t, p.DecidedAt)
		assert.True(t, p.Status.IsFinal())

		assert.ErrorIs(t, p.Reject("late"), ErrNotSent)
		assert.ErrorIs(t, p.Send(), ErrNotDraft)
		assert.Len(t, p.PendingEvents(), 2)
	})

	t.Run("draft to rejected", func(t *testing.T) {
		p := newDraft(t)
		require.NoError(t, p.Send())
		require.NoError(t, p.Reject("  too expensive "))
		assert.Equal(t, StatusRejected, p.Status)
		assert.Equal(t, "too expensive", p.RejectionReason)
		assert.True(t, p.CanDelete())

		ev := p.PendingEvents()[1].(*ProposalStatusChangedEvent)
		assert.Equal(t, StatusSent, ev.OldStatus)
		assert.Equal(t, StatusRejected, ev.NewStatus)
	})

	t.Run("cannot accept a draft", func(t *testing.T) {
		p := newDraft(t)
		assert.ErrorIs(t, p.Accept(), ErrNotSent)
		assert.True(t, p.CanDelete())
	})

	t.Run("cannot send without content", func(t *testing.T) {
		p, err := NewProposal(uuid.New(), uuid.New(), "t", money(t, "1"), nil)
		require.NoError(t, err)
		assert.Error(t, p.Send())
	})

	t.Run("expired proposals cannot be sent or accepted", func(t *testing.T) {
		p := newDraft(t)
		past := time.Now().Add(-time.Minute)
		p.ValidUntil = &past
		assert.ErrorIs(t, p.Send(), ErrExpired)

		p.Status = StatusSent
		assert.ErrorIs(t, p.Accept(), ErrExpired)
	})
}

func TestProposal_UpdateDetails(t *testing.T) {
	p := newDraft(t)
	future := time.Now().Add(48 * time.Hour)
	require.NoError(t, p.UpdateDetails("New title", money(t, "99.999"), &future))
	assert.Equal(t, "New title", p.Title)
	assert.Equal(t, "100.00 USD", p.Amount.String())

	assert.Error(t, p.UpdateDetails("", money(t, "1"), nil))

	require.NoError(t, p.Send())
	assert.ErrorIs(t, p.UpdateDetails("x", money(t, "1"), nil), ErrNotDraft)
}

func TestProposal_ContentReadState(t *testing.T) {
	p := newDraft(t)
	p.ContentUnreadable()
	assert.Equal(t, ContentUnavailable, p.ContentStatus)
	assert.JSONEq(t, `{"sections":[]}`, string(p.Content))

	p.OpenedContent(json.RawMessage(`{"sections":[{"title":"Scope"}]}`))
	assert.Equal(t, ContentAvailable, p.ContentStatus)
}
