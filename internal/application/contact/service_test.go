package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func strPtr(s string) *string { return &s }

func existingContact(t *testing.T, tenantID uuid.UUID) *contact.Contact {
	t.Helper()
	c, err := contact.NewContactWithDetails(tenantID, "John Doe", contact.Changes{
		Email:      strPtr("john@example.com"),
		NationalID: strPtr("123-45-6789"),
	})
	require.NoError(t, err)
	c.PullEvents()
	return c
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}

func TestContactService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("creates contact and publishes creation", func(t *testing.T) {
		repo := new(MockContactRepository)
		pub := new(MockEventPublisher)
		svc := NewContactService(repo, nil)
		svc.SetEventPublisher(pub)

		repo.On("ExistsByEmail", mock.Anything, tenantID, "john@example.com", uuid.Nil).Return(false, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(c *contact.Contact) bool {
			return c.NationalID == "123-45-6789" && c.Version == 1 && *c.CreatedBy == userID
		})).Return(nil)
		pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			return assert.ObjectsAreEqual([]string{contact.EventTypeContactCreated}, eventTypes(events))
		})).Return(nil)

		resp, err := svc.Create(ctx, tenantID, CreateContactRequest{
			Name:       "John Doe",
			Email:      "john@example.com",
			NationalID: "123-45-6789",
			CreatedBy:  &userID,
		})
		require.NoError(t, err)
		assert.Equal(t, "John Doe", resp.Name)
		assert.Equal(t, "123-45-6789", resp.NationalID)
		assert.Equal(t, "active", resp.Status)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		repo.On("ExistsByEmail", mock.Anything, tenantID, "john@example.com", uuid.Nil).Return(true, nil)

		_, err := svc.Create(ctx, tenantID, CreateContactRequest{Name: "John", Email: "john@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("checks the normalised email", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		repo.On("ExistsByEmail", mock.Anything, tenantID, "Ana@x.com", uuid.Nil).Return(true, nil)

		_, err := svc.Create(ctx, tenantID, CreateContactRequest{Name: "Ana", Email: "  Ana@x.com "})
		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unique violation on insert is email taken", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		repo.On("ExistsByEmail", mock.Anything, tenantID, "ana@x.com", uuid.Nil).Return(false, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(contact.ErrEmailTaken)

		_, err := svc.Create(ctx, tenantID, CreateContactRequest{Name: "Ana", Email: "ana@x.com"})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, shared.CodeAlreadyExists, de.Code)
	})

	t.Run("encryption failure fails the request", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		sealErr := errors.New("failed to encrypt data: invalid key")
		repo.On("Create", mock.Anything, mock.Anything).Return(sealErr)

		_, err := svc.Create(ctx, tenantID, CreateContactRequest{Name: "John", TaxID: "X"})
		assert.ErrorIs(t, err, sealErr)
	})

	t.Run("invalid details", func(t *testing.T) {
		svc := NewContactService(new(MockContactRepository), nil)
		_, err := svc.Create(ctx, tenantID, CreateContactRequest{Name: "John", DateOfBirth: "2999-01-01"})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "INVALID_DATE_OF_BIRTH", de.Code)
	})
}

func TestContactService_GetByID(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockContactRepository)
	svc := NewContactService(repo, nil)

	c := existingContact(t, tenantID)
	c.MarkUnreadable(contact.FieldNationalID)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)

	resp, err := svc.GetByID(ctx, tenantID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.NationalID)
	assert.Equal(t, []string{contact.FieldNationalID}, resp.UnreadableFields)

	missing := uuid.New()
	repo.On("FindByIDForTenant", mock.Anything, tenantID, missing).Return(nil, contact.ErrContactNotFound)
	_, err = svc.GetByID(ctx, tenantID, missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestContactService_List(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockContactRepository)
	svc := NewContactService(repo, nil)

	contacts := []contact.Contact{*existingContact(t, tenantID), *existingContact(t, tenantID)}
	matchFilter := mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 2 && f.PageSize == 1 && f.Search == "john" && f.Filters["status"] == "active"
	})
	repo.On("FindAllForTenant", mock.Anything, tenantID, matchFilter).Return(contacts[:1], nil)
	repo.On("CountForTenant", mock.Anything, tenantID, matchFilter).Return(int64(2), nil)

	page, err := svc.List(ctx, tenantID, ContactListFilter{Search: "john", Status: "active", Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestContactService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("saves and publishes changed field names", func(t *testing.T) {
		repo := new(MockContactRepository)
		pub := new(MockEventPublisher)
		svc := NewContactService(repo, nil)
		svc.SetEventPublisher(pub)

		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
		repo.On("Save", mock.Anything, c).Return(nil)
		pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
			if len(events) != 1 {
				return false
			}
			ev, ok := events[0].(*contact.ContactUpdatedEvent)
			return ok && assert.ObjectsAreEqual([]string{contact.FieldTaxID}, ev.ChangedFields)
		})).Return(nil)

		resp, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{TaxID: strPtr("DE123")})
		require.NoError(t, err)
		assert.Equal(t, "DE123", resp.TaxID)
		assert.Equal(t, 2, resp.Version)
		pub.AssertExpectations(t)
	})

	t.Run("no-op update does not save", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)

		_, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{NationalID: strPtr("123-45-6789")})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("email taken by another contact", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
		repo.On("ExistsByEmail", mock.Anything, tenantID, "jane@example.com", c.ID).Return(true, nil)

		_, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{Email: strPtr("jane@example.com")})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("email check uses the normalised address", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
		repo.On("ExistsByEmail", mock.Anything, tenantID, "jane@example.com", c.ID).Return(true, nil)

		_, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{Email: strPtr(" jane@example.com\t")})
		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unchanged email is not rechecked", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)

		_, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{Email: strPtr(" john@example.com ")})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent modification", func(t *testing.T) {
		repo := new(MockContactRepository)
		svc := NewContactService(repo, nil)
		c := existingContact(t, tenantID)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
		repo.On("Save", mock.Anything, c).Return(shared.ErrConcurrencyConflict)

		_, err := svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{Notes: strPtr("call back")})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestContactService_Archive(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockContactRepository)
	pub := new(MockEventPublisher)
	svc := NewContactService(repo, nil)
	svc.SetEventPublisher(pub)

	c := existingContact(t, tenantID)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
	repo.On("Save", mock.Anything, c).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	resp, err := svc.Archive(ctx, tenantID, c.ID)
	require.NoError(t, err, "publish failures do not fail the operation")
	assert.Equal(t, "archived", resp.Status)

	_, err = svc.Update(ctx, tenantID, c.ID, UpdateContactRequest{Notes: strPtr("x")})
	assert.ErrorIs(t, err, contact.ErrContactArchived)
}

func TestContactService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockContactRepository)
	pub := new(MockEventPublisher)
	svc := NewContactService(repo, nil)
	svc.SetEventPublisher(pub)

	c := existingContact(t, tenantID)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, c.ID).Return(c, nil)
	repo.On("DeleteForTenant", mock.Anything, tenantID, c.ID).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return assert.ObjectsAreEqual([]string{contact.EventTypeContactDeleted}, eventTypes(events))
	})).Return(nil)

	require.NoError(t, svc.Delete(ctx, tenantID, c.ID))
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}
