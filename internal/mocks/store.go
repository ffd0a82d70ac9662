package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// MockStore is a mock of ports.Store.
type MockStore struct {
	mock.Mock
}

var _ ports.Store = (*MockStore)(nil)

// NewMockStore creates a MockStore that asserts its expectations on cleanup.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockStore) ListQuotes(ctx context.Context, page ports.Page) ([]domain.Quote, error) {
	args := m.Called(ctx, page)
	return quotes(args, 0), args.Error(1)
}

func (m *MockStore) CountQuotes(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Quote), args.Error(1)
}

func (m *MockStore) SearchQuotes(ctx context.Context, filter domain.QuoteFilter) ([]domain.Quote, error) {
	args := m.Called(ctx, filter)
	return quotes(args, 0), args.Error(1)
}

func (m *MockStore) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return strs(args, 0), args.Error(1)
}

func (m *MockStore) ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error) {
	args := m.Called(ctx, userID)

	var out []domain.Favorite
	if v := args.Get(0); v != nil {
		out = v.([]domain.Favorite)
	}

	return out, args.Error(1)
}

func (m *MockStore) AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error) {
	args := m.Called(ctx, userID, quoteID)
	return args.Get(0).(domain.Favorite), args.Error(1)
}

func (m *MockStore) RemoveFavorite(ctx context.Context, userID, quoteID string) error {
	return m.Called(ctx, userID, quoteID).Error(0)
}

func (m *MockStore) CountFavorites(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) ListCollections(ctx context.Context, userID string) ([]domain.Collection, error) {
	args := m.Called(ctx, userID)

	var out []domain.Collection
	if v := args.Get(0); v != nil {
		out = v.([]domain.Collection)
	}

	return out, args.Error(1)
}

func (m *MockStore) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Collection), args.Error(1)
}

func (m *MockStore) CreateCollection(ctx context.Context, userID, name string) (domain.Collection, error) {
	args := m.Called(ctx, userID, name)
	return args.Get(0).(domain.Collection), args.Error(1)
}

func (m *MockStore) RenameCollection(ctx context.Context, id, name string) (domain.Collection, error) {
	args := m.Called(ctx, id, name)
	return args.Get(0).(domain.Collection), args.Error(1)
}

func (m *MockStore) DeleteCollection(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) CountCollections(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) ListItems(ctx context.Context, collectionID string) ([]domain.CollectionItem, error) {
	args := m.Called(ctx, collectionID)

	var out []domain.CollectionItem
	if v := args.Get(0); v != nil {
		out = v.([]domain.CollectionItem)
	}

	return out, args.Error(1)
}

func (m *MockStore) CollectionIDsForQuote(ctx context.Context, quoteID string) ([]string, error) {
	args := m.Called(ctx, quoteID)
	return strs(args, 0), args.Error(1)
}

func (m *MockStore) AddItem(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	args := m.Called(ctx, collectionID, quoteID)
	return args.Get(0).(domain.CollectionItem), args.Error(1)
}

func (m *MockStore) RemoveItem(ctx context.Context, collectionID, quoteID string) error {
	return m.Called(ctx, collectionID, quoteID).Error(0)
}

func (m *MockStore) RemoveQuoteFromCollections(ctx context.Context, quoteID string, collectionIDs []string) (int, error) {
	args := m.Called(ctx, quoteID, collectionIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *MockStore) UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func quotes(args mock.Arguments, i int) []domain.Quote {
	if v := args.Get(i); v != nil {
		return v.([]domain.Quote)
	}

	return nil
}

func strs(args mock.Arguments, i int) []string {
	if v := args.Get(i); v != nil {
		return v.([]string)
	}

	return nil
}
