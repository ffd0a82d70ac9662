package collections

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/mocks"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

var errRemote = errors.New("remote unavailable")

func newTestManager(t *testing.T, mode optimistic.Mode) (*Manager, *mocks.MockStore, *mocks.MockAlertPublisher) {
	t.Helper()

	store := mocks.NewMockStore(t)
	alerts := mocks.NewMockAlertPublisher(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewManager(Config{
		Collections: store,
		Items:       store,
		Alerts:      alerts,
		Executor:    app.NewExecutor(logger),
		Mode:        mode,
		Logger:      logger,
		Now:         func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})

	return m, store, alerts
}

func TestNewManager_PanicsWithoutStores(t *testing.T) {
	assert.Panics(t, func() { NewManager(Config{}) })
}

func TestManager_List(t *testing.T) {
	t.Run("returns store rows", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		want := []domain.Collection{{ID: "c2", UserID: "u1"}, {ID: "c1", UserID: "u1"}}
		store.On("ListCollections", mock.Anything, "u1").Return(want, nil)

		assert.Equal(t, want, m.List(context.Background(), "u1"))
	})

	t.Run("error yields empty list", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("ListCollections", mock.Anything, "u1").Return(nil, errRemote)

		got := m.List(context.Background(), "u1")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestManager_Get(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	store.On("GetCollection", mock.Anything, "c1").Return(domain.Collection{ID: "c1", UserID: "u1", Name: "Stoics"}, nil)
	store.On("GetCollection", mock.Anything, "c9").Return(domain.Collection{}, domain.NewNotFoundError("collection", "c9"))

	c, err := m.Get(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Stoics", c.Name)

	_, err = m.Get(context.Background(), "u2", "c1")
	assert.True(t, domain.IsForbidden(err))

	_, err = m.Get(context.Background(), "u1", "c9")
	assert.True(t, domain.IsNotFound(err))
}

func TestManager_Create(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		setup     func(*mocks.MockStore)
		wantName  string
		errCheck  func(error) bool
		wantCalls int
	}{
		{
			name:  "trims and inserts once",
			input: "  Morning  ",
			setup: func(s *mocks.MockStore) {
				s.On("CreateCollection", mock.Anything, "u1", "Morning").
					Return(domain.Collection{ID: "c1", UserID: "u1", Name: "Morning"}, nil).Once()
			},
			wantName:  "Morning",
			wantCalls: 1,
		},
		{
			name:      "whitespace only is rejected before any remote call",
			input:     "   ",
			setup:     func(*mocks.MockStore) {},
			errCheck:  domain.IsValidation,
			wantCalls: 0,
		},
		{
			name:      "too long is rejected",
			input:     strings.Repeat("x", domain.MaxCollectionNameLength+1),
			setup:     func(*mocks.MockStore) {},
			errCheck:  domain.IsValidation,
			wantCalls: 0,
		},
		{
			name:  "store error is surfaced",
			input: "Evening",
			setup: func(s *mocks.MockStore) {
				s.On("CreateCollection", mock.Anything, "u1", "Evening").
					Return(domain.Collection{}, domain.NewUnavailableError("store", "timeout")).Once()
			},
			errCheck:  domain.IsUnavailable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newTestManager(t, optimistic.LastCompleted)
			tt.setup(store)

			c, err := m.Create(context.Background(), "u1", tt.input)

			if tt.errCheck != nil {
				require.Error(t, err)
				assert.True(t, tt.errCheck(err), "unexpected error: %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, c.Name)
			}

			store.AssertNumberOfCalls(t, "CreateCollection", tt.wantCalls)
		})
	}
}

func TestManager_Create_RequiresUser(t *testing.T) {
	m, _, _ := newTestManager(t, optimistic.LastCompleted)

	_, err := m.Create(context.Background(), "", "Name")
	assert.True(t, domain.IsUnauthenticated(err))
}

func TestManager_Rename(t *testing.T) {
	t.Run("owner renames", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("GetCollection", mock.Anything, "c1").Return(domain.Collection{ID: "c1", UserID: "u1"}, nil)
		store.On("RenameCollection", mock.Anything, "c1", "Night").
			Return(domain.Collection{ID: "c1", UserID: "u1", Name: "Night"}, nil)

		c, err := m.Rename(context.Background(), "u1", "c1", " Night ")

		require.NoError(t, err)
		assert.Equal(t, "Night", c.Name)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("GetCollection", mock.Anything, "c1").Return(domain.Collection{ID: "c1", UserID: "u2"}, nil)

		_, err := m.Rename(context.Background(), "u1", "c1", "Night")

		assert.True(t, domain.IsForbidden(err))
		store.AssertNotCalled(t, "RenameCollection", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("blank name skips the store", func(t *testing.T) {
		m, _, _ := newTestManager(t, optimistic.LastCompleted)

		_, err := m.Rename(context.Background(), "u1", "c1", "")
		assert.True(t, domain.IsValidation(err))
	})
}

func TestManager_Delete(t *testing.T) {
	t.Run("deletes only the collection row", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("GetCollection", mock.Anything, "c1").Return(domain.Collection{ID: "c1", UserID: "u1"}, nil)
		store.On("DeleteCollection", mock.Anything, "c1").Return(nil)

		require.NoError(t, m.Delete(context.Background(), "u1", "c1"))
		store.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing collection", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("GetCollection", mock.Anything, "c9").
			Return(domain.Collection{}, domain.NewNotFoundError("collection", "c9"))

		err := m.Delete(context.Background(), "u1", "c9")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("store error is surfaced", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("GetCollection", mock.Anything, "c1").Return(domain.Collection{ID: "c1", UserID: "u1"}, nil)
		store.On("DeleteCollection", mock.Anything, "c1").Return(errRemote)

		require.ErrorIs(t, m.Delete(context.Background(), "u1", "c1"), errRemote)
	})
}

func TestManager_AddQuote_DuplicateSurfacesConflict(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	store.On("AddItem", mock.Anything, "c1", "q1").
		Return(domain.CollectionItem{}, domain.NewConflictError("collection_item", "duplicate"))

	_, err := m.AddQuote(context.Background(), "c1", "q1")
	assert.True(t, domain.IsConflict(err))
}

func TestManager_CreateWithQuotes(t *testing.T) {
	t.Run("empty selection is rejected", func(t *testing.T) {
		m, _, _ := newTestManager(t, optimistic.LastCompleted)

		_, err := m.CreateWithQuotes(context.Background(), "u1", "Name", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "select at least one quote")
	})

	t.Run("adds every quote", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("CreateCollection", mock.Anything, "u1", "Trip").
			Return(domain.Collection{ID: "c1", UserID: "u1", Name: "Trip"}, nil)
		for _, q := range []string{"q1", "q2", "q3"} {
			store.On("AddItem", mock.Anything, "c1", q).Return(domain.CollectionItem{CollectionID: "c1", QuoteID: q}, nil).Once()
		}

		c, err := m.CreateWithQuotes(context.Background(), "u1", "Trip", []string{"q1", "q2", "q3"})

		require.NoError(t, err)
		assert.Equal(t, "c1", c.ID)
	})

	t.Run("failed insert removes the new collection", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("CreateCollection", mock.Anything, "u1", "Trip").
			Return(domain.Collection{ID: "c1", UserID: "u1", Name: "Trip"}, nil)
		store.On("AddItem", mock.Anything, "c1", "q1").Return(domain.CollectionItem{}, errRemote)
		store.On("DeleteCollection", mock.Anything, "c1").Return(nil).Once()

		_, err := m.CreateWithQuotes(context.Background(), "u1", "Trip", []string{"q1"})

		require.ErrorIs(t, err, errRemote)
	})
}

func TestMembership_LoadKeepsOnlyOwnedCollections(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	store.On("ListCollections", mock.Anything, "u1").
		Return([]domain.Collection{{ID: "c1"}, {ID: "c2"}}, nil).Once()
	store.On("CollectionIDsForQuote", mock.Anything, "q1").Return([]string{"c2", "other-users"}, nil).Once()

	sheet := m.Membership("u1", "q1")
	require.NoError(t, sheet.Load(context.Background()))

	assert.Equal(t, []string{"c2"}, sheet.Selected())
	assert.NotSame(t, sheet, m.Membership("u1", "q1"))
}

func TestMembership_Toggle(t *testing.T) {
	t.Run("adds optimistically", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		release := make(chan struct{})
		store.On("AddItem", mock.Anything, "c1", "q1").
			Run(func(mock.Arguments) { <-release }).
			Return(domain.CollectionItem{ID: "i1"}, nil)

		sheet := m.Membership("u1", "q1")
		tg := sheet.Toggle(context.Background(), "c1")

		assert.True(t, tg.Selected)
		assert.True(t, sheet.IsSelected("c1"))

		close(release)
		require.NoError(t, tg.Wait())
		assert.True(t, sheet.IsSelected("c1"))
	})

	t.Run("failure reverts and alerts", func(t *testing.T) {
		m, store, alerts := newTestManager(t, optimistic.LastCompleted)
		store.On("AddItem", mock.Anything, "c1", "q1").Return(domain.CollectionItem{}, errRemote)
		alerts.On("Publish", mock.Anything, mock.MatchedBy(func(a ports.Alert) bool {
			return a.Message == "Failed to update collection." && a.UserID == "u1"
		})).Return(nil)

		sheet := m.Membership("u1", "q1")
		tg := sheet.Toggle(context.Background(), "c1")

		require.ErrorIs(t, tg.Wait(), errRemote)
		assert.False(t, sheet.IsSelected("c1"))
		assert.Equal(t, "rolled_back", tg.Outcome())
	})

	t.Run("removes a selected collection", func(t *testing.T) {
		m, store, _ := newTestManager(t, optimistic.LastCompleted)
		store.On("ListCollections", mock.Anything, "u1").Return([]domain.Collection{{ID: "c1"}}, nil)
		store.On("CollectionIDsForQuote", mock.Anything, "q1").Return([]string{"c1"}, nil)
		store.On("RemoveItem", mock.Anything, "c1", "q1").Return(nil)

		sheet := m.Membership("u1", "q1")
		require.NoError(t, sheet.Load(context.Background()))

		tg := sheet.Toggle(context.Background(), "c1")
		assert.False(t, tg.Selected)
		require.NoError(t, tg.Wait())
		assert.False(t, sheet.IsSelected("c1"))
	})
}

func TestMembership_OrderingModes(t *testing.T) {
	tests := []struct {
		mode         optimistic.Mode
		wantSelected bool
		wantAlert    bool
	}{
		{mode: optimistic.LastCompleted, wantSelected: false, wantAlert: true},
		{mode: optimistic.Versioned, wantSelected: true, wantAlert: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			m, store, alerts := newTestManager(t, tt.mode)
			release := make(chan struct{})

			store.On("AddItem", mock.Anything, "c1", "q1").
				Run(func(mock.Arguments) { <-release }).
				Return(domain.CollectionItem{}, errRemote).Once()
			store.On("RemoveItem", mock.Anything, "c1", "q1").Return(nil).Once()
			store.On("AddItem", mock.Anything, "c1", "q1").Return(domain.CollectionItem{ID: "i1"}, nil).Once()

			if tt.wantAlert {
				alerts.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
			}

			sheet := m.Membership("u1", "q1")
			sheet.Toggle(context.Background(), "c1")
			sheet.Toggle(context.Background(), "c1")
			sheet.Toggle(context.Background(), "c1")

			close(release)
			sheet.Wait()

			assert.Equal(t, tt.wantSelected, sheet.IsSelected("c1"))
		})
	}
}

func TestMembership_LoadSeesItemsRemovedElsewhere(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	ctx := context.Background()

	store.On("ListCollections", mock.Anything, "u1").Return([]domain.Collection{{ID: "c1"}}, nil)
	store.On("CollectionIDsForQuote", mock.Anything, "q1").Return([]string{}, nil).Once()
	store.On("AddItem", mock.Anything, "c1", "q1").Return(domain.CollectionItem{ID: "i1"}, nil).Twice()

	first := m.Membership("u1", "q1")
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.Toggle(ctx, "c1").Wait())

	// Un-favoriting removed the item behind the sheet's back.
	store.On("CollectionIDsForQuote", mock.Anything, "q1").Return([]string{}, nil).Once()

	again := m.Membership("u1", "q1")
	require.NoError(t, again.Load(ctx))
	require.False(t, again.IsSelected("c1"))

	tg := again.Toggle(ctx, "c1")
	assert.True(t, tg.Selected)
	require.NoError(t, tg.Wait())

	store.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestMembership_LoadWaitsForQueuedWrites(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	ctx := context.Background()
	release := make(chan struct{})

	store.On("ListCollections", mock.Anything, "u1").Return([]domain.Collection{{ID: "c1"}}, nil)
	store.On("AddItem", mock.Anything, "c1", "q1").
		Run(func(mock.Arguments) { <-release }).
		Return(domain.CollectionItem{ID: "i1"}, nil).Once()
	store.On("CollectionIDsForQuote", mock.Anything, "q1").Return([]string{"c1"}, nil).Once()

	m.Membership("u1", "q1").Toggle(ctx, "c1")

	loaded := make(chan error, 1)
	sheet := m.Membership("u1", "q1")

	go func() { loaded <- sheet.Load(ctx) }()

	select {
	case <-loaded:
		t.Fatal("load finished before the queued write")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-loaded)
	assert.True(t, sheet.IsSelected("c1"))

	m.Wait()
}

func TestMembership_LoadHonorsCancellation(t *testing.T) {
	m, store, _ := newTestManager(t, optimistic.LastCompleted)
	release := make(chan struct{})

	store.On("AddItem", mock.Anything, "c1", "q1").
		Run(func(mock.Arguments) { <-release }).
		Return(domain.CollectionItem{ID: "i1"}, nil).Once()

	m.Membership("u1", "q1").Toggle(context.Background(), "c1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Membership("u1", "q1").Load(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	m.Wait()
}
