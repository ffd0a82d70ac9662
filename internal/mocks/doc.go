// Package mocks provides testify mocks for the port interfaces.
//
// Each constructor registers AssertExpectations on t.Cleanup, so a test only
// declares what it expects:
//
//	store := mocks.NewMockStore(t)
//	store.On("AddFavorite", mock.Anything, "u1", "q1").Return(domain.Favorite{}, nil)
package mocks
