package search

import (
	"context"
	"testing"

	"github.com/pagedex/pagedex/internal/db"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn            func(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	countFn             func(ctx context.Context, q *db.Query) (int64, error)
	supportsHighlightFn func(ctx context.Context) bool
}

func (m *mockStore) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Count(ctx context.Context, q *db.Query) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, q)
	}
	return 0, nil
}

func (m *mockStore) SupportsHighlight(ctx context.Context) bool {
	if m.supportsHighlightFn != nil {
		return m.supportsHighlightFn(ctx)
	}
	return false
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func mustQuery(t *testing.T, p query.Params) *query.Query {
	t.Helper()
	q, err := query.New(p, query.DefaultLimits())
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}
