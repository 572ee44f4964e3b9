package keyset

import (
	"context"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

type mockExecutor struct {
	ExecuteFunc func(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)

	calls []*query.Query
}

func (m *mockExecutor) Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	m.calls = append(m.calls, q)
	return m.ExecuteFunc(ctx, index, q)
}

type mockCatalog struct {
	fields map[string]bool
}

func (m *mockCatalog) SortableUnique(field string) bool { return m.fields[field] }
