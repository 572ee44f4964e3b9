package count

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

type mockCounter struct {
	CountExactFunc func(ctx context.Context, index string, q *query.Query) (int64, error)

	calls int
}

func (m *mockCounter) CountExact(ctx context.Context, index string, q *query.Query) (int64, error) {
	m.calls++
	return m.CountExactFunc(ctx, index, q)
}
