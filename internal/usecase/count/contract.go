package count

import (
	"context"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// Executor runs one search round trip. Used for sampling pages.
type Executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}

// Counter asks the backend for an exact total without fetching documents.
type Counter interface {
	CountExact(ctx context.Context, index string, q *query.Query) (int64, error)
}
