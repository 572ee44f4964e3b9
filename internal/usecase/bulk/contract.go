package bulk

import (
	"context"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// Executor runs one search round trip. Must be safe for concurrent use; the
// fetcher fans calls out across a worker pool.
type Executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}
