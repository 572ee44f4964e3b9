package offset

import (
	"context"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// Executor runs one validated query round trip. Satisfied by the search
// repository directly or by the caching decorator.
type Executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}
