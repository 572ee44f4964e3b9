package keyset

import (
	"context"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// Executor runs one search round trip. Implementations must be safe for
// concurrent use.
type Executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}

// FieldCatalog answers whether a field can anchor a keyset scan. Range
// predicates only work on numeric fields, and the anchor must be unique per
// document or the scan skips ties at page boundaries.
type FieldCatalog interface {
	SortableUnique(field string) bool
}
