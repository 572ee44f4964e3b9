package pagedex

import "github.com/pagedex/pagedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery          = domain.ErrInvalidQuery
	ErrInvalidPageSize       = domain.ErrInvalidPageSize
	ErrDeepPaginationLimit   = domain.ErrDeepPaginationLimit
	ErrNoNextPage            = domain.ErrNoNextPage
	ErrNoPreviousPage        = domain.ErrNoPreviousPage
	ErrInvalidSortField      = domain.ErrInvalidSortField
	ErrUnknownField          = domain.ErrUnknownField
	ErrUnknownTagStyle       = domain.ErrUnknownTagStyle
	ErrTransient             = domain.ErrTransient
	ErrHighlightNotSupported = domain.ErrHighlightNotSupported
)
