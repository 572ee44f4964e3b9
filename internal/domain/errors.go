package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed filter, sort, or select clause.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidPageSize signals a page size outside the service bounds.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrDeepPaginationLimit signals skip+top beyond the service offset ceiling.
	ErrDeepPaginationLimit = errors.New("deep pagination limit exceeded")
	// ErrNoNextPage signals navigation past the last page.
	ErrNoNextPage = errors.New("no next page")
	// ErrNoPreviousPage signals navigation before the first page.
	ErrNoPreviousPage = errors.New("no previous page")
	// ErrInvalidSortField signals a keyset sort field that is not unique-sortable.
	ErrInvalidSortField = errors.New("invalid sort field")
	// ErrUnknownField signals a selected field missing from the catalog.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownTagStyle signals an unrecognized highlight tag style.
	ErrUnknownTagStyle = errors.New("unknown tag style")
	// ErrTransient signals a retryable service failure (rate limit, 5xx, timeout).
	ErrTransient = errors.New("transient service error")
	// ErrHighlightNotSupported signals that the backend lacks server-side highlighting.
	ErrHighlightNotSupported = errors.New("highlighting not supported by backend")
)

// DeepPaginationError wraps ErrDeepPaginationLimit with the offending window.
type DeepPaginationError struct {
	Skip    int
	Top     int
	Ceiling int
}

func (e *DeepPaginationError) Error() string {
	return fmt.Sprintf("%s: skip %d + top %d exceeds ceiling %d",
		ErrDeepPaginationLimit.Error(), e.Skip, e.Top, e.Ceiling)
}

func (e *DeepPaginationError) Unwrap() error { return ErrDeepPaginationLimit }

// NewDeepPagination creates a deep pagination error.
func NewDeepPagination(skip, top, ceiling int) error {
	return &DeepPaginationError{Skip: skip, Top: top, Ceiling: ceiling}
}

// PageSizeError wraps ErrInvalidPageSize with the offending size and bound.
type PageSizeError struct {
	Size int
	Max  int
}

func (e *PageSizeError) Error() string {
	return fmt.Sprintf("%s: %d not in [1, %d]", ErrInvalidPageSize.Error(), e.Size, e.Max)
}

func (e *PageSizeError) Unwrap() error { return ErrInvalidPageSize }

// NewPageSize creates a page size error.
func NewPageSize(size, maxSize int) error {
	return &PageSizeError{Size: size, Max: maxSize}
}

// TransientError wraps ErrTransient with the failing operation for diagnostics.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransient.Error(), e.Op, e.Err)
}

func (e *TransientError) Unwrap() []error { return []error{ErrTransient, e.Err} }

// NewTransient creates a transient error carrying the failing operation.
func NewTransient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
