package pagedex

import (
	"context"

	"github.com/pagedex/pagedex/internal/usecase/highlight"
	keysetuc "github.com/pagedex/pagedex/internal/usecase/keyset"
)

// Scanner walks a query forward in anchor-field order. Its position is a
// range predicate on the last seen anchor value, so it stays stable under
// concurrent writes and never hits a depth ceiling. Not safe for concurrent
// use; confine a Scanner to one goroutine.
type Scanner struct {
	inner     *keysetuc.Paginator
	extractor *highlight.Extractor
}

// Next loads the next window of results.
// Returns ErrNoNextPage once the scan is exhausted.
func (s *Scanner) Next(ctx context.Context) (Page, error) {
	pg, err := s.inner.LoadNext(ctx)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, s.extractor), nil
}

// HasNext reports whether the scan may produce more results. A full last
// window means "maybe more"; the next Next call settles it.
func (s *Scanner) HasNext() bool { return s.inner.HasNext() }

// Token serializes the scan position into an opaque string. Pass it to
// Index.ResumeScan to continue later, across process restarts included.
func (s *Scanner) Token() (string, error) { return s.inner.Token() }
