package pagedex

import (
	"context"

	"github.com/pagedex/pagedex/internal/usecase/highlight"
	offsetuc "github.com/pagedex/pagedex/internal/usecase/offset"
)

// Pager navigates a query page by page via offset windows. Pages are
// addressable in any order but the depth of skip+top is capped by the
// service offset ceiling. Not safe for concurrent use; confine a Pager to
// one goroutine.
type Pager struct {
	inner     *offsetuc.Paginator
	extractor *highlight.Extractor
}

// First loads page 0 and requests the exact total count.
func (p *Pager) First(ctx context.Context) (Page, error) {
	pg, err := p.inner.LoadFirst(ctx)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, p.extractor), nil
}

// Next loads the page after the current one. On a fresh Pager it behaves
// like First. Returns ErrNoNextPage past the last page.
func (p *Pager) Next(ctx context.Context) (Page, error) {
	pg, err := p.inner.LoadNext(ctx)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, p.extractor), nil
}

// Previous loads the page before the current one.
// Returns ErrNoPreviousPage on page 0 or before the first load.
func (p *Pager) Previous(ctx context.Context) (Page, error) {
	pg, err := p.inner.LoadPrevious(ctx)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, p.extractor), nil
}

// Page jumps directly to the zero-based page n.
func (p *Pager) Page(ctx context.Context, n int) (Page, error) {
	pg, err := p.inner.LoadPage(ctx, n)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, p.extractor), nil
}

// Last jumps to the final page, probing for the total first when it is not
// known yet.
func (p *Pager) Last(ctx context.Context) (Page, error) {
	pg, err := p.inner.LoadLast(ctx)
	if err != nil {
		return Page{}, err
	}
	return fromResultPage(pg, p.extractor), nil
}

// HasNext reports whether another page is (or may be) available. Before the
// total is known a full current page means "maybe more".
func (p *Pager) HasNext() bool { return p.inner.HasNext() }

// HasPrevious reports whether the current page has a predecessor.
func (p *Pager) HasPrevious() bool { return p.inner.HasPrevious() }

// CurrentPage returns the zero-based number of the loaded page.
func (p *Pager) CurrentPage() int { return p.inner.CurrentPage() }

// TotalCount returns the exact total when known.
func (p *Pager) TotalCount() (int64, bool) { return p.inner.TotalCount() }

// TotalPages returns the page count when the total is known.
func (p *Pager) TotalPages() (int, bool) { return p.inner.TotalPages() }
