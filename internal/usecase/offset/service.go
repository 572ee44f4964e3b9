// Package offset implements skip/top pagination over the query executor.
//
// A Paginator is single-owner state: one logical caller navigates it at a
// time. Concurrent navigation on the same instance must be serialized by the
// caller; the executor underneath is safe for concurrent use.
package offset

import (
	"context"
	"fmt"
	"time"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/retry"
)

// Config holds paginator construction parameters.
type Config struct {
	Index    string
	Base     query.Query // window fields are ignored; the paginator owns them
	PageSize int
	Retry    retry.Policy
	// CallTimeout bounds each round trip. Zero means no per-call timeout.
	CallTimeout time.Duration
}

// Paginator navigates a result set page by page using skip/top windows.
//
// The exact total count is requested on the first page only; subsequent
// pages reuse it. When the total is unknown, next-page existence is inferred
// from whether the last page came back full.
type Paginator struct {
	exec        Executor
	index       string
	base        query.Query
	pageSize    int
	retry       retry.Policy
	callTimeout time.Duration

	loaded      bool
	currentPage int
	current     page.ResultPage
	total       *int64
}

// New creates an offset paginator. The page size is validated against the
// base query's service limits.
func New(exec Executor, cfg Config) (*Paginator, error) {
	limits := cfg.Base.Limits()
	if cfg.PageSize < 1 || cfg.PageSize > limits.MaxPageSize {
		return nil, domain.NewPageSize(cfg.PageSize, limits.MaxPageSize)
	}
	return &Paginator{
		exec:        exec,
		index:       cfg.Index,
		base:        cfg.Base,
		pageSize:    cfg.PageSize,
		retry:       cfg.Retry,
		callTimeout: cfg.CallTimeout,
	}, nil
}

// LoadFirst loads page 0 and requests the exact total count.
func (p *Paginator) LoadFirst(ctx context.Context) (page.ResultPage, error) {
	return p.load(ctx, 0, true)
}

// LoadNext loads the page after the current one. On an uninitialized
// paginator it behaves like LoadFirst.
func (p *Paginator) LoadNext(ctx context.Context) (page.ResultPage, error) {
	if !p.loaded {
		return p.LoadFirst(ctx)
	}
	if !p.HasNext() {
		return page.ResultPage{}, fmt.Errorf("page %d: %w", p.currentPage, domain.ErrNoNextPage)
	}
	return p.load(ctx, p.currentPage+1, false)
}

// LoadPrevious loads the page before the current one.
func (p *Paginator) LoadPrevious(ctx context.Context) (page.ResultPage, error) {
	if !p.loaded || p.currentPage == 0 {
		return page.ResultPage{}, fmt.Errorf("page 0: %w", domain.ErrNoPreviousPage)
	}
	return p.load(ctx, p.currentPage-1, false)
}

// LoadPage jumps to an arbitrary zero-based page.
func (p *Paginator) LoadPage(ctx context.Context, n int) (page.ResultPage, error) {
	if n < 0 {
		return page.ResultPage{}, fmt.Errorf("%w: negative page %d", domain.ErrInvalidQuery, n)
	}
	return p.load(ctx, n, n == 0 && p.total == nil)
}

// LoadLast jumps to the final page. When the total count is not yet known it
// costs one extra minimal round trip to learn it.
func (p *Paginator) LoadLast(ctx context.Context) (page.ResultPage, error) {
	if p.total == nil {
		probe, err := p.base.WithWindow(0, 1, true)
		if err != nil {
			return page.ResultPage{}, err
		}
		pg, err := p.execute(ctx, &probe)
		if err != nil {
			return page.ResultPage{}, err
		}
		t, ok := pg.TotalCount()
		if !ok {
			return page.ResultPage{}, fmt.Errorf("%w: backend returned no total count", domain.ErrInvalidQuery)
		}
		p.total = &t
	}

	last := 0
	if *p.total > 0 {
		last = int((*p.total - 1) / int64(p.pageSize))
	}
	return p.load(ctx, last, false)
}

// load fetches page n. Window bounds are validated by the query layer before
// any network call; a window past the offset ceiling fails fast with
// DeepPaginationLimit.
func (p *Paginator) load(ctx context.Context, n int, requestCount bool) (page.ResultPage, error) {
	q, err := p.base.WithWindow(n*p.pageSize, p.pageSize, requestCount)
	if err != nil {
		return page.ResultPage{}, err
	}

	pg, err := p.execute(ctx, &q)
	if err != nil {
		return page.ResultPage{}, err
	}

	p.loaded = true
	p.currentPage = n
	p.current = pg
	if t, ok := pg.TotalCount(); ok {
		p.total = &t
	}
	return pg, nil
}

// execute runs one round trip under the retry policy and per-call timeout.
func (p *Paginator) execute(ctx context.Context, q *query.Query) (page.ResultPage, error) {
	var pg page.ResultPage
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		if p.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
		}
		var err error
		pg, err = p.exec.Execute(ctx, p.index, q)
		return err
	})
	if err != nil {
		return page.ResultPage{}, err
	}
	return pg, nil
}

// HasNext reports whether another page exists. Computed from the total count
// when known, otherwise inferred from the last page being full.
func (p *Paginator) HasNext() bool {
	if !p.loaded {
		return true
	}
	if p.total != nil {
		return int64(p.currentPage+1)*int64(p.pageSize) < *p.total
	}
	return p.current.Len() == p.pageSize
}

// HasPrevious reports whether a previous page exists.
func (p *Paginator) HasPrevious() bool {
	return p.loaded && p.currentPage > 0
}

// Current returns the most recently loaded page.
func (p *Paginator) Current() page.ResultPage { return p.current }

// CurrentPage returns the zero-based index of the loaded page.
func (p *Paginator) CurrentPage() int { return p.currentPage }

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int { return p.pageSize }

// TotalCount returns the exact total match count when known.
func (p *Paginator) TotalCount() (int64, bool) {
	if p.total == nil {
		return 0, false
	}
	return *p.total, true
}

// TotalPages returns the page count when the total is known.
func (p *Paginator) TotalPages() (int, bool) {
	if p.total == nil {
		return 0, false
	}
	if *p.total == 0 {
		return 0, true
	}
	return int((*p.total-1)/int64(p.pageSize)) + 1, true
}
