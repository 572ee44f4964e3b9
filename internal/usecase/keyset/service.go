// Package keyset implements range-based pagination anchored on a sortable
// unique numeric field. Unlike skip/top windows, fetch cost stays flat at any
// depth and no offset ceiling applies.
//
// Anchors are numeric only, a narrower contract than the backend's sort
// support: the range predicate and the cursor's last-seen value are float64,
// so a TEXT SORTABLE field cannot anchor a scan even though SORTBY accepts
// it. Use a numeric surrogate (sequence number, timestamp) instead.
//
// The scan is forward-only: each page is fetched with an added range
// predicate (anchor > last seen value, or < when descending) and skip fixed
// at zero. A Paginator is single-owner state; resume across owners by
// handing off Token().
package keyset

import (
	"context"
	"fmt"
	"time"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/cursor"
	"github.com/pagedex/pagedex/internal/domain/search/filter"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/retry"
)

// Config holds paginator construction parameters.
type Config struct {
	Index      string
	Base       query.Query // window and sort fields are ignored; the paginator owns them
	SortField  string
	Descending bool
	PageSize   int
	Retry      retry.Policy
	// CallTimeout bounds each round trip. Zero means no per-call timeout.
	CallTimeout time.Duration
}

// Paginator performs a keyset scan over one index.
type Paginator struct {
	exec        Executor
	index       string
	base        query.Query
	cur         cursor.Cursor
	retry       retry.Policy
	callTimeout time.Duration

	loaded  bool
	current page.ResultPage
	// lastFull tracks whether the most recent page came back full. The
	// backend never reports how many documents remain past the anchor, so
	// a full page means "maybe more" and a short page means done.
	lastFull bool
}

// New creates a keyset paginator. The anchor field is validated against the
// catalog before any network call.
func New(exec Executor, catalog FieldCatalog, cfg Config) (*Paginator, error) {
	if cfg.SortField == "" {
		return nil, fmt.Errorf("%w: empty sort field", domain.ErrInvalidSortField)
	}
	if catalog != nil && !catalog.SortableUnique(cfg.SortField) {
		return nil, fmt.Errorf("%w: field %q is not sortable and unique", domain.ErrInvalidSortField, cfg.SortField)
	}
	limits := cfg.Base.Limits()
	if cfg.PageSize < 1 || cfg.PageSize > limits.MaxPageSize {
		return nil, domain.NewPageSize(cfg.PageSize, limits.MaxPageSize)
	}

	dir := cursor.Ascending
	if cfg.Descending {
		dir = cursor.Descending
	}
	return &Paginator{
		exec:        exec,
		index:       cfg.Index,
		base:        cfg.Base,
		cur:         cursor.Cursor{SortField: cfg.SortField, Direction: dir, PageSize: cfg.PageSize},
		retry:       cfg.Retry,
		callTimeout: cfg.CallTimeout,
	}, nil
}

// Resume reconstructs a paginator from an opaque token produced by Token().
// The token's anchor field is re-validated against the catalog.
func Resume(exec Executor, catalog FieldCatalog, index string, base query.Query, token string, pol retry.Policy) (*Paginator, error) {
	c, err := cursor.Decode(token)
	if err != nil {
		return nil, err
	}
	p, err := New(exec, catalog, Config{
		Index:      index,
		Base:       base,
		SortField:  c.SortField,
		Descending: c.Direction == cursor.Descending,
		PageSize:   c.PageSize,
		Retry:      pol,
	})
	if err != nil {
		return nil, err
	}
	p.cur = c
	// Resuming mid-scan means a page was already consumed elsewhere, so
	// the next LoadNext must continue past the anchor instead of starting
	// over.
	if c.Started() {
		p.loaded = true
		p.lastFull = true
	}
	return p, nil
}

// LoadFirst loads the first page of the scan from the top of the order.
func (p *Paginator) LoadFirst(ctx context.Context) (page.ResultPage, error) {
	p.cur.LastSeen = nil
	p.loaded = false
	return p.loadNextWindow(ctx)
}

// LoadNext loads the page after the current anchor. On an unstarted
// paginator it behaves like LoadFirst.
func (p *Paginator) LoadNext(ctx context.Context) (page.ResultPage, error) {
	if p.loaded && !p.HasNext() {
		return page.ResultPage{}, fmt.Errorf("keyset scan exhausted: %w", domain.ErrNoNextPage)
	}
	return p.loadNextWindow(ctx)
}

func (p *Paginator) loadNextWindow(ctx context.Context) (page.ResultPage, error) {
	q, err := p.windowQuery()
	if err != nil {
		return page.ResultPage{}, err
	}

	pg, err := p.execute(ctx, &q)
	if err != nil {
		return page.ResultPage{}, err
	}

	p.loaded = true
	p.current = pg
	p.lastFull = pg.Len() == p.cur.PageSize
	if pg.Len() > 0 {
		last := pg.Documents()[pg.Len()-1]
		anchor, ok := last.Numeric(p.cur.SortField)
		if !ok {
			return page.ResultPage{}, fmt.Errorf("%w: document %q has no numeric value for %q",
				domain.ErrInvalidSortField, last.Key(), p.cur.SortField)
		}
		p.cur = p.cur.Advance(anchor)
	}
	return pg, nil
}

// windowQuery builds the next page's query: base filters conjoined with the
// anchor range predicate, sorted by the anchor field, skip pinned to zero.
func (p *Paginator) windowQuery() (query.Query, error) {
	filters := p.base.Filters()
	if p.cur.Started() {
		var rng filter.Range
		if p.cur.Direction == cursor.Descending {
			rng = filter.LessThan(*p.cur.LastSeen)
		} else {
			rng = filter.GreaterThan(*p.cur.LastSeen)
		}
		cond, err := filter.NewRange(p.cur.SortField, rng)
		if err != nil {
			return query.Query{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
		}
		filters, err = filters.And(cond)
		if err != nil {
			return query.Query{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
		}
	}

	q := p.base.WithFilters(filters)
	return query.New(query.Params{
		Text:      q.Text(),
		Filters:   q.Filters(),
		Sort:      []query.Sort{{Field: p.cur.SortField, Desc: p.cur.Direction == cursor.Descending}},
		Select:    q.Select(),
		Top:       p.cur.PageSize,
		Highlight: q.Highlight(),
	}, q.Limits())
}

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

// HasNext reports whether more pages may exist. A full last page means maybe,
// so the terminal state is only discovered by the short page that follows.
func (p *Paginator) HasNext() bool {
	if !p.loaded {
		return true
	}
	return p.lastFull
}

// Current returns the most recently loaded page.
func (p *Paginator) Current() page.ResultPage { return p.current }

// Token returns an opaque resumption token for the current position.
func (p *Paginator) Token() (string, error) {
	return p.cur.Encode()
}

// SortField returns the anchor field of the scan.
func (p *Paginator) SortField() string { return p.cur.SortField }

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int { return p.cur.PageSize }
