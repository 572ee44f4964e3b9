package pagedex

import (
	"context"
	"fmt"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	bulkuc "github.com/pagedex/pagedex/internal/usecase/bulk"
	countuc "github.com/pagedex/pagedex/internal/usecase/count"
	keysetuc "github.com/pagedex/pagedex/internal/usecase/keyset"
	offsetuc "github.com/pagedex/pagedex/internal/usecase/offset"
)

// Index is a handle for search operations against one index.
type Index struct {
	name     string
	c        *Client
	sortable map[string]bool
}

// IndexOption configures an Index handle.
type IndexOption func(*Index)

// Sortable declares the fields a keyset scan may anchor on. The fields must
// be numeric and unique per document. Without this option any field is
// accepted and mistakes surface at scan time instead.
func Sortable(fields ...string) IndexOption {
	return func(idx *Index) {
		idx.sortable = make(map[string]bool, len(fields))
		for _, f := range fields {
			idx.sortable[f] = true
		}
	}
}

// Index returns a handle for the named index.
func (c *Client) Index(name string, opts ...IndexOption) *Index {
	idx := &Index{name: name, c: c}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

func (idx *Index) catalog() keysetuc.FieldCatalog {
	if len(idx.sortable) == 0 {
		return openCatalog{}
	}
	return declaredCatalog(idx.sortable)
}

// openCatalog accepts any non-empty anchor field.
type openCatalog struct{}

func (openCatalog) SortableUnique(field string) bool { return field != "" }

type declaredCatalog map[string]bool

func (c declaredCatalog) SortableUnique(field string) bool { return c[field] }

// Search executes the query and returns the first page of results.
func (idx *Index) Search(ctx context.Context, qb *QueryBuilder) (Page, error) {
	return idx.SearchWindow(ctx, qb, 0, 0, false)
}

// SearchWindow executes the query positioned at an explicit skip/top window.
// Zero top means the default page size. When includeTotal is set the page
// carries the exact total count.
func (idx *Index) SearchWindow(ctx context.Context, qb *QueryBuilder, skip, top int, includeTotal bool) (Page, error) {
	q, extractor, err := qb.build(idx.c.limits, skip, top, includeTotal)
	if err != nil {
		return Page{}, fmt.Errorf("search %q: %w", idx.name, err)
	}

	pg, err := idx.execute(ctx, &q)
	if err != nil {
		return Page{}, fmt.Errorf("search %q: %w", idx.name, err)
	}
	return fromResultPage(pg, extractor), nil
}

func (idx *Index) execute(ctx context.Context, q *query.Query) (page.ResultPage, error) {
	var pg page.ResultPage
	err := idx.c.retry.Do(ctx, func(ctx context.Context) error {
		if idx.c.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, idx.c.callTimeout)
			defer cancel()
		}
		var err error
		pg, err = idx.c.exec.Execute(ctx, idx.name, q)
		return err
	})
	return pg, err
}

// Count returns the exact number of documents matching the query.
func (idx *Index) Count(ctx context.Context, qb *QueryBuilder) (int64, error) {
	q, _, err := qb.build(idx.c.limits, 0, 1, true)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", idx.name, err)
	}
	est, err := idx.c.counter.Exact(ctx, idx.name, &q)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", idx.name, err)
	}
	return est.Total, nil
}

// CountEstimate is an exact or approximated total.
type CountEstimate struct {
	Total int64
	// Exact reports whether Total is precise rather than extrapolated.
	Exact bool
	// Method names how the total was obtained: count, sampling, or
	// extrapolation.
	Method       string
	PagesSampled int
}

func fromEstimate(e countuc.Estimate) CountEstimate {
	return CountEstimate{
		Total:        e.Total,
		Exact:        e.Confidence == countuc.ConfidenceExact,
		Method:       string(e.Method),
		PagesSampled: e.PagesSampled,
	}
}

// EstimateCount approximates the total by sampling a few pages instead of a
// full count round trip. Cheaper than Count on large result sets, at the
// price of precision.
func (idx *Index) EstimateCount(ctx context.Context, qb *QueryBuilder) (CountEstimate, error) {
	q, _, err := qb.build(idx.c.limits, 0, 1, false)
	if err != nil {
		return CountEstimate{}, fmt.Errorf("estimate count %q: %w", idx.name, err)
	}
	est, err := idx.c.counter.Estimate(ctx, idx.name, &q)
	if err != nil {
		return CountEstimate{}, fmt.Errorf("estimate count %q: %w", idx.name, err)
	}
	return fromEstimate(est), nil
}

// Pages starts an offset paginator over the query. Zero pageSize means the
// default page size. The paginator is single-owner: confine it to one
// goroutine.
func (idx *Index) Pages(qb *QueryBuilder, pageSize int) (*Pager, error) {
	pageSize = orDefault(pageSize)
	q, extractor, err := qb.build(idx.c.limits, 0, pageSize, false)
	if err != nil {
		return nil, fmt.Errorf("pages %q: %w", idx.name, err)
	}

	p, err := offsetuc.New(idx.c.exec, offsetuc.Config{
		Index:       idx.name,
		Base:        q,
		PageSize:    pageSize,
		Retry:       idx.c.retry,
		CallTimeout: idx.c.callTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("pages %q: %w", idx.name, err)
	}
	return &Pager{inner: p, extractor: extractor}, nil
}

// Scan starts a keyset scan ordered by the given anchor field. Keyset scans
// hold a stable position under concurrent writes and have no depth ceiling,
// but only move forward. The scanner is single-owner.
func (idx *Index) Scan(qb *QueryBuilder, sortField string, descending bool, pageSize int) (*Scanner, error) {
	pageSize = orDefault(pageSize)
	q, extractor, err := qb.build(idx.c.limits, 0, pageSize, false)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", idx.name, err)
	}

	p, err := keysetuc.New(idx.c.exec, idx.catalog(), keysetuc.Config{
		Index:       idx.name,
		Base:        q,
		SortField:   sortField,
		Descending:  descending,
		PageSize:    pageSize,
		Retry:       idx.c.retry,
		CallTimeout: idx.c.callTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", idx.name, err)
	}
	return &Scanner{inner: p, extractor: extractor}, nil
}

// ResumeScan continues a keyset scan from a token obtained via
// Scanner.Token. The query must match the one the token was produced with.
func (idx *Index) ResumeScan(qb *QueryBuilder, token string) (*Scanner, error) {
	q, extractor, err := qb.build(idx.c.limits, 0, query.DefaultPageSize, false)
	if err != nil {
		return nil, fmt.Errorf("resume scan %q: %w", idx.name, err)
	}

	p, err := keysetuc.Resume(idx.c.exec, idx.catalog(), idx.name, q, token, idx.c.retry)
	if err != nil {
		return nil, fmt.Errorf("resume scan %q: %w", idx.name, err)
	}
	return &Scanner{inner: p, extractor: extractor}, nil
}

// FetchPages fetches a contiguous run of pages in parallel, preserving page
// order in the returned slice. The whole run fails on the first error.
func (idx *Index) FetchPages(ctx context.Context, qb *QueryBuilder, firstPage, pages, pageSize int) ([]Page, error) {
	pageSize = orDefault(pageSize)
	q, extractor, err := qb.build(idx.c.limits, 0, pageSize, false)
	if err != nil {
		return nil, fmt.Errorf("fetch pages %q: %w", idx.name, err)
	}

	fetcher := bulkuc.New(idx.c.exec, bulkuc.Config{
		MaxConcurrency: idx.c.workers,
		Retry:          idx.c.retry,
		CallTimeout:    idx.c.callTimeout,
	})
	results, err := fetcher.FetchWindows(ctx, idx.name, q, pageSize, firstPage, pages)
	if err != nil {
		return nil, fmt.Errorf("fetch pages %q: %w", idx.name, err)
	}

	out := make([]Page, len(results))
	for i, pg := range results {
		out[i] = fromResultPage(pg, extractor)
	}
	return out, nil
}

func orDefault(pageSize int) int {
	if pageSize <= 0 {
		return query.DefaultPageSize
	}
	return pageSize
}
