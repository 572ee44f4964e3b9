// Package search implements the query executor: one network round trip per
// call, no retry logic, errors classified into invalid-query vs transient.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pagedex/pagedex/internal/db"
	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/metrics"
)

// store is the consumer interface for executor operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	Count(ctx context.Context, q *db.Query) (int64, error)
	SupportsHighlight(ctx context.Context) bool
}

// Repo executes validated queries against one backend store.
// Stateless; safe for concurrent use by multiple paginators.
type Repo struct {
	store store
}

// New creates a query executor.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Execute runs one search round trip and shapes the reply into a ResultPage.
func (r *Repo) Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	if index == "" {
		return page.ResultPage{}, fmt.Errorf("%w: index name is required", domain.ErrInvalidQuery)
	}

	var hl *db.HighlightSpec
	if h := q.Highlight(); h != nil {
		if !r.store.SupportsHighlight(ctx) {
			return page.ResultPage{}, domain.ErrHighlightNotSupported
		}
		hl = &db.HighlightSpec{
			Fields:  h.Fields,
			PreTag:  h.PreTag,
			PostTag: h.PostTag,
		}
	}

	sort := make([]db.SortClause, 0, len(q.Sort()))
	for _, s := range q.Sort() {
		sort = append(sort, db.SortClause{Field: s.Field, Desc: s.Desc})
	}

	dbq := &db.Query{
		IndexName:    index,
		Text:         q.Text(),
		Filters:      q.Filters(),
		Sort:         sort,
		Offset:       q.Skip(),
		Limit:        q.Top(),
		ReturnFields: q.Select(),
		WithScores:   len(sort) == 0, // relevance order only meaningful without SORTBY
		Highlight:    hl,
	}

	start := time.Now()
	sr, err := r.store.Search(ctx, dbq)
	observeRoundTrip(index, start, err)
	if err != nil {
		return page.ResultPage{}, classify(err, index, q)
	}

	return shapePage(sr, index, q), nil
}

// CountExact returns the exact total match count for the query without
// fetching any documents. The count carries the query's text and filters so
// it covers the same population Execute returns.
func (r *Repo) CountExact(ctx context.Context, index string, q *query.Query) (int64, error) {
	if index == "" {
		return 0, fmt.Errorf("%w: index name is required", domain.ErrInvalidQuery)
	}

	dbq := &db.Query{
		IndexName: index,
		Text:      q.Text(),
		Filters:   q.Filters(),
		CountOnly: true,
	}

	start := time.Now()
	total, err := r.store.Count(ctx, dbq)
	observeRoundTrip(index, start, err)
	if err != nil {
		return 0, classify(err, index, q)
	}
	return total, nil
}

// observeRoundTrip records one backend round trip in the search metrics.
func observeRoundTrip(index string, start time.Time, err error) {
	metrics.SearchRequestDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, db.ErrSyntax), errors.Is(err, db.ErrIndexNotFound):
		status = "invalid_query"
	default:
		status = "transient"
	}
	metrics.SearchRequestsTotal.WithLabelValues(index, status).Inc()
}

// shapePage converts a wire result into the immutable domain page, splitting
// highlight fragments away from plain field values.
func shapePage(sr *db.SearchResult, index string, q *query.Query) page.ResultPage {
	prefix := index + ":"

	hlFields := map[string]bool{}
	var preTag string
	if h := q.Highlight(); h != nil {
		preTag = h.PreTag
		for _, f := range h.Fields {
			hlFields[f] = true
		}
	}

	docs := make([]page.Document, 0, len(sr.Entries))
	var highlights page.Highlights

	for _, entry := range sr.Entries {
		key := strings.TrimPrefix(entry.Key, prefix)
		tags := make(map[string]string)
		numerics := make(map[string]float64)

		for name, value := range entry.Fields {
			if hlFields[name] && strings.Contains(value, preTag) {
				if highlights == nil {
					highlights = page.Highlights{}
				}
				if highlights[key] == nil {
					highlights[key] = map[string][]string{}
				}
				fragments := strings.Split(value, db.FragmentSeparator)
				for i := range fragments {
					fragments[i] = strings.TrimSpace(fragments[i])
				}
				highlights[key][name] = fragments
				continue
			}
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				numerics[name] = f
			} else {
				tags[name] = value
			}
		}

		docs = append(docs, page.NewDocument(key, entry.Score, tags, numerics))
	}

	var total *int64
	if q.RequestCount() {
		t := sr.Total
		total = &t
	}

	p := page.New(docs, total, highlights)
	return p
}

// classify maps backend failures onto the error taxonomy, preserving the
// failing query parameters for diagnostics.
func classify(err error, index string, q *query.Query) error {
	diag := fmt.Sprintf("index=%s text=%q skip=%d top=%d", index, q.Text(), q.Skip(), q.Top())

	switch {
	case errors.Is(err, db.ErrSyntax), errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidQuery, diag, err)
	default:
		// Timeouts, connection faults, LOADING/CLUSTERDOWN replies and any
		// other server-side fault are retryable by the caller's policy.
		return domain.NewTransient(diag, err)
	}
}
