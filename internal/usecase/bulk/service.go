// Package bulk fetches many independent result pages concurrently through a
// bounded worker pool, reassembling them in their original order.
package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/metrics"
	"github.com/pagedex/pagedex/internal/retry"
)

// DefaultMaxConcurrency bounds the worker pool when the config is zero.
const DefaultMaxConcurrency = 4

// Config holds fetcher construction parameters.
type Config struct {
	MaxConcurrency int
	Retry          retry.Policy
	// CallTimeout bounds each round trip. Zero means no per-call timeout.
	CallTimeout time.Duration
}

// Fetcher runs parallel page fetches. Stateless between calls, safe for
// concurrent use.
type Fetcher struct {
	exec        Executor
	workers     int
	retry       retry.Policy
	callTimeout time.Duration
}

// New creates a bulk fetcher.
func New(exec Executor, cfg Config) *Fetcher {
	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = DefaultMaxConcurrency
	}
	return &Fetcher{exec: exec, workers: workers, retry: cfg.Retry, callTimeout: cfg.CallTimeout}
}

// task tags a query with its position in the input so results reassemble in
// order regardless of completion order.
type task struct {
	pos int
	q   query.Query
}

// FetchAll executes the given queries against one index with at most
// MaxConcurrency in flight. The returned slice is positionally aligned with
// the input. The first failure cancels the remaining work and is returned
// with the failing position attached.
func (f *Fetcher) FetchAll(ctx context.Context, index string, queries []query.Query) ([]page.ResultPage, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan task)
	results := make([]page.ResultPage, len(queries))
	errs := make(chan error, len(queries))

	var wg sync.WaitGroup
	workers := f.workers
	if workers > len(queries) {
		workers = len(queries)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				pg, err := f.fetchOne(ctx, index, &t.q)
				if err != nil {
					errs <- fmt.Errorf("page %d: %w", t.pos, err)
					cancel()
					return
				}
				results[t.pos] = pg
			}
		}()
	}

	for i, q := range queries {
		select {
		case tasks <- task{pos: i, q: q}:
		case <-ctx.Done():
		}
	}
	close(tasks)
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.PageFetchesTotal.WithLabelValues("bulk").Add(float64(len(queries)))
	return results, nil
}

// FetchWindows fetches pages [firstPage, firstPage+pages) of a base query
// with a fixed page size in parallel. Window validation happens up front, so
// a window past the offset ceiling fails before any round trip.
func (f *Fetcher) FetchWindows(ctx context.Context, index string, base query.Query, pageSize, firstPage, pages int) ([]page.ResultPage, error) {
	if pages <= 0 {
		return nil, nil
	}
	queries := make([]query.Query, 0, pages)
	for n := firstPage; n < firstPage+pages; n++ {
		q, err := base.WithWindow(n*pageSize, pageSize, false)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return f.FetchAll(ctx, index, queries)
}

func (f *Fetcher) fetchOne(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	var pg page.ResultPage
	err := f.retry.Do(ctx, func(ctx context.Context) error {
		if f.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.callTimeout)
			defer cancel()
		}
		var err error
		pg, err = f.exec.Execute(ctx, index, q)
		return err
	})
	return pg, err
}
