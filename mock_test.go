package pagedex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/retry"
	countuc "github.com/pagedex/pagedex/internal/usecase/count"
)

// mockExecutor serves windows over a synthetic corpus, honoring skip, top,
// sort direction, count requests, and numeric range filters on "seq".
type mockExecutor struct {
	mu    sync.Mutex
	docs  []page.Document
	calls []*query.Query
	err   error
}

func (m *mockExecutor) Execute(_ context.Context, _ string, q *query.Query) (page.ResultPage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, q)
	m.mu.Unlock()
	if m.err != nil {
		return page.ResultPage{}, m.err
	}

	matched := make([]page.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if matchesSeqRange(&d, q) {
			matched = append(matched, d)
		}
	}

	desc := len(q.Sort()) > 0 && q.Sort()[0].Desc
	sort.Slice(matched, func(i, j int) bool {
		a, _ := matched[i].Numeric("seq")
		b, _ := matched[j].Numeric("seq")
		if desc {
			return a > b
		}
		return a < b
	})

	var total *int64
	if q.RequestCount() {
		n := int64(len(matched))
		total = &n
	}

	start := q.Skip()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Top()
	if end > len(matched) {
		end = len(matched)
	}
	return page.New(matched[start:end], total, nil), nil
}

func matchesSeqRange(d *page.Document, q *query.Query) bool {
	seq, _ := d.Numeric("seq")
	for _, cond := range q.Filters().Must() {
		if !cond.IsRange() || cond.Key() != "seq" {
			continue
		}
		r := cond.Range()
		if r.GT() != nil && seq <= *r.GT() {
			return false
		}
		if r.LT() != nil && seq >= *r.LT() {
			return false
		}
	}
	return true
}

func corpus(n int) []page.Document {
	docs := make([]page.Document, n)
	for i := 0; i < n; i++ {
		docs[i] = page.NewDocument(
			fmt.Sprintf("doc-%d", i+1),
			1.0,
			map[string]string{"name": fmt.Sprintf("item %d", i+1)},
			map[string]float64{"seq": float64(i + 1)},
		)
	}
	return docs
}

type mockCounter struct {
	total int64
	err   error
}

func (m *mockCounter) CountExact(context.Context, string, *query.Query) (int64, error) {
	return m.total, m.err
}

// newTestClient wires a Client around a mock executor, bypassing the store.
func newTestClient(exec *mockExecutor, counter *mockCounter) *Client {
	pol := retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	return &Client{
		exec:    exec,
		counter: countuc.New(exec, counter, countuc.Config{Retry: pol, SamplePageSize: 10}),
		limits:  query.DefaultLimits(),
		retry:   pol,
		workers: 2,
	}
}
