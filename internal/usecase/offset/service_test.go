package offset

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/retry"
)

// corpus simulates a backend holding n ordered documents, serving any
// skip/top window out of it.
func corpus(n int) func(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	return func(_ context.Context, _ string, q *query.Query) (page.ResultPage, error) {
		var docs []page.Document
		for i := q.Skip(); i < n && i < q.Skip()+q.Top(); i++ {
			docs = append(docs, page.NewDocument(
				"doc-"+strconv.Itoa(i), 1.0, map[string]string{"title": "t"}, nil,
			))
		}
		var total *int64
		if q.RequestCount() {
			t := int64(n)
			total = &t
		}
		return page.New(docs, total, nil), nil
	}
}

func baseQuery(t *testing.T) query.Query {
	t.Helper()
	q, err := query.New(query.Params{Text: "laptop"}, query.DefaultLimits())
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

func newPaginator(t *testing.T, exec Executor, size int) *Paginator {
	t.Helper()
	p, err := New(exec, Config{
		Index:    "products",
		Base:     baseQuery(t),
		PageSize: size,
		Retry:    retry.Policy{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRejectsPageSize(t *testing.T) {
	exec := &mockExecutor{}
	for _, size := range []int{0, -1, query.DefaultMaxPageSize + 1} {
		_, err := New(exec, Config{Base: baseQuery(t), PageSize: size})
		if !errors.Is(err, domain.ErrInvalidPageSize) {
			t.Errorf("size %d: got %v, want ErrInvalidPageSize", size, err)
		}
	}
}

func TestLoadFirstRequestsCount(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 10)

	pg, err := p.LoadFirst(context.Background())
	if err != nil {
		t.Fatalf("LoadFirst: %v", err)
	}
	if pg.Len() != 10 {
		t.Errorf("page len = %d, want 10", pg.Len())
	}
	if got := exec.calls[0]; !got.RequestCount() || got.Skip() != 0 || got.Top() != 10 {
		t.Errorf("first call window = (skip=%d top=%d count=%t), want (0, 10, true)",
			got.Skip(), got.Top(), got.RequestCount())
	}
	if total, ok := p.TotalCount(); !ok || total != 25 {
		t.Errorf("TotalCount = (%d, %t), want (25, true)", total, ok)
	}
	if pages, ok := p.TotalPages(); !ok || pages != 3 {
		t.Errorf("TotalPages = (%d, %t), want (3, true)", pages, ok)
	}
}

func TestNavigationSequence(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 10)
	ctx := context.Background()

	// LoadNext on an uninitialized paginator behaves like LoadFirst.
	if _, err := p.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext (initial): %v", err)
	}
	if p.CurrentPage() != 0 {
		t.Fatalf("CurrentPage = %d, want 0", p.CurrentPage())
	}

	pg, err := p.LoadNext(ctx)
	if err != nil {
		t.Fatalf("LoadNext: %v", err)
	}
	if p.CurrentPage() != 1 || pg.Len() != 10 {
		t.Errorf("page 1: CurrentPage=%d len=%d", p.CurrentPage(), pg.Len())
	}
	// Subsequent pages reuse the known total instead of recounting.
	if exec.calls[1].RequestCount() {
		t.Error("page 1 call requested count again")
	}

	pg, err = p.LoadNext(ctx)
	if err != nil {
		t.Fatalf("LoadNext (last): %v", err)
	}
	if pg.Len() != 5 {
		t.Errorf("last page len = %d, want 5", pg.Len())
	}
	if p.HasNext() {
		t.Error("HasNext = true on final page")
	}
	if _, err := p.LoadNext(ctx); !errors.Is(err, domain.ErrNoNextPage) {
		t.Errorf("LoadNext past end: got %v, want ErrNoNextPage", err)
	}

	if _, err := p.LoadPrevious(ctx); err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if p.CurrentPage() != 1 {
		t.Errorf("CurrentPage after LoadPrevious = %d, want 1", p.CurrentPage())
	}
}

func TestLoadPreviousAtStart(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 10)
	ctx := context.Background()

	if _, err := p.LoadPrevious(ctx); !errors.Is(err, domain.ErrNoPreviousPage) {
		t.Errorf("uninitialized LoadPrevious: got %v, want ErrNoPreviousPage", err)
	}
	if _, err := p.LoadFirst(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadPrevious(ctx); !errors.Is(err, domain.ErrNoPreviousPage) {
		t.Errorf("page-0 LoadPrevious: got %v, want ErrNoPreviousPage", err)
	}
	if p.HasPrevious() {
		t.Error("HasPrevious = true on page 0")
	}
}

func TestLoadLastProbesForTotal(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 10)

	pg, err := p.LoadLast(context.Background())
	if err != nil {
		t.Fatalf("LoadLast: %v", err)
	}
	if p.CurrentPage() != 2 || pg.Len() != 5 {
		t.Errorf("last page: CurrentPage=%d len=%d, want 2, 5", p.CurrentPage(), pg.Len())
	}
	// One minimal count probe, then the actual page.
	if len(exec.calls) != 2 {
		t.Fatalf("call count = %d, want 2", len(exec.calls))
	}
	if probe := exec.calls[0]; probe.Top() != 1 || !probe.RequestCount() {
		t.Errorf("probe window = (top=%d count=%t), want (1, true)", probe.Top(), probe.RequestCount())
	}
}

func TestLoadLastEmptyCorpus(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(0)}
	p := newPaginator(t, exec, 10)

	pg, err := p.LoadLast(context.Background())
	if err != nil {
		t.Fatalf("LoadLast: %v", err)
	}
	if pg.Len() != 0 || p.CurrentPage() != 0 {
		t.Errorf("empty corpus: len=%d page=%d", pg.Len(), p.CurrentPage())
	}
	if pages, ok := p.TotalPages(); !ok || pages != 0 {
		t.Errorf("TotalPages = (%d, %t), want (0, true)", pages, ok)
	}
}

func TestLoadPageDeepWindowFailsFast(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 100)

	_, err := p.LoadPage(context.Background(), 5000)
	if !errors.Is(err, domain.ErrDeepPaginationLimit) {
		t.Fatalf("got %v, want ErrDeepPaginationLimit", err)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor called %d times before validation", len(exec.calls))
	}
}

func TestLoadPageNegative(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(25)}
	p := newPaginator(t, exec, 10)

	if _, err := p.LoadPage(context.Background(), -1); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("got %v, want ErrInvalidQuery", err)
	}
}

func TestHasNextHeuristicWithoutTotal(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(20)}
	p := newPaginator(t, exec, 10)

	// Jumping straight to page 1 never learns the total, so next-page
	// existence falls back to the full-page heuristic.
	if _, err := p.LoadPage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.TotalCount(); ok {
		t.Fatal("total unexpectedly known")
	}
	if !p.HasNext() {
		t.Error("HasNext = false for a full page with unknown total")
	}
}

func TestTransientRetry(t *testing.T) {
	attempts := 0
	exec := &mockExecutor{ExecuteFunc: func(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
		attempts++
		if attempts < 3 {
			return page.ResultPage{}, domain.NewTransient("FT.SEARCH", errors.New("connection reset"))
		}
		return corpus(5)(ctx, index, q)
	}}
	p, err := New(exec, Config{
		Index:    "products",
		Base:     baseQuery(t),
		PageSize: 10,
		Retry:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}

	pg, err := p.LoadFirst(context.Background())
	if err != nil {
		t.Fatalf("LoadFirst after retries: %v", err)
	}
	if attempts != 3 || pg.Len() != 5 {
		t.Errorf("attempts=%d len=%d, want 3 attempts and 5 docs", attempts, pg.Len())
	}
}

func TestInvalidQueryNotRetried(t *testing.T) {
	attempts := 0
	exec := &mockExecutor{ExecuteFunc: func(context.Context, string, *query.Query) (page.ResultPage, error) {
		attempts++
		return page.ResultPage{}, domain.ErrInvalidQuery
	}}
	p, err := New(exec, Config{
		Index:    "products",
		Base:     baseQuery(t),
		PageSize: 10,
		Retry:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.LoadFirst(context.Background()); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("got %v, want ErrInvalidQuery", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
