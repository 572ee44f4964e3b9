package count

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

func corpus(n int) func(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	return func(_ context.Context, _ string, q *query.Query) (page.ResultPage, error) {
		var docs []page.Document
		for i := q.Skip(); i < n && i < q.Skip()+q.Top(); i++ {
			docs = append(docs, page.NewDocument("doc-"+strconv.Itoa(i), 1.0, nil, nil))
		}
		return page.New(docs, nil, nil), nil
	}
}

func baseQuery(t *testing.T, text string) *query.Query {
	t.Helper()
	q, err := query.New(query.Params{Text: text}, query.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	return &q
}

func TestExactDelegatesToCounter(t *testing.T) {
	counter := &mockCounter{CountExactFunc: func(context.Context, string, *query.Query) (int64, error) {
		return 1234, nil
	}}
	svc := New(&mockExecutor{}, counter, Config{Retry: retry.Policy{MaxAttempts: 1}})

	est, err := svc.Exact(context.Background(), "products", baseQuery(t, "laptop"))
	if err != nil {
		t.Fatal(err)
	}
	if est.Total != 1234 || est.Confidence != ConfidenceExact || est.Method != MethodCount {
		t.Errorf("estimate = %+v", est)
	}
}

func TestEstimateShortPageIsExact(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(70)}
	svc := New(exec, &mockCounter{}, Config{
		SamplePages:    3,
		SamplePageSize: 50,
		Retry:          retry.Policy{MaxAttempts: 1},
	})

	est, err := svc.Estimate(context.Background(), "products", baseQuery(t, "laptop"))
	if err != nil {
		t.Fatal(err)
	}
	if est.Total != 70 || est.Confidence != ConfidenceExact || est.Method != MethodSampling {
		t.Errorf("estimate = %+v", est)
	}
	if est.PagesSampled != 2 || est.DocumentsSeen != 70 {
		t.Errorf("sampling stats = %+v", est)
	}
	// Sampling must never request the expensive exact count.
	for i, q := range exec.calls {
		if q.RequestCount() {
			t.Errorf("sample call %d requested count", i)
		}
	}
}

func TestEstimateFullPagesExtrapolates(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(10000)}
	svc := New(exec, &mockCounter{}, Config{
		SamplePages:         3,
		SamplePageSize:      50,
		ExtrapolationFactor: 10,
		Retry:               retry.Policy{MaxAttempts: 1},
	})

	est, err := svc.Estimate(context.Background(), "products", baseQuery(t, "laptop"))
	if err != nil {
		t.Fatal(err)
	}
	// averagePerPage(50) * pagesSampled(3) * factor(10) = 1500.
	if est.Total != 1500 || est.Confidence != ConfidenceLow || est.Method != MethodExtrapolation {
		t.Errorf("estimate = %+v", est)
	}
	if est.PagesSampled != 3 || est.DocumentsSeen != 150 {
		t.Errorf("sampling stats = %+v", est)
	}
}

func TestEstimateEmptyResult(t *testing.T) {
	exec := &mockExecutor{ExecuteFunc: corpus(0)}
	svc := New(exec, &mockCounter{}, Config{Retry: retry.Policy{MaxAttempts: 1}})

	est, err := svc.Estimate(context.Background(), "products", baseQuery(t, "laptop"))
	if err != nil {
		t.Fatal(err)
	}
	if est.Total != 0 || est.Confidence != ConfidenceExact {
		t.Errorf("estimate = %+v", est)
	}
}

func TestPolicyTable(t *testing.T) {
	svc := New(&mockExecutor{}, &mockCounter{}, Config{})
	q := baseQuery(t, "laptop")

	cases := []struct {
		usage   UsageContext
		include bool
		ttl     time.Duration
	}{
		{ContextPagination, true, 60 * time.Second},
		{ContextAutocomplete, false, 30 * time.Second},
		{ContextAnalytics, true, time.Hour},
		{UsageContext("unknown"), true, 60 * time.Second},
	}
	for _, tc := range cases {
		pol := svc.PolicyFor(tc.usage, q)
		if pol.IncludeCount != tc.include || pol.CacheTTL != tc.ttl {
			t.Errorf("%s: policy = %+v, want include=%t ttl=%s", tc.usage, pol, tc.include, tc.ttl)
		}
	}
}

func TestHighComplexityDisablesCount(t *testing.T) {
	svc := New(&mockExecutor{}, &mockCounter{}, Config{TokenThreshold: 3})

	long := baseQuery(t, "one two three four five")
	if pol := svc.PolicyFor(ContextPagination, long); pol.IncludeCount {
		t.Error("high-complexity query still has count enabled")
	}
	short := baseQuery(t, "one two")
	if pol := svc.PolicyFor(ContextPagination, short); !pol.IncludeCount {
		t.Error("short query lost its count")
	}
}

func TestForContextSkipsDisabledCount(t *testing.T) {
	counter := &mockCounter{CountExactFunc: func(context.Context, string, *query.Query) (int64, error) {
		return 0, errors.New("must not be called")
	}}
	svc := New(&mockExecutor{}, counter, Config{})

	_, pol, err := svc.ForContext(context.Background(), ContextAutocomplete, "products", baseQuery(t, "lap"))
	if err != nil {
		t.Fatal(err)
	}
	if pol.IncludeCount || counter.calls != 0 {
		t.Errorf("autocomplete ran a count: policy=%+v calls=%d", pol, counter.calls)
	}
}

func TestForContextFallsBackToSamplingOnTransient(t *testing.T) {
	counter := &mockCounter{CountExactFunc: func(context.Context, string, *query.Query) (int64, error) {
		return 0, domain.NewTransient("FT.SEARCH", errors.New("throttled"))
	}}
	exec := &mockExecutor{ExecuteFunc: corpus(30)}
	svc := New(exec, counter, Config{
		SamplePageSize: 50,
		Retry:          retry.Policy{MaxAttempts: 1},
	})

	est, _, err := svc.ForContext(context.Background(), ContextPagination, "products", baseQuery(t, "laptop"))
	if err != nil {
		t.Fatal(err)
	}
	if est.Total != 30 || est.Method != MethodSampling {
		t.Errorf("fallback estimate = %+v", est)
	}
}

func TestForContextSurfacesInvalidQuery(t *testing.T) {
	counter := &mockCounter{CountExactFunc: func(context.Context, string, *query.Query) (int64, error) {
		return 0, domain.ErrInvalidQuery
	}}
	svc := New(&mockExecutor{}, counter, Config{Retry: retry.Policy{MaxAttempts: 1}})

	_, _, err := svc.ForContext(context.Background(), ContextPagination, "products", baseQuery(t, "laptop"))
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("got %v, want ErrInvalidQuery", err)
	}
}
