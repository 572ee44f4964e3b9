// Package count decides how the total result count is obtained: an exact
// server-side count, or a cheap estimate from bounded page sampling.
package count

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/retry"
)

// Confidence of an estimate.
type Confidence string

const (
	// ConfidenceExact means the total is known precisely.
	ConfidenceExact Confidence = "exact"
	// ConfidenceLow means the total was extrapolated from full pages.
	ConfidenceLow Confidence = "low"
)

// Method that produced an estimate.
type Method string

const (
	// MethodCount is a server-side exact count.
	MethodCount Method = "count"
	// MethodSampling means a short sampled page revealed the exact total.
	MethodSampling Method = "sampling"
	// MethodExtrapolation means the total was projected from full pages.
	MethodExtrapolation Method = "extrapolation"
)

// UsageContext classifies the caller for the count policy table.
type UsageContext string

const (
	ContextPagination   UsageContext = "pagination"
	ContextAutocomplete UsageContext = "autocomplete"
	ContextAnalytics    UsageContext = "analytics"
)

// Policy is the per-context counting decision. CacheTTL is advisory: it says
// how long a total for this context stays useful. The result cache keeps its
// own global TTL; callers holding per-context caches apply this one.
type Policy struct {
	IncludeCount bool
	CacheTTL     time.Duration
}

// contextPolicies is the fixed usage-context table. Paginated views show the
// count to users, autocomplete never needs it, analytics tolerates long
// staleness.
var contextPolicies = map[UsageContext]Policy{
	ContextPagination:   {IncludeCount: true, CacheTTL: 60 * time.Second},
	ContextAutocomplete: {IncludeCount: false, CacheTTL: 30 * time.Second},
	ContextAnalytics:    {IncludeCount: true, CacheTTL: time.Hour},
}

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultSamplePages         = 3
	DefaultSamplePageSize      = 50
	DefaultExtrapolationFactor = 10.0
	DefaultTokenThreshold      = 6
)

// Estimate is the outcome of one counting operation.
type Estimate struct {
	Total         int64
	Confidence    Confidence
	Method        Method
	PagesSampled  int
	DocumentsSeen int
}

// Config holds service construction parameters.
type Config struct {
	// SamplePages caps how many pages Estimate fetches.
	SamplePages int
	// SamplePageSize is the window size used while sampling.
	SamplePageSize int
	// ExtrapolationFactor scales the sampled page count when every
	// sampled page came back full.
	ExtrapolationFactor float64
	// TokenThreshold marks a query as high complexity when its term count
	// exceeds it; counting is then disabled regardless of context.
	TokenThreshold int
	Retry          retry.Policy
}

func (c Config) normalized() Config {
	if c.SamplePages <= 0 {
		c.SamplePages = DefaultSamplePages
	}
	if c.SamplePageSize <= 0 {
		c.SamplePageSize = DefaultSamplePageSize
	}
	if c.ExtrapolationFactor <= 0 {
		c.ExtrapolationFactor = DefaultExtrapolationFactor
	}
	if c.TokenThreshold <= 0 {
		c.TokenThreshold = DefaultTokenThreshold
	}
	return c
}

// Service obtains exact or estimated totals for a query.
type Service struct {
	exec    Executor
	counter Counter
	cfg     Config
}

// New creates a count service.
func New(exec Executor, counter Counter, cfg Config) *Service {
	return &Service{exec: exec, counter: counter, cfg: cfg.normalized()}
}

// PolicyFor resolves the counting policy for a usage context. High-complexity
// queries force the count off to keep latency flat. Unknown contexts get the
// pagination policy.
func (s *Service) PolicyFor(usage UsageContext, q *query.Query) Policy {
	pol, ok := contextPolicies[usage]
	if !ok {
		pol = contextPolicies[ContextPagination]
	}
	if q != nil && q.TokenCount() > s.cfg.TokenThreshold {
		pol.IncludeCount = false
	}
	return pol
}

// Exact asks the backend for the precise total. Expensive server side; meant
// for first-page loads and count-visible contexts only.
func (s *Service) Exact(ctx context.Context, index string, q *query.Query) (Estimate, error) {
	var total int64
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.counter.CountExact(ctx, index, q)
		return err
	})
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Total: total, Confidence: ConfidenceExact, Method: MethodCount}, nil
}

// Estimate samples up to SamplePages windows without requesting a count. A
// short page ends the scan with the exact total. When every sampled page is
// full the total is projected as averagePerPage * pagesSampled *
// ExtrapolationFactor and flagged low confidence.
func (s *Service) Estimate(ctx context.Context, index string, q *query.Query) (Estimate, error) {
	size := s.cfg.SamplePageSize
	seen := 0

	for pageN := 0; pageN < s.cfg.SamplePages; pageN++ {
		window, err := q.WithWindow(pageN*size, size, false)
		if err != nil {
			// The sampling window ran past the offset ceiling; what
			// was seen so far is all sampling can tell us.
			if pageN > 0 {
				return s.extrapolate(seen, pageN), nil
			}
			return Estimate{}, fmt.Errorf("count estimate: %w", err)
		}

		var got int
		err = s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			pg, err := s.exec.Execute(ctx, index, &window)
			if err != nil {
				return err
			}
			got = pg.Len()
			return nil
		})
		if err != nil {
			return Estimate{}, err
		}

		seen += got
		if got < size {
			return Estimate{
				Total:         int64(seen),
				Confidence:    ConfidenceExact,
				Method:        MethodSampling,
				PagesSampled:  pageN + 1,
				DocumentsSeen: seen,
			}, nil
		}
	}
	return s.extrapolate(seen, s.cfg.SamplePages), nil
}

func (s *Service) extrapolate(seen, pages int) Estimate {
	avg := float64(seen) / float64(pages)
	return Estimate{
		Total:         int64(avg * float64(pages) * s.cfg.ExtrapolationFactor),
		Confidence:    ConfidenceLow,
		Method:        MethodExtrapolation,
		PagesSampled:  pages,
		DocumentsSeen: seen,
	}
}

// ForContext is the combined operation most callers want: resolve the policy
// and run the matching counting mode. Contexts with counting disabled return
// a zero estimate without any round trip.
func (s *Service) ForContext(ctx context.Context, usage UsageContext, index string, q *query.Query) (Estimate, Policy, error) {
	pol := s.PolicyFor(usage, q)
	if !pol.IncludeCount {
		return Estimate{Confidence: ConfidenceLow}, pol, nil
	}
	est, err := s.Exact(ctx, index, q)
	if err != nil {
		if !errors.Is(err, domain.ErrTransient) {
			return Estimate{}, pol, err
		}
		// Exact counting kept failing transiently; fall back to the
		// cheaper sampled estimate rather than surfacing the outage.
		est, err = s.Estimate(ctx, index, q)
		if err != nil {
			return Estimate{}, pol, err
		}
	}
	return est, pol, nil
}
