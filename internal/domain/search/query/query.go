// Package query defines the validated search query value type.
package query

import (
	"fmt"
	"strings"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/filter"
)

// Service-typical limits, used when the caller does not override them.
const (
	// MaxQueryLength is the maximum allowed query text length.
	MaxQueryLength = 4096
	// DefaultPageSize is the page size applied when top is not set.
	DefaultPageSize = 50
	// DefaultMaxPageSize is the service maximum for a single page.
	DefaultMaxPageSize = 1000
	// DefaultOffsetCeiling is the service maximum addressable offset (skip+top).
	DefaultOffsetCeiling = 100000
)

// Limits holds the service window bounds a query is validated against.
type Limits struct {
	MaxPageSize   int
	OffsetCeiling int
}

// DefaultLimits returns the service-typical window bounds.
func DefaultLimits() Limits {
	return Limits{MaxPageSize: DefaultMaxPageSize, OffsetCeiling: DefaultOffsetCeiling}
}

func (l Limits) normalized() Limits {
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = DefaultMaxPageSize
	}
	if l.OffsetCeiling <= 0 {
		l.OffsetCeiling = DefaultOffsetCeiling
	}
	return l
}

// Sort is a single sort clause.
type Sort struct {
	Field string
	Desc  bool
}

// Highlight configures server-side highlight fragments for a query.
type Highlight struct {
	Fields  []string
	PreTag  string
	PostTag string
}

// Params carries the raw inputs to New.
type Params struct {
	Text         string
	Filters      filter.Expression
	Sort         []Sort
	Select       []string
	Skip         int
	Top          int
	RequestCount bool
	Highlight    *Highlight
}

// Query is a validated search query. Immutable once constructed.
type Query struct {
	text         string
	filters      filter.Expression
	sort         []Sort
	selectFields []string
	skip         int
	top          int
	requestCount bool
	highlight    *Highlight
	limits       Limits
}

// New validates and normalizes search parameters against the service limits.
// Defaults: top=50. Fails fast on skip/top violations before any network call.
func New(p Params, limits Limits) (Query, error) {
	limits = limits.normalized()

	if len(p.Text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if p.Top == 0 {
		p.Top = DefaultPageSize
	}
	if p.Top < 1 || p.Top > limits.MaxPageSize {
		return Query{}, domain.NewPageSize(p.Top, limits.MaxPageSize)
	}
	if p.Skip < 0 {
		return Query{}, fmt.Errorf("%w: negative skip %d", domain.ErrInvalidQuery, p.Skip)
	}
	if p.Skip+p.Top > limits.OffsetCeiling {
		return Query{}, domain.NewDeepPagination(p.Skip, p.Top, limits.OffsetCeiling)
	}
	for _, s := range p.Sort {
		if s.Field == "" {
			return Query{}, fmt.Errorf("%w: empty sort field", domain.ErrInvalidQuery)
		}
	}
	if p.Highlight != nil && len(p.Highlight.Fields) == 0 {
		return Query{}, fmt.Errorf("%w: highlight requires at least one field", domain.ErrInvalidQuery)
	}

	return Query{
		text:         p.Text,
		filters:      p.Filters,
		sort:         p.Sort,
		selectFields: p.Select,
		skip:         p.Skip,
		top:          p.Top,
		requestCount: p.RequestCount,
		highlight:    p.Highlight,
		limits:       limits,
	}, nil
}

// Text returns the query text ("" means match all).
func (q *Query) Text() string { return q.text }

// Filters returns the pre-filter expression.
func (q *Query) Filters() filter.Expression { return q.filters }

// Sort returns the ordered sort clauses.
func (q *Query) Sort() []Sort { return q.sort }

// Select returns the requested field names (nil means all stored fields).
func (q *Query) Select() []string { return q.selectFields }

// Skip returns the number of documents to skip.
func (q *Query) Skip() int { return q.skip }

// Top returns the page size.
func (q *Query) Top() int { return q.top }

// RequestCount reports whether an exact total count is requested.
func (q *Query) RequestCount() bool { return q.requestCount }

// Highlight returns the highlight configuration (nil when disabled).
func (q *Query) Highlight() *Highlight { return q.highlight }

// Limits returns the service window bounds the query was validated against.
func (q *Query) Limits() Limits { return q.limits }

// TokenCount returns the number of whitespace-separated terms in the query
// text. Used by the count policy to detect high-complexity queries.
func (q *Query) TokenCount() int {
	return len(strings.Fields(q.text))
}

// WithWindow returns a copy of the query repositioned to a new skip/top
// window, re-validated against the original limits.
func (q *Query) WithWindow(skip, top int, requestCount bool) (Query, error) {
	return New(Params{
		Text:         q.text,
		Filters:      q.filters,
		Sort:         q.sort,
		Select:       q.selectFields,
		Skip:         skip,
		Top:          top,
		RequestCount: requestCount,
		Highlight:    q.highlight,
	}, q.limits)
}

// WithFilters returns a copy of the query with a replaced filter expression.
// Used by keyset pagination to conjoin the range predicate.
func (q *Query) WithFilters(f filter.Expression) Query {
	out := *q
	out.filters = f
	return out
}

// WithSelect returns a copy of the query with a replaced select list.
// Used by field selection to decorate the request.
func (q *Query) WithSelect(fields []string) Query {
	out := *q
	out.selectFields = fields
	return out
}

// CacheKeyParts returns the stable string parts identifying this query for
// result caching: text, filters, sort, select, window, and count flag all
// participate so distinct parameter sets never collide on intent.
func (q *Query) CacheKeyParts() []string {
	parts := []string{
		q.text,
		fmt.Sprintf("skip=%d", q.skip),
		fmt.Sprintf("top=%d", q.top),
		fmt.Sprintf("count=%t", q.requestCount),
	}
	for _, s := range q.sort {
		parts = append(parts, fmt.Sprintf("sort=%s/%t", s.Field, s.Desc))
	}
	parts = append(parts, "select="+strings.Join(q.selectFields, ","))
	parts = append(parts, "filter="+fingerprintFilters(q.filters))
	if q.highlight != nil {
		parts = append(parts, "hl="+strings.Join(q.highlight.Fields, ",")+q.highlight.PreTag+q.highlight.PostTag)
	}
	return parts
}

func fingerprintFilters(e filter.Expression) string {
	if e.IsEmpty() {
		return ""
	}
	var b strings.Builder
	writeGroup := func(prefix string, conds []filter.Condition) {
		for _, c := range conds {
			b.WriteString(prefix)
			b.WriteString(c.Key())
			if c.IsMatch() {
				b.WriteString("=" + c.Match())
			}
			if r := c.Range(); r != nil {
				fmt.Fprintf(&b, ":[%v %v %v %v]", deref(r.GT()), deref(r.GTE()), deref(r.LT()), deref(r.LTE()))
			}
			b.WriteString(";")
		}
	}
	writeGroup("+", e.Must())
	writeGroup("?", e.Should())
	writeGroup("-", e.MustNot())
	return b.String()
}

func deref(f *float64) any {
	if f == nil {
		return "_"
	}
	return *f
}
