package chi

import (
	"errors"
	"fmt"

	"github.com/pagedex/pagedex/internal/domain/search/filter"
	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// ErrorCode identifies a failure class in API responses.
type ErrorCode string

const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeInvalidQuery          ErrorCode = "invalid_query"
	CodeInvalidPageSize       ErrorCode = "invalid_page_size"
	CodeDeepPaginationLimit   ErrorCode = "deep_pagination_limit"
	CodeInvalidSortField      ErrorCode = "invalid_sort_field"
	CodeUnknownField          ErrorCode = "unknown_field"
	CodeUnknownTagStyle       ErrorCode = "unknown_tag_style"
	CodeNoNextPage            ErrorCode = "no_next_page"
	CodeNoPreviousPage        ErrorCode = "no_previous_page"
	CodeHighlightNotSupported ErrorCode = "highlight_not_supported"
	CodeServiceUnavailable    ErrorCode = "service_unavailable"
	CodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Paging modes accepted by the search endpoint.
const (
	ModeOffset = "offset"
	ModeKeyset = "keyset"
)

// SortClause is one sort directive.
type SortClause struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// HighlightRequest enables server-side highlighting for the listed fields.
type HighlightRequest struct {
	Fields              []string `json:"fields"`
	Style               string   `json:"style,omitempty"` // bold, em, mark, strong
	MaxSnippetsPerField int      `json:"max_snippets_per_field,omitempty"`
	MaxSnippetLength    int      `json:"max_snippet_length,omitempty"`
}

// FilterCondition is one clause of a filter expression.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// RangeFilter is a numeric range with optional boundaries.
type RangeFilter struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// FilterExpression groups conditions with boolean semantics.
type FilterExpression struct {
	Must    []FilterCondition `json:"must,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
}

// SearchRequest is the body of POST /indexes/{index}/search.
type SearchRequest struct {
	Query   string            `json:"query"`
	Filters *FilterExpression `json:"filters,omitempty"`
	Sort    []SortClause      `json:"sort,omitempty"`

	// Field shaping: an explicit list, or a named preset. Preset wins.
	Select []string `json:"select,omitempty"`
	Preset *string  `json:"preset,omitempty"`

	// Offset paging.
	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`

	// Keyset paging.
	Mode       *string `json:"mode,omitempty"` // offset (default) or keyset
	SortField  *string `json:"sort_field,omitempty"`
	Descending *bool   `json:"descending,omitempty"`
	Cursor     *string `json:"cursor,omitempty"`

	IncludeCount *bool             `json:"include_count,omitempty"`
	Context      *string           `json:"context,omitempty"` // pagination, autocomplete, analytics
	Highlight    *HighlightRequest `json:"highlight,omitempty"`
}

// DocumentResponse is one search hit.
type DocumentResponse struct {
	ID         string              `json:"id"`
	Score      float64             `json:"score,omitempty"`
	Fields     map[string]any      `json:"fields,omitempty"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items      []DocumentResponse `json:"items"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalCount *int64             `json:"total_count,omitempty"`
	TotalPages *int               `json:"total_pages,omitempty"`
	HasMore    bool               `json:"has_more"`
	NextCursor *string            `json:"next_cursor,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// CountRequest is the body of POST /indexes/{index}/count.
type CountRequest struct {
	Query   string            `json:"query"`
	Filters *FilterExpression `json:"filters,omitempty"`
	Context *string           `json:"context,omitempty"`
	Exact   *bool             `json:"exact,omitempty"`
}

// CountResponse reports an exact or estimated total. CacheTTLSec is the
// advisory freshness window from the usage-context policy, present only when
// the request named a context.
type CountResponse struct {
	Total         int64  `json:"total"`
	Confidence    string `json:"confidence"`
	Method        string `json:"method"`
	PagesSampled  int    `json:"pages_sampled,omitempty"`
	DocumentsSeen int    `json:"documents_seen,omitempty"`
	CacheTTLSec   int    `json:"cache_ttl_sec,omitempty"`
}

// CacheStatsResponse is the body of GET /stats/cache.
type CacheStatsResponse struct {
	TotalRequests   int64    `json:"total_requests"`
	Hits            int64    `json:"hits"`
	Misses          int64    `json:"misses"`
	Entries         int      `json:"entries"`
	AvgLatencyMs    float64  `json:"avg_latency_ms"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// SlowQueryResponse is one slow-query log entry.
type SlowQueryResponse struct {
	ID         string `json:"id"`
	Index      string `json:"index"`
	Query      string `json:"query"`
	Skip       int    `json:"skip"`
	Top        int    `json:"top"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	RecordedAt string `json:"recorded_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func filtersFromDTO(f *FilterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromDTO(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromDTO(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromDTO(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromDTO(cs []FilterCondition) ([]filter.Condition, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(cs))
	for _, c := range cs {
		cond, err := conditionFromDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromDTO(c FilterCondition) (filter.Condition, error) {
	if c.Match != nil && c.Range != nil {
		return filter.Condition{},
			fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	}
	if c.Match != nil {
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	}
	if c.Range != nil {
		rf, err := filter.NewRangeBounds(c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	}
	return filter.Condition{},
		errors.New("filter condition must have either match or range")
}

func sortFromDTO(sorts []SortClause) []query.Sort {
	if len(sorts) == 0 {
		return nil
	}
	out := make([]query.Sort, len(sorts))
	for i, s := range sorts {
		out[i] = query.Sort{Field: s.Field, Desc: s.Desc}
	}
	return out
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
