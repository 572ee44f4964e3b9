package pagedex

import (
	"fmt"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/filter"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/usecase/highlight"
)

// QueryBuilder is a fluent builder for search queries. Terminal operations on
// Index validate the accumulated parameters; invalid combinations surface
// there, not while chaining.
type QueryBuilder struct {
	text    string
	must    []filter.Condition
	mustNot []filter.Condition
	sort    []query.Sort
	fields  []string

	highlightFields []string
	highlightStyle  string

	errs []error
}

// NewQuery starts a builder for the given full-text query.
// Empty text matches every document.
func NewQuery(text string) *QueryBuilder {
	return &QueryBuilder{text: text}
}

// Where adds an exact-match tag filter. All Where conditions must hold.
func (b *QueryBuilder) Where(key, value string) *QueryBuilder {
	cond, err := filter.NewMatch(key, value)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("where %q: %w", key, err))
		return b
	}
	b.must = append(b.must, cond)
	return b
}

// Not adds an exact-match exclusion filter.
func (b *QueryBuilder) Not(key, value string) *QueryBuilder {
	cond, err := filter.NewMatch(key, value)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("not %q: %w", key, err))
		return b
	}
	b.mustNot = append(b.mustNot, cond)
	return b
}

// Between adds an inclusive numeric range filter.
func (b *QueryBuilder) Between(key string, gte, lte float64) *QueryBuilder {
	r, err := filter.NewRangeBounds(nil, &gte, nil, &lte)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("between %q: %w", key, err))
		return b
	}
	return b.rangeCond(key, r)
}

// Above adds an exclusive lower-bound numeric filter.
func (b *QueryBuilder) Above(key string, v float64) *QueryBuilder {
	return b.rangeCond(key, filter.GreaterThan(v))
}

// Below adds an exclusive upper-bound numeric filter.
func (b *QueryBuilder) Below(key string, v float64) *QueryBuilder {
	return b.rangeCond(key, filter.LessThan(v))
}

func (b *QueryBuilder) rangeCond(key string, r filter.Range) *QueryBuilder {
	cond, err := filter.NewRange(key, r)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("range %q: %w", key, err))
		return b
	}
	b.must = append(b.must, cond)
	return b
}

// SortBy appends a sort clause. Multiple clauses apply in call order.
func (b *QueryBuilder) SortBy(field string, descending bool) *QueryBuilder {
	b.sort = append(b.sort, query.Sort{Field: field, Desc: descending})
	return b
}

// Select restricts returned documents to the named fields.
func (b *QueryBuilder) Select(fields ...string) *QueryBuilder {
	b.fields = append(b.fields, fields...)
	return b
}

// Highlight requests highlighted fragments for the named fields,
// wrapped in the default bold tags.
func (b *QueryBuilder) Highlight(fields ...string) *QueryBuilder {
	b.highlightFields = append(b.highlightFields, fields...)
	return b
}

// HighlightStyle sets the named tag style (bold, em, mark, strong)
// for highlighted fragments.
func (b *QueryBuilder) HighlightStyle(style string) *QueryBuilder {
	b.highlightStyle = style
	return b
}

// build validates the accumulated parameters into an immutable query
// positioned at the given window.
func (b *QueryBuilder) build(limits query.Limits, skip, top int, requestCount bool) (query.Query, *highlight.Extractor, error) {
	if len(b.errs) > 0 {
		return query.Query{}, nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, b.errs[0])
	}

	filters, err := filter.NewExpression(b.must, nil, b.mustNot)
	if err != nil {
		return query.Query{}, nil, fmt.Errorf("%w: filters: %v", domain.ErrInvalidQuery, err)
	}

	var hl *query.Highlight
	var extractor *highlight.Extractor
	if len(b.highlightFields) > 0 {
		style := b.highlightStyle
		if style == "" {
			style = "bold"
		}
		extractor, err = highlight.New(highlight.Config{Style: style})
		if err != nil {
			return query.Query{}, nil, err
		}
		tags := extractor.Tags()
		hl = &query.Highlight{
			Fields:  b.highlightFields,
			PreTag:  tags.Pre,
			PostTag: tags.Post,
		}
	}

	q, err := query.New(query.Params{
		Text:         b.text,
		Filters:      filters,
		Sort:         b.sort,
		Select:       b.fields,
		Skip:         skip,
		Top:          top,
		RequestCount: requestCount,
		Highlight:    hl,
	}, limits)
	if err != nil {
		return query.Query{}, nil, err
	}
	return q, extractor, nil
}
