package db

import "github.com/pagedex/pagedex/internal/domain/search/filter"

// SortClause is one SORTBY directive.
type SortClause struct {
	Field string
	Desc  bool
}

// FragmentSeparator joins summarized highlight fragments inside a field
// value. Chosen outside the printable range so shaping code can split
// unambiguously.
const FragmentSeparator = "\x1f"

// HighlightSpec asks the backend to mark matched terms inside fields and
// summarize each field into up to MaxFragments fragments.
type HighlightSpec struct {
	Fields       []string
	PreTag       string
	PostTag      string
	MaxFragments int // 0 means backend default
}

// Query is the input for one paginated FT.SEARCH round trip.
type Query struct {
	IndexName    string
	Text         string // "" means match all (*)
	Filters      filter.Expression
	Sort         []SortClause
	Offset       int
	Limit        int
	ReturnFields []string
	WithScores   bool
	Highlight    *HighlightSpec
	CountOnly    bool
}

// SearchResult is the output of a search operation. Total is always present
// in the reply header; Entries hold at most Limit hits.
type SearchResult struct {
	Total   int64
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Highlighted fields come back inline
// in Fields with the configured tags already applied.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
