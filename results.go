package pagedex

import (
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/usecase/highlight"
)

// Document is one search hit.
type Document struct {
	ID       string
	Score    float64
	Fields   map[string]string
	Numerics map[string]float64
	// Highlights maps field name to highlighted fragments, in ranking
	// order. Empty unless the query requested highlighting.
	Highlights map[string][]string
}

// Page is one window of search results.
type Page struct {
	Items []Document
	// Total is the exact result count across all pages.
	// Valid only when HasTotal is true; totals are returned only when the
	// operation requested one.
	Total    int64
	HasTotal bool
}

// Len returns the number of documents on the page.
func (p Page) Len() int { return len(p.Items) }

// fromResultPage converts an internal result page into the public shape.
// extractor may be nil; when set, raw fragments are capped and truncated
// before they reach the caller.
func fromResultPage(pg page.ResultPage, extractor *highlight.Extractor) Page {
	docs := pg.Documents()
	highlights := pg.Highlights()
	if extractor != nil {
		highlights = extractor.Extract(highlights)
	}

	items := make([]Document, len(docs))
	for i := range docs {
		d := &docs[i]
		items[i] = Document{
			ID:         d.Key(),
			Score:      d.Score(),
			Fields:     d.Tags(),
			Numerics:   d.Numerics(),
			Highlights: highlights[d.Key()],
		}
	}

	out := Page{Items: items}
	if total, ok := pg.TotalCount(); ok {
		out.Total = total
		out.HasTotal = true
	}
	return out
}
