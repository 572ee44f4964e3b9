// Package page defines the immutable result page returned by one search call.
package page

import "strconv"

// Document is a single search hit: an opaque field map with a stable key and
// a relevance score. Scores are not comparable across distinct queries.
type Document struct {
	key      string
	score    float64
	tags     map[string]string
	numerics map[string]float64
}

// NewDocument creates a document.
func NewDocument(key string, score float64, tags map[string]string, numerics map[string]float64) Document {
	return Document{key: key, score: score, tags: tags, numerics: numerics}
}

// Key returns the unique document identifier.
func (d *Document) Key() string { return d.key }

// Score returns the relevance score.
func (d *Document) Score() float64 { return d.score }

// Tags returns the document string fields.
func (d *Document) Tags() map[string]string { return d.tags }

// Numerics returns the document numeric fields.
func (d *Document) Numerics() map[string]float64 { return d.numerics }

// Field returns a field value as a string, checking string fields first and
// falling back to numeric fields.
func (d *Document) Field(name string) (string, bool) {
	if v, ok := d.tags[name]; ok {
		return v, true
	}
	if v, ok := d.numerics[name]; ok {
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return "", false
}

// Numeric returns a numeric field value. Keyset pagination reads its sort
// anchor through this accessor.
func (d *Document) Numeric(name string) (float64, bool) {
	v, ok := d.numerics[name]
	return v, ok
}

// Highlights maps document key -> field -> ordered raw highlight fragments.
type Highlights map[string]map[string][]string

// ResultPage is the outcome of one executed query. Created fresh per call,
// never mutated after construction.
type ResultPage struct {
	documents  []Document
	totalCount *int64
	highlights Highlights
}

// New creates a result page. totalCount is nil when not requested.
func New(documents []Document, totalCount *int64, highlights Highlights) ResultPage {
	return ResultPage{documents: documents, totalCount: totalCount, highlights: highlights}
}

// Documents returns the ordered document sequence.
func (p *ResultPage) Documents() []Document { return p.documents }

// Len returns the number of documents in the page.
func (p *ResultPage) Len() int { return len(p.documents) }

// TotalCount returns the exact total match count and whether it is known.
func (p *ResultPage) TotalCount() (int64, bool) {
	if p.totalCount == nil {
		return 0, false
	}
	return *p.totalCount, true
}

// Highlights returns the raw per-document highlight fragments.
func (p *ResultPage) Highlights() Highlights { return p.highlights }

// Keys returns the document keys in page order.
func (p *ResultPage) Keys() []string {
	keys := make([]string, len(p.documents))
	for i := range p.documents {
		keys[i] = p.documents[i].key
	}
	return keys
}
