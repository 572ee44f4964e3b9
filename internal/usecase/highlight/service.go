// Package highlight post-processes raw highlight fragments into bounded,
// truncation-safe snippet lists and measures how well highlighting covers
// the query terms.
package highlight

import (
	"fmt"
	"strings"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultMaxSnippetsPerField = 5
	DefaultMaxSnippetLength    = 200
)

// ellipsis marks a truncated snippet.
const ellipsis = "..."

// TagStyle is a pre/post tag pair wrapped around matched terms.
type TagStyle struct {
	Pre  string
	Post string
}

// tagStyles is the fixed style lookup table. Built once, read-only.
var tagStyles = map[string]TagStyle{
	"bold":   {Pre: "<b>", Post: "</b>"},
	"em":     {Pre: "<em>", Post: "</em>"},
	"mark":   {Pre: "<mark>", Post: "</mark>"},
	"strong": {Pre: "<strong>", Post: "</strong>"},
}

// StyleFor resolves a tag style by name.
func StyleFor(name string) (TagStyle, error) {
	s, ok := tagStyles[name]
	if !ok {
		return TagStyle{}, fmt.Errorf("%w: %q", domain.ErrUnknownTagStyle, name)
	}
	return s, nil
}

// Config holds extractor parameters. Set either Style (a named tag style) or
// an explicit Pre/Post pair; Style wins when both are given.
type Config struct {
	Style               string
	Tags                TagStyle
	MaxSnippetsPerField int
	MaxSnippetLength    int
}

// Extractor shapes raw fragments. Stateless after construction, safe for
// concurrent use.
type Extractor struct {
	tags        TagStyle
	maxSnippets int
	maxLength   int
}

// New builds an Extractor from cfg.
func New(cfg Config) (*Extractor, error) {
	tags := cfg.Tags
	if cfg.Style != "" {
		var err error
		tags, err = StyleFor(cfg.Style)
		if err != nil {
			return nil, err
		}
	}
	if tags.Pre == "" || tags.Post == "" {
		return nil, fmt.Errorf("highlight: pre and post tags are required")
	}

	maxSnippets := cfg.MaxSnippetsPerField
	if maxSnippets <= 0 {
		maxSnippets = DefaultMaxSnippetsPerField
	}
	maxLength := cfg.MaxSnippetLength
	if maxLength <= 0 {
		maxLength = DefaultMaxSnippetLength
	}
	return &Extractor{tags: tags, maxSnippets: maxSnippets, maxLength: maxLength}, nil
}

// Tags returns the tag pair the extractor expects in raw fragments.
func (e *Extractor) Tags() TagStyle { return e.tags }

// Extract shapes the raw per-document fragments: snippet lists keep their
// order, are capped at MaxSnippetsPerField, and each snippet is truncated to
// MaxSnippetLength without ever cutting inside an open tag.
func (e *Extractor) Extract(raw page.Highlights) page.Highlights {
	if len(raw) == 0 {
		return nil
	}
	out := make(page.Highlights, len(raw))
	for docKey, byField := range raw {
		shaped := make(map[string][]string, len(byField))
		for field, fragments := range byField {
			n := len(fragments)
			if n > e.maxSnippets {
				n = e.maxSnippets
			}
			snippets := make([]string, 0, n)
			for _, frag := range fragments[:n] {
				snippets = append(snippets, e.truncate(frag))
			}
			shaped[field] = snippets
		}
		out[docKey] = shaped
	}
	return out
}

// truncate cuts s at the configured maximum length. When the cut would land
// inside an open tag, the nearest unmatched "<" is found by scanning
// backward and the cut moves before it. Truncated snippets get an ellipsis.
func (e *Extractor) truncate(s string) string {
	if len(s) <= e.maxLength {
		return s
	}
	cut := s[:e.maxLength]
	if open := strings.LastIndexByte(cut, '<'); open >= 0 && !strings.ContainsRune(cut[open:], '>') {
		cut = cut[:open]
	}
	return cut + ellipsis
}

// Coverage reports how effective the highlighting configuration was for one
// result page.
type Coverage struct {
	TotalDocuments       int
	HighlightedDocuments int
	// DocumentFraction is highlighted documents over total documents.
	DocumentFraction float64
	// TermFraction is the share of query terms that appear inside at
	// least one highlight span, matched case-insensitively.
	TermFraction float64
	MatchedTerms []string
	MissedTerms  []string
}

// Coverage analyzes a result page against the query text it came from. Low
// fractions signal that the highlighted fields do not carry the matching
// terms and the highlight field list should change.
func (e *Extractor) Coverage(pg page.ResultPage, queryText string) Coverage {
	cov := Coverage{TotalDocuments: pg.Len()}

	highlights := pg.Highlights()
	var spans []string
	for _, key := range pg.Keys() {
		byField, ok := highlights[key]
		if !ok || len(byField) == 0 {
			continue
		}
		cov.HighlightedDocuments++
		for _, fragments := range byField {
			for _, frag := range fragments {
				spans = append(spans, e.spans(frag)...)
			}
		}
	}
	if cov.TotalDocuments > 0 {
		cov.DocumentFraction = float64(cov.HighlightedDocuments) / float64(cov.TotalDocuments)
	}

	terms := strings.Fields(strings.ToLower(queryText))
	for _, term := range terms {
		matched := false
		for _, span := range spans {
			if strings.Contains(strings.ToLower(span), term) {
				matched = true
				break
			}
		}
		if matched {
			cov.MatchedTerms = append(cov.MatchedTerms, term)
		} else {
			cov.MissedTerms = append(cov.MissedTerms, term)
		}
	}
	if len(terms) > 0 {
		cov.TermFraction = float64(len(cov.MatchedTerms)) / float64(len(terms))
	}
	return cov
}

// spans extracts the text between each pre/post tag pair in a fragment.
func (e *Extractor) spans(fragment string) []string {
	var out []string
	rest := fragment
	for {
		start := strings.Index(rest, e.tags.Pre)
		if start < 0 {
			return out
		}
		rest = rest[start+len(e.tags.Pre):]
		end := strings.Index(rest, e.tags.Post)
		if end < 0 {
			return out
		}
		out = append(out, rest[:end])
		rest = rest[end+len(e.tags.Post):]
	}
}
