package highlight

import (
	"errors"
	"strings"
	"testing"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
)

func newExtractor(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestStyleLookup(t *testing.T) {
	s, err := StyleFor("bold")
	if err != nil {
		t.Fatal(err)
	}
	if s.Pre != "<b>" || s.Post != "</b>" {
		t.Errorf("bold = %+v", s)
	}

	if _, err := StyleFor("sparkle"); !errors.Is(err, domain.ErrUnknownTagStyle) {
		t.Errorf("got %v, want ErrUnknownTagStyle", err)
	}
}

func TestNewRequiresTags(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New accepted empty config")
	}
	if _, err := New(Config{Style: "nope"}); !errors.Is(err, domain.ErrUnknownTagStyle) {
		t.Errorf("got %v, want ErrUnknownTagStyle", err)
	}
}

func TestShortFragmentPassesThroughUnchanged(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold", MaxSnippetLength: 100})

	in := "a <b>luxury</b> hotel"
	got := e.Extract(page.Highlights{"h1": {"description": {in}}})
	if got["h1"]["description"][0] != in {
		t.Errorf("short fragment changed: %q", got["h1"]["description"][0])
	}
}

func TestTruncationNeverSplitsOpenTag(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold", MaxSnippetLength: 24})

	// Length 24 lands inside "<b>" of the second term.
	in := "stay at the grand spa <b>resort</b>"
	got := e.Extract(page.Highlights{"h1": {"description": {in}}})["h1"]["description"][0]

	if len(got) > 24+len("...") {
		t.Errorf("snippet length %d exceeds max+ellipsis", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated snippet lacks ellipsis: %q", got)
	}
	if open := strings.LastIndexByte(got, '<'); open >= 0 && !strings.ContainsRune(got[open:], '>') {
		t.Errorf("snippet ends inside an open tag: %q", got)
	}
}

func TestTruncationPlainText(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold", MaxSnippetLength: 10})

	got := e.Extract(page.Highlights{"h1": {"d": {"abcdefghijklmnop"}}})["h1"]["d"][0]
	if got != "abcdefghij..." {
		t.Errorf("got %q, want %q", got, "abcdefghij...")
	}
}

func TestSnippetCapPerField(t *testing.T) {
	e := newExtractor(t, Config{Style: "mark", MaxSnippetsPerField: 2})

	raw := page.Highlights{"h1": {"d": {"<mark>a</mark>", "<mark>b</mark>", "<mark>c</mark>"}}}
	got := e.Extract(raw)["h1"]["d"]
	if len(got) != 2 || got[0] != "<mark>a</mark>" || got[1] != "<mark>b</mark>" {
		t.Errorf("capped snippets = %v", got)
	}
}

func TestExtractEmpty(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold"})
	if got := e.Extract(nil); got != nil {
		t.Errorf("Extract(nil) = %v, want nil", got)
	}
}

func TestCoverage(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold"})

	docs := []page.Document{
		page.NewDocument("h1", 2.0, nil, nil),
		page.NewDocument("h2", 1.5, nil, nil),
		page.NewDocument("h3", 1.0, nil, nil),
		page.NewDocument("h4", 0.5, nil, nil),
	}
	hl := page.Highlights{
		"h1": {"description": {"a <b>Luxury</b> stay"}},
		"h3": {"description": {"the <b>spa</b> wing"}},
	}
	pg := page.New(docs, nil, hl)

	cov := e.Coverage(pg, "luxury spa pool")
	if cov.TotalDocuments != 4 || cov.HighlightedDocuments != 2 {
		t.Errorf("doc counts = %d/%d, want 2/4", cov.HighlightedDocuments, cov.TotalDocuments)
	}
	if cov.DocumentFraction != 0.5 {
		t.Errorf("DocumentFraction = %v, want 0.5", cov.DocumentFraction)
	}
	// "luxury" and "spa" appear inside spans (case-insensitive), "pool"
	// does not.
	if len(cov.MatchedTerms) != 2 || len(cov.MissedTerms) != 1 || cov.MissedTerms[0] != "pool" {
		t.Errorf("terms: matched=%v missed=%v", cov.MatchedTerms, cov.MissedTerms)
	}
	if want := 2.0 / 3.0; cov.TermFraction != want {
		t.Errorf("TermFraction = %v, want %v", cov.TermFraction, want)
	}
}

func TestCoverageEmptyPage(t *testing.T) {
	e := newExtractor(t, Config{Style: "bold"})
	cov := e.Coverage(page.New(nil, nil, nil), "")
	if cov.DocumentFraction != 0 || cov.TermFraction != 0 {
		t.Errorf("empty page coverage = %+v", cov)
	}
}
