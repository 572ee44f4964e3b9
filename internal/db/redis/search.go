package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/pagedex/pagedex/internal/db"
	"github.com/pagedex/pagedex/internal/domain/search/filter"
)

// Search runs one paginated FT.SEARCH round trip.
func (s *Store) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	args, err := buildSearchArgs(q)
	if err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: classifyErr(err)}
	}

	return parseSearchResult(raw, q.WithScores)
}

// Count runs the full query with a zero-width window and returns only the
// total, so the counted population matches what Search would return.
func (s *Store) Count(ctx context.Context, q *db.Query) (int64, error) {
	cq := *q
	cq.CountOnly = true
	res, err := s.Search(ctx, &cq)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

// buildSearchArgs assembles the FT.SEARCH argument list for a query.
func buildSearchArgs(q *db.Query) ([]string, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Sort) > 1 {
		return nil, fmt.Errorf("%w: backend supports a single sort clause", db.ErrSyntax)
	}

	queryStr := buildQueryString(q.Text, q.Filters)
	args := []string{q.IndexName, queryStr}

	if q.CountOnly {
		args = append(args, "LIMIT", "0", "0", "DIALECT", "2")
		return args, nil
	}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	if q.Highlight != nil && len(q.Highlight.Fields) > 0 {
		args = append(args, "HIGHLIGHT", "FIELDS", strconv.Itoa(len(q.Highlight.Fields)))
		args = append(args, q.Highlight.Fields...)
		args = append(args, "TAGS", q.Highlight.PreTag, q.Highlight.PostTag)

		args = append(args, "SUMMARIZE", "FIELDS", strconv.Itoa(len(q.Highlight.Fields)))
		args = append(args, q.Highlight.Fields...)
		if q.Highlight.MaxFragments > 0 {
			args = append(args, "FRAGS", strconv.Itoa(q.Highlight.MaxFragments))
		}
		args = append(args, "SEPARATOR", db.FragmentSeparator)
	}

	if len(q.Sort) == 1 {
		dir := "ASC"
		if q.Sort[0].Desc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.Sort[0].Field, dir)
	}

	if q.WithScores {
		args = append(args, "WITHSCORES")
	}

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)
	return args, nil
}

// buildQueryString combines the pre-filter expression with the text clause.
func buildQueryString(text string, filters filter.Expression) string {
	filterStr := buildFilter(filters)

	var textPart string
	if text != "" {
		textPart = "(" + escapeQuery(text) + ")"
	}

	switch {
	case filterStr != "" && textPart != "":
		return filterStr + " " + textPart
	case filterStr != "":
		return filterStr
	case textPart != "":
		return textPart
	default:
		return "*"
	}
}

// --- Result parsing ---

// parseSearchResult converts the RESP2 array reply into a db.SearchResult.
// Without scores the reply is 2-stride [total, key1, fields1, ...]; with
// WITHSCORES it is 3-stride [total, key1, score1, fields1, ...].
func parseSearchResult(raw []rueidis.RedisMessage, withScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	stride := 2
	if withScores {
		stride = 3
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/stride)
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key}
		fieldsIdx := i + 1

		if withScores {
			scoreStr, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			score, err := strconv.ParseFloat(scoreStr, 64)
			if err != nil {
				continue
			}
			entry.Score = score
			fieldsIdx = i + 2
		}

		fields, err := raw[fieldsIdx].ToArray()
		if err != nil {
			continue
		}
		entry.Fields = parseFieldPairs(fields)
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter
// query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string

	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}

	if shouldParts := buildShouldGroup(expr.Should()); shouldParts != "" {
		parts = append(parts, shouldParts)
	}

	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}

	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsMatch() {
		return buildTagFilter(cond.Key(), cond.Match())
	}
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return ""
}

func buildShouldGroup(conditions []filter.Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		parts = append(parts, buildCondition(cond))
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = fmt.Sprintf("(%g", *r.GT())
	} else if r.GTE() != nil {
		minBound = fmt.Sprintf("%g", *r.GTE())
	}

	if r.LT() != nil {
		maxBound = fmt.Sprintf("(%g", *r.LT())
	} else if r.LTE() != nil {
		maxBound = fmt.Sprintf("%g", *r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
