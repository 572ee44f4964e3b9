package valkey

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
// Highlight and WITHSCORES clauses are rejected: valkey-search does not
// implement them.
func (s *Store) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Highlight != nil && len(q.Highlight.Fields) > 0 {
		return nil, fmt.Errorf("%w: HIGHLIGHT not supported by valkey-search", db.ErrSyntax)
	}
	if len(q.Sort) > 1 {
		return nil, fmt.Errorf("%w: backend supports a single sort clause", db.ErrSyntax)
	}

	queryStr := buildQueryString(q.Text, q.Filters)
	args := []string{q.IndexName, queryStr}

	if q.CountOnly {
		args = append(args, "LIMIT", "0", "0", "DIALECT", "2")
	} else {
		if len(q.ReturnFields) > 0 {
			args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
			args = append(args, q.ReturnFields...)
		}
		if len(q.Sort) == 1 {
			dir := "ASC"
			if q.Sort[0].Desc {
				dir = "DESC"
			}
			args = append(args, "SORTBY", q.Sort[0].Field, dir)
		}
		args = append(args,
			"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
			"DIALECT", "2",
		)
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: classifyErr(err)}
	}

	return parseSearchResult(raw)
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

// parseSearchResult converts the 2-stride RESP2 reply [total, key1, fields1,
// ...] into a db.SearchResult. valkey-search never returns scores inline.
func parseSearchResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
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

func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string
	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}
	if len(expr.Should()) > 0 {
		group := make([]string, 0, len(expr.Should()))
		for _, cond := range expr.Should() {
			group = append(group, buildCondition(cond))
		}
		parts = append(parts, "("+strings.Join(group, " | ")+")")
	}
	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsMatch() {
		return fmt.Sprintf("@%s:{%s}", cond.Key(), tagEscaper.Replace(cond.Match()))
	}
	if r := cond.Range(); r != nil {
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
		return fmt.Sprintf("@%s:[%s %s]", cond.Key(), minBound, maxBound)
	}
	return ""
}

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
