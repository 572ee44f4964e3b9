package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/pagedex/pagedex/internal/db"
	"github.com/pagedex/pagedex/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for missing addrs")
	}
}

// --- search.go tests ---

func TestSearch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "hotels"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2), // total
			mock.RedisString("hotels:h-1"),
			mock.RedisArray(
				mock.RedisString("name"),
				mock.RedisString("Grand Plaza"),
				mock.RedisString("price"),
				mock.RedisString("120.5"),
			),
			mock.RedisString("hotels:h-2"),
			mock.RedisArray(
				mock.RedisString("name"),
				mock.RedisString("Budget Inn"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.Query{
		IndexName: "hotels",
		Text:      "plaza",
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected total 2, got %d", result.Total)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Key != "hotels:h-1" {
		t.Errorf("expected key hotels:h-1, got %s", result.Entries[0].Key)
	}
	if result.Entries[0].Fields["price"] != "120.5" {
		t.Errorf("fields = %v", result.Entries[0].Fields)
	}
}

func TestSearch_WithScores(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			for _, a := range cmd {
				if a == "WITHSCORES" {
					return true
				}
			}
			return false
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("hotels:h-1"),
			mock.RedisString("1.8"),
			mock.RedisArray(
				mock.RedisString("name"),
				mock.RedisString("Grand Plaza"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.Query{
		IndexName:  "hotels",
		Text:       "plaza",
		Limit:      10,
		WithScores: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Entries[0].Score != 1.8 {
		t.Errorf("score = %f, want 1.8", result.Entries[0].Score)
	}
}

func TestSearch_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.Query{IndexName: "hotels", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 || result.Total != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestSearch_UnknownIndexClassified(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.Query{IndexName: "missing", Limit: 10})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}
}

func TestSearch_SyntaxErrorClassified(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("Syntax error at offset 4 near spa")))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.Query{IndexName: "hotels", Limit: 10})
	if !errors.Is(err, db.ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
}

func TestCount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[3] == "LIMIT" && cmd[4] == "0" && cmd[5] == "0"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(1234))))

	s := NewStoreForTest(c)
	total, err := s.Count(context.Background(), &db.Query{IndexName: "hotels", Text: "spa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1234 {
		t.Errorf("total = %d, want 1234", total)
	}
}

func TestCount_EmptyQueryMatchesAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(7))))

	s := NewStoreForTest(c)
	total, err := s.Count(context.Background(), &db.Query{IndexName: "hotels"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

func TestCount_CarriesFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "@city:{berlin} (spa)"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	expr, err := filter.NewExpression(
		[]filter.Condition{mustMatch(t, "city", "berlin")}, nil, nil,
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	s := NewStoreForTest(c)
	total, err := s.Count(context.Background(), &db.Query{
		IndexName: "hotels",
		Text:      "spa",
		Filters:   expr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
}

// --- argument assembly ---

func TestBuildSearchArgs_Window(t *testing.T) {
	args, err := buildSearchArgs(&db.Query{
		IndexName: "hotels",
		Text:      "spa",
		Offset:    20,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "LIMIT 20 10") {
		t.Errorf("args %q lack the window", joined)
	}
	if !strings.Contains(joined, "DIALECT 2") {
		t.Errorf("args %q lack the dialect", joined)
	}
}

func TestBuildSearchArgs_ReturnFields(t *testing.T) {
	args, err := buildSearchArgs(&db.Query{
		IndexName:    "hotels",
		Limit:        10,
		ReturnFields: []string{"name", "price"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "RETURN 2 name price") {
		t.Errorf("args %q lack RETURN", joined)
	}
}

func TestBuildSearchArgs_Highlight(t *testing.T) {
	args, err := buildSearchArgs(&db.Query{
		IndexName: "hotels",
		Text:      "spa",
		Limit:     10,
		Highlight: &db.HighlightSpec{
			Fields:  []string{"description"},
			PreTag:  "<b>",
			PostTag: "</b>",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "HIGHLIGHT FIELDS 1 description TAGS <b> </b>") {
		t.Errorf("args %q lack HIGHLIGHT", joined)
	}
	if !strings.Contains(joined, "SUMMARIZE FIELDS 1 description") {
		t.Errorf("args %q lack SUMMARIZE", joined)
	}
	if !strings.Contains(joined, "SEPARATOR "+db.FragmentSeparator) {
		t.Errorf("args %q lack the fragment separator", joined)
	}
}

func TestBuildSearchArgs_SortBy(t *testing.T) {
	args, err := buildSearchArgs(&db.Query{
		IndexName: "hotels",
		Limit:     10,
		Sort:      []db.SortClause{{Field: "price", Desc: true}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "SORTBY price DESC") {
		t.Errorf("args %q lack SORTBY", joined)
	}
}

func TestBuildSearchArgs_MultiSortRejected(t *testing.T) {
	_, err := buildSearchArgs(&db.Query{
		IndexName: "hotels",
		Limit:     10,
		Sort:      []db.SortClause{{Field: "price"}, {Field: "rating"}},
	})
	if !errors.Is(err, db.ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
}

// --- query string building ---

func TestBuildQueryString(t *testing.T) {
	must := []filter.Condition{mustMatch(t, "city", "berlin")}
	expr, err := filter.NewExpression(must, nil, nil)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	tests := []struct {
		name    string
		text    string
		filters filter.Expression
		want    string
	}{
		{"empty", "", filter.Expression{}, "*"},
		{"text only", "spa", filter.Expression{}, "(spa)"},
		{"filter only", "", expr, "@city:{berlin}"},
		{"both", "spa", expr, "@city:{berlin} (spa)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQueryString(tt.text, tt.filters); got != tt.want {
				t.Errorf("buildQueryString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildFilter_RangeAndNegation(t *testing.T) {
	rangeCond, err := filter.NewRange("price", filter.GreaterThan(50))
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	notCond := mustMatch(t, "chain", "generic")

	expr, err := filter.NewExpression(
		[]filter.Condition{rangeCond}, nil, []filter.Condition{notCond},
	)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	got := buildFilter(expr)
	if !strings.Contains(got, "@price:[(50 +inf]") {
		t.Errorf("filter %q lacks the exclusive range", got)
	}
	if !strings.Contains(got, "-@chain:{generic}") {
		t.Errorf("filter %q lacks the negation", got)
	}
}

func TestBuildFilter_ShouldGroup(t *testing.T) {
	should := []filter.Condition{
		mustMatch(t, "city", "berlin"),
		mustMatch(t, "city", "hamburg"),
	}
	expr, err := filter.NewExpression(nil, should, nil)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}

	got := buildFilter(expr)
	if got != "(@city:{berlin} | @city:{hamburg})" {
		t.Errorf("filter = %q", got)
	}
}

func TestEscapeQuery(t *testing.T) {
	got := escapeQuery(`spa @resort (cheap)`)
	if got != `spa \@resort \(cheap\)` {
		t.Errorf("escaped = %q", got)
	}
}

func TestBuildTagFilter_EscapesSpecials(t *testing.T) {
	got := buildTagFilter("chain", "b&b hotels")
	if got != `@chain:{b\&b\ hotels}` {
		t.Errorf("tag filter = %q", got)
	}
}

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}
