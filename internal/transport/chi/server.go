// Package chi exposes the search pipeline over HTTP. The API is stateless:
// offset pages are addressed by page number, keyset scans resume from opaque
// cursor tokens, so no paginator state lives server side.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pagedex/pagedex/internal/domain"
	"github.com/pagedex/pagedex/internal/domain/search/page"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	"github.com/pagedex/pagedex/internal/metrics"
	"github.com/pagedex/pagedex/internal/repository/querycache"
	"github.com/pagedex/pagedex/internal/retry"
	countuc "github.com/pagedex/pagedex/internal/usecase/count"
	fieldsuc "github.com/pagedex/pagedex/internal/usecase/fields"
	healthuc "github.com/pagedex/pagedex/internal/usecase/health"
	"github.com/pagedex/pagedex/internal/usecase/highlight"
	keysetuc "github.com/pagedex/pagedex/internal/usecase/keyset"
)

// Executor runs one search round trip (the cached pipeline or the bare
// query executor).
type Executor interface {
	Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// IndexConfig describes one served index: its field selector and the fields
// a keyset scan may anchor on.
type IndexConfig struct {
	Selector *fieldsuc.Selector
	Sortable map[string]bool
}

type sortableCatalog map[string]bool

func (c sortableCatalog) SortableUnique(field string) bool { return c[field] }

// Server handles the HTTP API.
type Server struct {
	exec          Executor
	counter       *countuc.Service
	cache         *querycache.Cache // nil when caching is disabled
	health        *healthuc.Service
	indexes       map[string]IndexConfig
	limits        query.Limits
	retry         retry.Policy
	callTimeout   time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Config holds server construction parameters.
type Config struct {
	Limits      query.Limits
	Retry       retry.Policy
	CallTimeout time.Duration
	// Indexes restricts and configures the served indexes. An empty map
	// serves any index without field validation.
	Indexes map[string]IndexConfig
}

// NewServer creates an HTTP API server. cache may be nil.
func NewServer(
	exec Executor,
	counter *countuc.Service,
	cache *querycache.Cache,
	health *healthuc.Service,
	cfg Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		exec:        exec,
		counter:     counter,
		cache:       cache,
		health:      health,
		indexes:     cfg.Indexes,
		limits:      cfg.Limits,
		retry:       cfg.Retry,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidPageSize, http.StatusBadRequest, CodeInvalidPageSize),
		sentinelHandler(domain.ErrDeepPaginationLimit, http.StatusBadRequest, CodeDeepPaginationLimit),
		sentinelHandler(domain.ErrInvalidSortField, http.StatusBadRequest, CodeInvalidSortField),
		sentinelHandler(domain.ErrUnknownTagStyle, http.StatusBadRequest, CodeUnknownTagStyle),
		sentinelHandler(domain.ErrUnknownField, http.StatusBadRequest, CodeUnknownField),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrNoNextPage, http.StatusConflict, CodeNoNextPage),
		sentinelHandler(domain.ErrNoPreviousPage, http.StatusConflict, CodeNoPreviousPage),
		sentinelHandler(domain.ErrHighlightNotSupported, http.StatusNotImplemented, CodeHighlightNotSupported),
		sentinelHandler(domain.ErrTransient, http.StatusServiceUnavailable, CodeServiceUnavailable),
	}
	return s
}

// Router builds a self-contained routing tree with metrics and auth
// middleware. Callers that assemble their own middleware chain should use
// Routes on a prepared router instead.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chirouter.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(apiKeys))
	s.Routes(r)
	return r
}

// Routes mounts the API handlers on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/indexes/{index}/search", s.Search)
		r.Post("/indexes/{index}/count", s.Count)
		r.Get("/stats/cache", s.CacheStats)
		r.Get("/stats/slow-queries", s.SlowQueries)
	})
}

// Search handles POST /api/v1/indexes/{index}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	index := chirouter.URLParam(r, "index")
	idx, ok := s.indexConfig(index)
	if !ok {
		writeError(w, http.StatusNotFound, CodeBadRequest, "unknown index "+strconv.Quote(index))
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	base, extractor, warnings, err := s.buildQuery(&req, idx)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	switch derefString(req.Mode) {
	case "", ModeOffset:
		s.searchOffset(w, r, index, base, &req, extractor, warnings)
	case ModeKeyset:
		s.searchKeyset(w, r, index, base, idx, &req, extractor, warnings)
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			"mode must be \"offset\" or \"keyset\"")
	}
}

// buildQuery assembles the validated base query plus the optional highlight
// extractor from a request body.
func (s *Server) buildQuery(req *SearchRequest, idx IndexConfig) (query.Query, *highlight.Extractor, []string, error) {
	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		return query.Query{}, nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}

	var hl *query.Highlight
	var extractor *highlight.Extractor
	if req.Highlight != nil {
		extractor, err = highlight.New(highlight.Config{
			Style:               styleOrDefault(req.Highlight.Style),
			MaxSnippetsPerField: req.Highlight.MaxSnippetsPerField,
			MaxSnippetLength:    req.Highlight.MaxSnippetLength,
		})
		if err != nil {
			return query.Query{}, nil, nil, err
		}
		tags := extractor.Tags()
		hl = &query.Highlight{Fields: req.Highlight.Fields, PreTag: tags.Pre, PostTag: tags.Post}
	}

	q, err := query.New(query.Params{
		Text:      req.Query,
		Filters:   filters,
		Sort:      sortFromDTO(req.Sort),
		Select:    req.Select,
		Top:       derefInt(req.PageSize),
		Highlight: hl,
	}, s.limits)
	if err != nil {
		return query.Query{}, nil, nil, err
	}

	var warnings []string
	if idx.Selector != nil {
		if req.Preset != nil {
			q = idx.Selector.ApplyPreset(q, *req.Preset)
		} else if len(req.Select) > 0 {
			var sel fieldsuc.Selection
			q, sel = idx.Selector.Apply(q, req.Select)
			for _, w := range sel.Warnings() {
				warnings = append(warnings, w.Error())
			}
		}
	}
	return q, extractor, warnings, nil
}

func (s *Server) searchOffset(
	w http.ResponseWriter, r *http.Request,
	index string, base query.Query, req *SearchRequest,
	extractor *highlight.Extractor, warnings []string,
) {
	pageN := derefInt(req.Page)
	if pageN < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "page must be non-negative")
		return
	}
	size := base.Top()

	includeCount := pageN == 0
	if req.Context != nil {
		pol := s.counter.PolicyFor(countuc.UsageContext(*req.Context), &base)
		includeCount = includeCount && pol.IncludeCount
	}
	if req.IncludeCount != nil {
		includeCount = *req.IncludeCount
	}

	q, err := base.WithWindow(pageN*size, size, includeCount)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	pg, err := s.execute(r.Context(), index, &q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.PageFetchesTotal.WithLabelValues("offset").Inc()

	resp := SearchResponse{
		Items:    documentsToDTO(pg, extractor),
		Page:     pageN,
		PageSize: size,
		HasMore:  pg.Len() == size,
		Warnings: warnings,
	}
	if total, ok := pg.TotalCount(); ok {
		resp.TotalCount = &total
		pages := 0
		if total > 0 {
			pages = int((total-1)/int64(size)) + 1
		}
		resp.TotalPages = &pages
		resp.HasMore = int64(pageN+1)*int64(size) < total
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) searchKeyset(
	w http.ResponseWriter, r *http.Request,
	index string, base query.Query, idx IndexConfig, req *SearchRequest,
	extractor *highlight.Extractor, warnings []string,
) {
	var catalog keysetuc.FieldCatalog
	if idx.Sortable != nil {
		catalog = sortableCatalog(idx.Sortable)
	}

	var p *keysetuc.Paginator
	var err error
	if req.Cursor != nil && *req.Cursor != "" {
		p, err = keysetuc.Resume(s.timeoutExec(), catalog, index, base, *req.Cursor, s.retry)
	} else {
		p, err = keysetuc.New(s.timeoutExec(), catalog, keysetuc.Config{
			Index:      index,
			Base:       base,
			SortField:  derefString(req.SortField),
			Descending: derefBool(req.Descending),
			PageSize:   base.Top(),
			Retry:      s.retry,
		})
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	pg, err := p.LoadNext(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.PageFetchesTotal.WithLabelValues("keyset").Inc()

	resp := SearchResponse{
		Items:    documentsToDTO(pg, extractor),
		PageSize: p.PageSize(),
		HasMore:  p.HasNext(),
		Warnings: warnings,
	}
	if resp.HasMore {
		token, err := p.Token()
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.NextCursor = &token
	}
	writeJSON(w, http.StatusOK, resp)
}

// Count handles POST /api/v1/indexes/{index}/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	index := chirouter.URLParam(r, "index")
	if _, ok := s.indexConfig(index); !ok {
		writeError(w, http.StatusNotFound, CodeBadRequest, "unknown index "+strconv.Quote(index))
		return
	}

	var req CountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	q, err := query.New(query.Params{Text: req.Query, Filters: filters}, s.limits)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var (
		est countuc.Estimate
		pol countuc.Policy
	)
	if req.Exact != nil && !*req.Exact {
		est, err = s.counter.Estimate(r.Context(), index, &q)
	} else if req.Context != nil {
		est, pol, err = s.counter.ForContext(r.Context(), countuc.UsageContext(*req.Context), index, &q)
	} else {
		est, err = s.counter.Exact(r.Context(), index, &q)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CountResponse{
		Total:         est.Total,
		Confidence:    string(est.Confidence),
		Method:        string(est.Method),
		PagesSampled:  est.PagesSampled,
		DocumentsSeen: est.DocumentsSeen,
		CacheTTLSec:   int(pol.CacheTTL / time.Second),
	})
}

// CacheStats handles GET /api/v1/stats/cache.
func (s *Server) CacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, CodeBadRequest, "result cache is disabled")
		return
	}
	snap := s.cache.Stats()
	writeJSON(w, http.StatusOK, CacheStatsResponse{
		TotalRequests:   snap.TotalRequests,
		Hits:            snap.Hits,
		Misses:          snap.Misses,
		Entries:         snap.Entries,
		AvgLatencyMs:    float64(snap.AverageLatency) / float64(time.Millisecond),
		Recommendations: s.cache.Recommendations(),
	})
}

// SlowQueries handles GET /api/v1/stats/slow-queries.
func (s *Server) SlowQueries(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, CodeBadRequest, "result cache is disabled")
		return
	}
	slow := s.cache.SlowQueries()
	items := make([]SlowQueryResponse, len(slow))
	for i, sq := range slow {
		items[i] = SlowQueryResponse{
			ID:         sq.ID,
			Index:      sq.Index,
			Query:      sq.Text,
			Skip:       sq.Skip,
			Top:        sq.Top,
			ElapsedMs:  sq.Elapsed.Milliseconds(),
			RecordedAt: sq.RecordedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) indexConfig(index string) (IndexConfig, bool) {
	if len(s.indexes) == 0 {
		return IndexConfig{}, index != ""
	}
	idx, ok := s.indexes[index]
	return idx, ok
}

// execute runs one round trip under the retry policy and per-call timeout.
func (s *Server) execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	var pg page.ResultPage
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		if s.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
			defer cancel()
		}
		var err error
		pg, err = s.exec.Execute(ctx, index, q)
		return err
	})
	return pg, err
}

// timeoutExec wraps the executor with the per-call timeout for components
// that carry their own retry policy.
func (s *Server) timeoutExec() Executor {
	if s.callTimeout <= 0 {
		return s.exec
	}
	return &timeoutExecutor{inner: s.exec, timeout: s.callTimeout}
}

type timeoutExecutor struct {
	inner   Executor
	timeout time.Duration
}

func (t *timeoutExecutor) Execute(ctx context.Context, index string, q *query.Query) (page.ResultPage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Execute(ctx, index, q)
}

func documentsToDTO(pg page.ResultPage, extractor *highlight.Extractor) []DocumentResponse {
	shaped := pg.Highlights()
	if extractor != nil {
		shaped = extractor.Extract(shaped)
	}

	docs := pg.Documents()
	items := make([]DocumentResponse, len(docs))
	for i := range docs {
		d := &docs[i]
		fields := make(map[string]any, len(d.Tags())+len(d.Numerics()))
		for k, v := range d.Tags() {
			fields[k] = v
		}
		for k, v := range d.Numerics() {
			fields[k] = v
		}
		items[i] = DocumentResponse{
			ID:         d.Key(),
			Score:      d.Score(),
			Fields:     fields,
			Highlights: shaped[d.Key()],
		}
	}
	return items
}

func styleOrDefault(style string) string {
	if style == "" {
		return "bold"
	}
	return style
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidPageSize,
		domain.ErrDeepPaginationLimit,
		domain.ErrInvalidSortField,
		domain.ErrUnknownField,
		domain.ErrUnknownTagStyle,
		domain.ErrNoNextPage,
		domain.ErrNoPreviousPage,
		domain.ErrHighlightNotSupported,
		domain.ErrTransient,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
