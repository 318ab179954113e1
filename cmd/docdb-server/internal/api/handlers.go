package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nullstore/docdb/cmd/docdb-server/internal/clientctx"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/registry"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/semaphore"
	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
	"github.com/nullstore/docdb/internal/query"
)

// Handlers holds every HTTP handler and the dependencies they share.
type Handlers struct {
	engine      *query.Engine
	execReg     *registry.Manager
	execSem     *semaphore.Semaphore
	logger      zerolog.Logger
	queryTimeout time.Duration
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	engine *query.Engine,
	execReg *registry.Manager,
	execSem *semaphore.Semaphore,
	logger zerolog.Logger,
	queryTimeout time.Duration,
) *Handlers {
	return &Handlers{
		engine:       engine,
		execReg:      execReg,
		execSem:      execSem,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// QueryHandler handles POST /query: run a (possibly racing) query and
// return its first batch of matching documents.
func (h *Handlers) QueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if req.Namespace == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "namespace is required")
			return
		}

		pred, err := query.ParseFilter(req.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error())
			return
		}

		ctx := r.Context()
		if err := h.execSem.Acquire(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "server busy")
			return
		}
		defer h.execSem.Release()

		timeout := req.Timeout(h.queryTimeout)
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		opts := query.Options{
			AllowSpecial: true,
			Sort:         toSortFields(req.Sort),
			Hint:         toHint(req.Hint),
		}
		if len(req.Projection) > 0 {
			opts.Projection = &planner.Projection{Fields: req.Projection}
		}

		cur, err := h.engine.Query(ctx, req.Namespace, pred, opts)
		if err != nil {
			writeQueryErr(w, err)
			return
		}

		batch := req.BatchSize
		if batch <= 0 {
			batch = 100
		}
		if req.Limit > 0 && req.Limit < batch {
			batch = req.Limit
		}

		docs, exhausted, err := drainBatch(ctx, cur, batch, req.Limit)
		if err != nil {
			writeQueryErr(w, err)
			return
		}

		resp := QueryResponse{
			Documents: docs,
			Exhausted: exhausted,
			LatencyMS: time.Since(start).Milliseconds(),
		}

		if !exhausted {
			clientID := getClientID(r)
			exec, err := h.execReg.Begin(context.Background(), clientID, req.Namespace, cur)
			if err != nil {
				writeError(w, http.StatusConflict, ErrCodeTooManyExecs, err.Error())
				return
			}
			resp.Cursor = exec.ID
		}

		h.logger.Info().
			Str("namespace", req.Namespace).
			Int("documents", len(docs)).
			Int64("latency_ms", resp.LatencyMS).
			Bool("exhausted", exhausted).
			Msg("query_executed")

		writeJSON(w, http.StatusOK, resp)
	}
}

// CursorHandler handles GET /cursor/{id}: resume a query execution and
// fetch its next batch.
func (h *Handlers) CursorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")

		exec, err := h.execReg.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "execution not found")
			return
		}
		h.execReg.Touch(id)

		docs, exhausted, err := drainBatch(exec.Context, exec.Cursor, 100, 0)
		if err != nil {
			h.execReg.Remove(id)
			writeQueryErr(w, err)
			return
		}

		resp := QueryResponse{
			Documents: docs,
			Exhausted: exhausted,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if exhausted {
			h.execReg.Remove(id)
		} else {
			resp.Cursor = id
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// CountHandler handles POST /count: runCount (§6).
func (h *Handlers) CountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req CountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if req.Namespace == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "namespace is required")
			return
		}
		pred, err := query.ParseFilter(req.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
		defer cancel()

		n, err := h.engine.RunCount(ctx, req.Namespace, pred)
		if err != nil {
			writeQueryErr(w, err)
			return
		}

		resp := CountResponse{Count: n, LatencyMS: time.Since(start).Milliseconds()}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ExplainHandler handles POST /explain.
func (h *Handlers) ExplainHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req ExplainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if req.Namespace == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "namespace is required")
			return
		}
		pred, err := query.ParseFilter(req.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error())
			return
		}

		opts := query.Options{AllowSpecial: true, Sort: toSortFields(req.Sort), Hint: toHint(req.Hint)}
		plan, err := h.engine.Explain(req.Namespace, pred, opts)
		if err != nil {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}

		resp := ExplainResponse{Plan: plan, LatencyMS: time.Since(start).Milliseconds()}
		writeJSON(w, http.StatusOK, resp)
	}
}

// InsertHandler handles POST /insert.
func (h *Handlers) InsertHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req InsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if req.Namespace == "" {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "namespace is required")
			return
		}

		ids := make([]int, 0, len(req.Documents))
		for _, raw := range req.Documents {
			doc := docval.Document{}
			for k, v := range raw {
				doc[k] = v
			}
			ids = append(ids, h.engine.Insert(req.Namespace, doc))
		}

		resp := InsertResponse{InsertedIDs: ids, LatencyMS: time.Since(start).Milliseconds()}

		h.logger.Info().
			Str("namespace", req.Namespace).
			Int("count", len(ids)).
			Int64("latency_ms", resp.LatencyMS).
			Msg("insert_completed")

		writeJSON(w, http.StatusOK, resp)
	}
}

// CreateIndexHandler handles POST /index.
func (h *Handlers) CreateIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req CreateIndexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if req.Namespace == "" || req.Name == "" || len(req.Key) == 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "namespace, name, and key are required")
			return
		}

		spec := planner.IndexSpec{
			Name:   req.Name,
			Key:    toKeyFields(req.Key),
			Sparse: req.Sparse,
		}
		if req.Special == "2d" {
			spec.Special = planner.SpecialKind("2d")
		}

		if err := h.engine.CreateIndex(req.Namespace, spec); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}

		resp := CreateIndexResponse{Name: req.Name, LatencyMS: time.Since(start).Milliseconds()}

		h.logger.Info().
			Str("namespace", req.Namespace).
			Str("index", req.Name).
			Msg("index_created")

		writeJSON(w, http.StatusOK, resp)
	}
}

// DropIndexHandler handles DELETE /index.
func (h *Handlers) DropIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DropIndexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
			return
		}
		h.engine.DropIndex(req.Namespace, req.Name)

		h.logger.Info().
			Str("namespace", req.Namespace).
			Str("index", req.Name).
			Msg("index_dropped")

		writeJSON(w, http.StatusOK, map[string]string{"status": "dropped"})
	}
}

// HealthHandler handles GET /health.
func (h *Handlers) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open, clients := h.execReg.Stats()
		resp := HealthResponse{
			Status:          "healthy",
			OpenExecutions:  open,
			DistinctClients: clients,
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// drainBatch pulls up to batch matching documents (a batch of 0 returns
// none) from cur, respecting limit (0 means unbounded) and reporting
// whether the cursor ran dry.
func drainBatch(ctx context.Context, cur planner.Cursor, batch, limit int) ([]map[string]interface{}, bool, error) {
	docs := make([]map[string]interface{}, 0, batch)
	for cur.Ok() && len(docs) < batch {
		if limit > 0 && len(docs) >= limit {
			return docs, true, nil
		}
		if cur.CurrentMatches() {
			docs = append(docs, toJSONDoc(cur.Current()))
		}
		if err := cur.Advance(ctx); err != nil {
			return docs, false, err
		}
	}
	return docs, !cur.Ok(), nil
}

func toJSONDoc(d docval.Document) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func toSortFields(in []SortField) []planner.SortField {
	if len(in) == 0 {
		return nil
	}
	out := make([]planner.SortField, len(in))
	for i, f := range in {
		out[i] = planner.SortField{Field: f.Field, Direction: f.Direction}
	}
	return out
}

func toKeyFields(in []SortField) []planner.KeyField {
	out := make([]planner.KeyField, len(in))
	for i, f := range in {
		out[i] = planner.KeyField{Field: f.Field, Direction: f.Direction}
	}
	return out
}

func toHint(name string) planner.Hint {
	if name == "" {
		return planner.NoHint()
	}
	if name == "$natural" {
		return planner.Hint{HasNatural: true, Natural: 1}
	}
	return planner.Hint{Name: name}
}

func writeQueryErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrDeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, planner.ErrCancelled):
		writeError(w, http.StatusRequestTimeout, ErrCodeCancelled, err.Error())
	case errors.Is(err, planner.ErrUnresolvedHint):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func getClientID(r *http.Request) string {
	if id, ok := clientctx.From(r.Context()); ok {
		return id
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.RemoteAddr
}
