package api

import "time"

// QueryRequest is the body of POST /query: a Mongo-shaped filter document
// plus the optional sort/projection/hint/limit knobs §6 exposes.
type QueryRequest struct {
	Namespace  string                 `json:"namespace"`
	Filter     map[string]interface{} `json:"filter"`
	Sort       []SortField            `json:"sort,omitempty"`
	Projection []string               `json:"projection,omitempty"`
	Hint       string                 `json:"hint,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	BatchSize  int                    `json:"batch_size,omitempty"`
	TimeoutMS  int                    `json:"timeout_ms,omitempty"`
}

// SortField names one sort key and its direction (1 ascending, -1 descending).
type SortField struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// QueryResponse carries one page of documents. If Cursor is non-empty, the
// client can fetch the next page from GET /cursor/{cursor}.
type QueryResponse struct {
	Documents []map[string]interface{} `json:"documents"`
	Cursor    string                    `json:"cursor,omitempty"`
	Exhausted bool                      `json:"exhausted"`
	LatencyMS int64                     `json:"latency_ms"`
}

// CountRequest is the body of POST /count.
type CountRequest struct {
	Namespace string                 `json:"namespace"`
	Filter    map[string]interface{} `json:"filter"`
}

// CountResponse reports runCount's result (§6): -1 for a missing namespace.
type CountResponse struct {
	Count     int64 `json:"count"`
	LatencyMS int64 `json:"latency_ms"`
}

// ExplainRequest is the body of POST /explain.
type ExplainRequest struct {
	Namespace string                 `json:"namespace"`
	Filter    map[string]interface{} `json:"filter"`
	Sort      []SortField            `json:"sort,omitempty"`
	Hint      string                 `json:"hint,omitempty"`
}

// ExplainResponse carries the rendered QueryPlanSet diagnostic string.
type ExplainResponse struct {
	Plan      string `json:"plan"`
	LatencyMS int64  `json:"latency_ms"`
}

// InsertRequest is the body of POST /insert.
type InsertRequest struct {
	Namespace string                   `json:"namespace"`
	Documents []map[string]interface{} `json:"documents"`
}

// InsertResponse reports the store-assigned id of every inserted
// document; it differs from _id when the caller supplied one.
type InsertResponse struct {
	InsertedIDs []int `json:"inserted_ids"`
	LatencyMS   int64 `json:"latency_ms"`
}

// CreateIndexRequest is the body of POST /index.
type CreateIndexRequest struct {
	Namespace string      `json:"namespace"`
	Name      string      `json:"name"`
	Key       []SortField `json:"key"`
	Unique    bool        `json:"unique,omitempty"`
	Sparse    bool        `json:"sparse,omitempty"`
	Special   string      `json:"special,omitempty"` // "2d" or empty
}

// CreateIndexResponse acknowledges an index creation.
type CreateIndexResponse struct {
	Name      string `json:"name"`
	LatencyMS int64  `json:"latency_ms"`
}

// DropIndexRequest is the body of DELETE /index.
type DropIndexRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	OpenExecutions  int    `json:"open_executions"`
	DistinctClients int    `json:"distinct_clients"`
}

// ErrorResponse wraps a single error for a failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error's machine-readable code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned in ErrorDetail.Code.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeCancelled     = "CANCELLED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTooManyExecs  = "TOO_MANY_EXECUTIONS"
	ErrCodeInvalidFilter = "INVALID_FILTER"
)

// Timeout returns the request's timeout or a default.
func (r *QueryRequest) Timeout(defaultTimeout time.Duration) time.Duration {
	if r.TimeoutMS > 0 {
		return time.Duration(r.TimeoutMS) * time.Millisecond
	}
	return defaultTimeout
}
