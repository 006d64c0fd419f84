package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// SearchRequest is the body of POST /v1/{entity}/search.
type SearchRequest struct {
	Predicate queryir.Predicate `json:"predicate"`

	// Limit defaults to the server's default limit when omitted. An
	// explicit 0 requests every match.
	Limit  *int          `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
	Order  string        `json:"order,omitempty"`
	Fields []ir.Relation `json:"fields,omitempty"`
}

// SearchResponse is the body returned by a search.
type SearchResponse struct {
	Entity   ir.EntityKind `json:"entity"`
	Count    int           `json:"count"`
	Strategy string        `json:"strategy,omitempty"`
	Results  []ir.Entity   `json:"results"`
}

// CountRequest is the body of POST /v1/{entity}/count.
type CountRequest struct {
	Predicate queryir.Predicate `json:"predicate"`
}

// CountResponse is the body returned by a count.
type CountResponse struct {
	Entity ir.EntityKind `json:"entity"`
	Count  int64         `json:"count"`
}

// AggregateRequest is the body of POST /v1/{entity}/aggregate/{kind}.
type AggregateRequest struct {
	Predicate queryir.Predicate       `json:"predicate"`
	Params    queryir.AggregateParams `json:"params"`
}

// ExplainRequest is the body of POST /v1/{entity}/explain. Op selects which
// operation is explained; the remaining fields follow that operation's
// request.
type ExplainRequest struct {
	Op        string                  `json:"op"`
	Predicate queryir.Predicate       `json:"predicate"`
	Limit     *int                    `json:"limit,omitempty"`
	Offset    int                     `json:"offset,omitempty"`
	Order     string                  `json:"order,omitempty"`
	Fields    []ir.Relation           `json:"fields,omitempty"`
	Aggregate string                  `json:"aggregate,omitempty"`
	Params    queryir.AggregateParams `json:"params"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts, err := s.searchOptions(req.Limit, req.Offset, req.Order, req.Fields)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	res, err := s.engine.Search(r.Context(), kind, req.Predicate, opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Entity:   kind,
		Count:    len(res.Entities),
		Strategy: string(res.Strategy),
		Results:  res.Entities,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req CountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := s.engine.Count(r.Context(), kind, req.Predicate)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Entity: kind, Count: n})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityParam(w, r)
	if !ok {
		return
	}
	agg, err := queryir.ParseAggregateKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	var req AggregateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.engine.Aggregate(r.Context(), kind, agg, req.Predicate, req.Params)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req ExplainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		x   *engine.Explanation
		err error
	)
	switch req.Op {
	case "", "search":
		var opts engine.SearchOptions
		if opts, err = s.searchOptions(req.Limit, req.Offset, req.Order, req.Fields); err == nil {
			x, err = s.engine.ExplainSearch(kind, req.Predicate, opts)
		}
	case "count":
		x, err = s.engine.ExplainCount(kind, req.Predicate)
	case "aggregate":
		var agg queryir.AggregateKind
		if agg, err = queryir.ParseAggregateKind(req.Aggregate); err == nil {
			x, err = s.engine.ExplainAggregate(kind, agg, req.Predicate, req.Params)
		}
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown op %q", req.Op))
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (s *Server) searchOptions(limit *int, offset int, order string, fields []ir.Relation) (engine.SearchOptions, error) {
	terms, err := queryir.ParseOrder(order)
	if err != nil {
		return engine.SearchOptions{}, err
	}
	page := queryir.Page{Limit: s.defaultLimit, Offset: offset}
	if limit != nil {
		page.Limit = *limit
	}
	// Pages served over HTTP are always bounded by max_limit.
	if maxLimit := s.engine.MaxLimit(); maxLimit > 0 && page.Limit == 0 {
		if limit != nil {
			return engine.SearchOptions{}, &queryir.PredicateError{
				Clause:  "limit",
				Value:   "0",
				Message: fmt.Sprintf("unlimited pages are not served; use a limit of at most %d", maxLimit),
			}
		}
		page.Limit = maxLimit
	}
	return engine.SearchOptions{Page: page, Order: terms, Fields: fields}, nil
}

func entityParam(w http.ResponseWriter, r *http.Request) (ir.EntityKind, bool) {
	kind, err := ir.ParseEntityKind(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_entity", err.Error())
		return "", false
	}
	return kind, true
}

// decodeBody decodes a JSON request body. An empty body decodes to the
// zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsInvalidPredicate(err):
		writeError(w, http.StatusBadRequest, "invalid_predicate", err.Error())
	case engine.IsStoreError(err):
		s.logger.Error("store failure", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: ErrorDetail{
			Code:      "store_error",
			Message:   err.Error(),
			Retryable: engine.IsRetryable(err),
		}})
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
