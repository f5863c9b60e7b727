package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-nodes/internal/inputlog"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// handleListInputs returns a page of the input journal, newest first.
//
// Query parameters: node_id, property, result, limit, offset.
func (s *Server) handleListInputs(w http.ResponseWriter, r *http.Request) {
	if s.inputs == nil {
		writeUnavailable(w, "input journal not configured")
		return
	}

	q := r.URL.Query()
	filter := inputlog.Filter{
		NodeID:   q.Get("node_id"),
		Property: q.Get("property"),
	}

	if v := q.Get("result"); v != "" {
		result, ok := node.ParseResult(v)
		if !ok {
			writeBadRequest(w, "result must be accepted, rejected or unhandled")
			return
		}
		filter.Result = &result
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	list, err := s.inputs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list inputs", "error", err)
		writeInternalError(w, "failed to list inputs")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleInputSummary returns the journal record count per result.
func (s *Server) handleInputSummary(w http.ResponseWriter, r *http.Request) {
	if s.inputs == nil {
		writeUnavailable(w, "input journal not configured")
		return
	}

	counts, err := s.inputs.CountByResult(r.Context())
	if err != nil {
		s.logger.Error("failed to count inputs", "error", err)
		writeInternalError(w, "failed to count inputs")
		return
	}

	byResult := make(map[string]int, len(counts))
	total := 0
	for result, n := range counts {
		byResult[result.String()] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_result": byResult,
	})
}

// intParam parses an optional non-negative integer query parameter.
// On failure it writes a 400 and returns false.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
