package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-nodes/internal/boot"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// injectTimeout bounds how long a request waits for the loop goroutine.
const injectTimeout = 5 * time.Second

// NodeView is the JSON form of a registered node.
type NodeView struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	SubscribeAll bool     `json:"subscribe_all"`
	Properties   []string `json:"properties"`
	HasFallback  bool     `json:"has_fallback"`
}

// DeviceView describes the device hosting the nodes.
type DeviceView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BaseTopic string `json:"base_topic"`
	Nodes     int    `json:"nodes"`
	MaxNodes  int    `json:"max_nodes"`
	Running   bool   `json:"running"`
	Uptime    int64  `json:"uptime_seconds"`
	Version   string `json:"version"`
}

// SetPropertyRequest is the body of a property update.
type SetPropertyRequest struct {
	Value *string `json:"value"`
}

// SetPropertyResponse reports how the node answered an update.
type SetPropertyResponse struct {
	Node     string      `json:"node"`
	Property string      `json:"property"`
	Value    string      `json:"value"`
	Result   node.Result `json:"result"`
}

func newNodeView(n *node.Node) NodeView {
	return NodeView{
		ID:           n.ID(),
		Type:         n.Type(),
		SubscribeAll: n.IsSubscribedToAll(),
		Properties:   n.Properties(),
		HasFallback:  n.HasFallback(),
	}
}

// handleGetDevice returns the device identity and runner state.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DeviceView{
		ID:        s.device.ID,
		Name:      s.device.Name,
		BaseTopic: s.device.BaseTopic,
		Nodes:     s.registry.Count(),
		MaxNodes:  s.registry.MaxNodes(),
		Running:   s.runner.Running(),
		Uptime:    int64(s.runner.Uptime().Seconds()),
		Version:   s.version,
	})
}

// handleListNodes returns every node in registration order.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	views := make([]NodeView, 0, s.registry.Count())
	s.registry.ForEach(func(n *node.Node) {
		views = append(views, newNodeView(n))
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": views,
		"count": len(views),
	})
}

// handleGetNode returns a single node.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, ok := s.registry.FindByID(id)
	if !ok {
		writeNotFound(w, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, newNodeView(n))
}

// handleSetProperty dispatches a property update through the runner.
//
// Accepted answers 200, Rejected 422 and Unhandled 404. The body carries
// the result in every case.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "id")
	property := chi.URLParam(r, "property")

	var req SetPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), injectTimeout)
	defer cancel()

	result, err := s.runner.Inject(ctx, nodeID, property, *req.Value)
	switch {
	case errors.Is(err, node.ErrNodeNotFound):
		writeNotFound(w, "node not found")
		return
	case errors.Is(err, boot.ErrNotStarted), errors.Is(err, context.DeadlineExceeded):
		writeUnavailable(w, "device is not processing updates")
		return
	case err != nil:
		s.logger.Error("property update failed", "node", nodeID, "property", property, "error", err)
		writeInternalError(w, "property update failed")
		return
	}

	status := http.StatusOK
	switch {
	case !result.Handled():
		status = http.StatusNotFound
	case result == node.Rejected:
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, SetPropertyResponse{
		Node:     nodeID,
		Property: property,
		Value:    *req.Value,
		Result:   result,
	})
}
