package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/askpath/askpath/internal/graph"
	"github.com/askpath/askpath/internal/log"
)

// graphStore is what the workflow management endpoints need.
type graphStore interface {
	CreateWorkflow(ctx context.Context, name, description string) (*graph.Workflow, error)
	Workflow(ctx context.Context, id int64) (*graph.Workflow, error)
	Workflows(ctx context.Context) ([]graph.Workflow, error)
	DeleteWorkflow(ctx context.Context, id int64) error
	CreateNode(ctx context.Context, workflowID int64, text string) (*graph.Node, error)
	Nodes(ctx context.Context, workflowID int64) ([]graph.Node, error)
	DeleteNode(ctx context.Context, id int64) error
	CreateEdge(ctx context.Context, workflowID, sourceNodeID, targetNodeID int64) (*graph.Edge, error)
	Edges(ctx context.Context, workflowID int64) ([]graph.Edge, error)
	DeleteEdge(ctx context.Context, id int64) error
}

// GraphHandler serves the workflow, node and edge endpoints.
type GraphHandler struct {
	store  graphStore
	logger log.Logger
}

// NewGraphHandler wires the graph endpoints.
func NewGraphHandler(store graphStore, logger log.Logger) *GraphHandler {
	return &GraphHandler{store: store, logger: logger}
}

type createWorkflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateWorkflow handles POST /api/workflows.
func (h *GraphHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	wf, err := h.store.CreateWorkflow(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeStoreError(w, err, "create workflow")
		return
	}
	WriteData(w, http.StatusCreated, "workflow created", wf)
}

// ListWorkflows handles GET /api/workflows.
func (h *GraphHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := h.store.Workflows(r.Context())
	if err != nil {
		h.writeStoreError(w, err, "list workflows")
		return
	}
	if wfs == nil {
		wfs = []graph.Workflow{}
	}
	WriteData(w, http.StatusOK, "", wfs)
}

// GetWorkflow handles GET /api/workflows/{id}.
func (h *GraphHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	wf, err := h.store.Workflow(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get workflow")
		return
	}
	WriteData(w, http.StatusOK, "", wf)
}

// DeleteWorkflow handles DELETE /api/workflows/{id}; nodes and edges go
// with it.
func (h *GraphHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteWorkflow(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete workflow")
		return
	}
	WriteData(w, http.StatusOK, "workflow deleted", nil)
}

type createNodeRequest struct {
	Text string `json:"text"`
}

// CreateNode handles POST /api/workflows/{id}/nodes.
func (h *GraphHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req createNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	node, err := h.store.CreateNode(r.Context(), id, req.Text)
	if err != nil {
		h.writeStoreError(w, err, "create node")
		return
	}
	WriteData(w, http.StatusCreated, "node created", node)
}

// ListNodes handles GET /api/workflows/{id}/nodes.
func (h *GraphHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	nodes, err := h.store.Nodes(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "list nodes")
		return
	}
	if nodes == nil {
		nodes = []graph.Node{}
	}
	WriteData(w, http.StatusOK, "", nodes)
}

// DeleteNode handles DELETE /api/nodes/{id}.
func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteNode(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete node")
		return
	}
	WriteData(w, http.StatusOK, "node deleted", nil)
}

type createEdgeRequest struct {
	SourceNodeID int64 `json:"source_node_id"`
	TargetNodeID int64 `json:"target_node_id"`
}

// CreateEdge handles POST /api/workflows/{id}/edges.
func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req createEdgeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceNodeID <= 0 || req.TargetNodeID <= 0 {
		WriteError(w, http.StatusBadRequest, "source_node_id and target_node_id are required")
		return
	}

	edge, err := h.store.CreateEdge(r.Context(), id, req.SourceNodeID, req.TargetNodeID)
	if err != nil {
		h.writeStoreError(w, err, "create edge")
		return
	}
	WriteData(w, http.StatusCreated, "edge created", edge)
}

// ListEdges handles GET /api/workflows/{id}/edges.
func (h *GraphHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	edges, err := h.store.Edges(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "list edges")
		return
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	WriteData(w, http.StatusOK, "", edges)
}

// DeleteEdge handles DELETE /api/edges/{id}.
func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEdge(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete edge")
		return
	}
	WriteData(w, http.StatusOK, "edge deleted", nil)
}

func (h *GraphHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *GraphHandler) writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, graph.ErrWorkflowNotFound):
		WriteError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, graph.ErrNodeNotFound):
		WriteError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, graph.ErrEdgeNotFound):
		WriteError(w, http.StatusNotFound, "edge not found")
	case errors.Is(err, graph.ErrDuplicateNode):
		WriteError(w, http.StatusConflict, "a node with this text already exists in the workflow")
	case errors.Is(err, graph.ErrDuplicateEdge):
		WriteError(w, http.StatusConflict, "this edge already exists")
	case errors.Is(err, graph.ErrCrossWorkflowEdge):
		WriteError(w, http.StatusBadRequest, "edge endpoints must belong to the workflow")
	default:
		h.logger.Error(op+" failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
