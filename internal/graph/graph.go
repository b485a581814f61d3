// Package graph stores directed node relationships grouped by workflow and
// matches user questions against node text.
//
// A workflow exclusively owns its nodes and edges; deleting a workflow
// cascades. An edge "source -> target" means the target's text is an answer
// (or a further drill-down option) for the source's text.
package graph

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrWorkflowNotFound indicates the referenced workflow does not exist.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNodeNotFound indicates the referenced node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates the referenced edge does not exist.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateNode indicates a node with the same text already exists
	// in the workflow.
	ErrDuplicateNode = errors.New("node already exists in workflow")

	// ErrDuplicateEdge indicates the (workflow, source, target) triple
	// already exists.
	ErrDuplicateEdge = errors.New("edge already exists in workflow")

	// ErrCrossWorkflowEdge indicates the edge endpoints belong to
	// different workflows.
	ErrCrossWorkflowEdge = errors.New("edge endpoints must belong to the same workflow")
)

// Workflow is a named collection of nodes and edges.
type Workflow struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Node is a text concept within a workflow. Text is unique per workflow.
type Node struct {
	ID         int64     `json:"id"`
	WorkflowID int64     `json:"workflow_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Edge is a directed connection between two nodes of the same workflow.
type Edge struct {
	ID           int64     `json:"id"`
	WorkflowID   int64     `json:"workflow_id"`
	SourceNodeID int64     `json:"source_node_id"`
	TargetNodeID int64     `json:"target_node_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TargetNode is one answer option returned by Match. IsSource reports
// whether the node has outgoing edges of its own, so the caller can offer
// it as a further drill-down question.
type TargetNode struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	IsSource bool   `json:"is_source"`
}

// MatchResult is the outcome of matching a question against node text.
type MatchResult struct {
	Matched     bool
	Answers     []string
	TargetNodes []TargetNode
}

// Normalize prepares text for comparison: trim surrounding whitespace and
// lowercase. Both stored node text and incoming questions go through this
// before equality or substring checks.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
