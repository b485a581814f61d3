package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askpath/askpath/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// Store manages workflows, nodes, and edges in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a graph Store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, logger: logger}, nil
}

// CreateWorkflow inserts a workflow and returns it with its assigned ID.
func (s *Store) CreateWorkflow(ctx context.Context, name, description string) (*Workflow, error) {
	var w Workflow
	err := s.db.QueryRow(ctx,
		`INSERT INTO workflows (name, description)
		 VALUES ($1, $2)
		 RETURNING id, name, COALESCE(description, ''), created_at, updated_at`,
		name, description,
	).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating workflow: %w", err)
	}

	s.logger.Debug("created workflow", "id", w.ID, "name", w.Name)
	return &w, nil
}

// Workflow retrieves a workflow by ID.
func (s *Store) Workflow(ctx context.Context, id int64) (*Workflow, error) {
	var w Workflow
	err := s.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, ''), created_at, updated_at
		 FROM workflows WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %d: %w", id, ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting workflow %d: %w", id, err)
	}
	return &w, nil
}

// Workflows lists all workflows, newest first.
func (s *Store) Workflows(ctx context.Context) ([]Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, COALESCE(description, ''), created_at, updated_at
		 FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		var w Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// DeleteWorkflow removes a workflow; its nodes and edges cascade.
func (s *Store) DeleteWorkflow(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting workflow %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %d: %w", id, ErrWorkflowNotFound)
	}

	s.logger.Debug("deleted workflow", "id", id)
	return nil
}

// CreateNode inserts a node. Node text is unique within its workflow.
func (s *Store) CreateNode(ctx context.Context, workflowID int64, text string) (*Node, error) {
	if _, err := s.Workflow(ctx, workflowID); err != nil {
		return nil, err
	}

	var n Node
	err := s.db.QueryRow(ctx,
		`INSERT INTO nodes (workflow_id, text)
		 VALUES ($1, $2)
		 RETURNING id, workflow_id, text, created_at, updated_at`,
		workflowID, text,
	).Scan(&n.ID, &n.WorkflowID, &n.Text, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("node %q in workflow %d: %w", text, workflowID, ErrDuplicateNode)
		}
		return nil, fmt.Errorf("creating node: %w", err)
	}

	s.logger.Debug("created node", "id", n.ID, "workflow_id", workflowID)
	return &n, nil
}

// Nodes lists the nodes of a workflow in insertion order.
func (s *Store) Nodes(ctx context.Context, workflowID int64) ([]Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, text, created_at, updated_at
		 FROM nodes WHERE workflow_id = $1 ORDER BY id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.WorkflowID, &n.Text, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// DeleteNode removes a node; edges touching it cascade.
func (s *Store) DeleteNode(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting node %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	return nil
}

// CreateEdge inserts a directed edge. Both endpoints must exist and belong
// to the given workflow; the triple is unique per workflow.
func (s *Store) CreateEdge(ctx context.Context, workflowID, sourceNodeID, targetNodeID int64) (*Edge, error) {
	for _, nodeID := range []int64{sourceNodeID, targetNodeID} {
		var wfID int64
		err := s.db.QueryRow(ctx,
			`SELECT workflow_id FROM nodes WHERE id = $1`, nodeID).Scan(&wfID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("node %d: %w", nodeID, ErrNodeNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("checking node %d: %w", nodeID, err)
		}
		if wfID != workflowID {
			return nil, fmt.Errorf("node %d belongs to workflow %d: %w", nodeID, wfID, ErrCrossWorkflowEdge)
		}
	}

	var e Edge
	err := s.db.QueryRow(ctx,
		`INSERT INTO edges (workflow_id, source_node_id, target_node_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, workflow_id, source_node_id, target_node_id, created_at`,
		workflowID, sourceNodeID, targetNodeID,
	).Scan(&e.ID, &e.WorkflowID, &e.SourceNodeID, &e.TargetNodeID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("edge %d->%d in workflow %d: %w",
				sourceNodeID, targetNodeID, workflowID, ErrDuplicateEdge)
		}
		return nil, fmt.Errorf("creating edge: %w", err)
	}

	s.logger.Debug("created edge",
		"id", e.ID, "source", sourceNodeID, "target", targetNodeID)
	return &e, nil
}

// Edges lists the edges of a workflow in insertion order.
func (s *Store) Edges(ctx context.Context, workflowID int64) ([]Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, source_node_id, target_node_id, created_at
		 FROM edges WHERE workflow_id = $1 ORDER BY id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.SourceNodeID, &e.TargetNodeID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DeleteEdge removes a single edge.
func (s *Store) DeleteEdge(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting edge %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("edge %d: %w", id, ErrEdgeNotFound)
	}
	return nil
}
