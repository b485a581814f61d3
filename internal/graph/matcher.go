package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// targetQuery returns the targets of a source node in edge-insertion order,
// tagging each with whether it has outgoing edges of its own.
const targetQuery = `
	SELECT n.id, n.text,
	       EXISTS (SELECT 1 FROM edges o WHERE o.source_node_id = n.id)
	FROM edges e
	JOIN nodes n ON n.id = e.target_node_id
	WHERE e.source_node_id = $1
	ORDER BY e.id`

// Match resolves a question against stored node text.
//
// An exact match on a node's normalized text wins; its outgoing targets
// become the answers. Without an exact hit, every node whose normalized
// text is a substring of the question (or vice versa) contributes its
// targets, deduplicated by node ID in first-seen order.
//
// workflowID scopes the search to one workflow; nil searches all workflows.
// A miss is a normal MatchResult{Matched: false}, not an error.
func (s *Store) Match(ctx context.Context, question string, workflowID *int64) (MatchResult, error) {
	norm := Normalize(question)
	if norm == "" {
		return MatchResult{}, nil
	}

	// Exact match first. Ties across workflows go to the earliest node.
	sourceID, err := s.exactSourceNode(ctx, norm, workflowID)
	if err != nil {
		return MatchResult{}, err
	}
	if sourceID != 0 {
		targets, err := s.targetNodes(ctx, sourceID)
		if err != nil {
			return MatchResult{}, err
		}
		if len(targets) > 0 {
			s.logger.Debug("graph exact match",
				"source_node_id", sourceID, "targets", len(targets))
			return resultFromTargets(targets), nil
		}
		// An exact node with no outgoing edges answers nothing; fall
		// through to partial matching.
	}

	sourceIDs, err := s.partialSourceNodes(ctx, norm, workflowID)
	if err != nil {
		return MatchResult{}, err
	}

	seen := make(map[int64]bool)
	var targets []TargetNode
	for _, id := range sourceIDs {
		ts, err := s.targetNodes(ctx, id)
		if err != nil {
			return MatchResult{}, err
		}
		for _, t := range ts {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			targets = append(targets, t)
		}
	}

	if len(targets) == 0 {
		return MatchResult{}, nil
	}

	s.logger.Debug("graph partial match",
		"sources", len(sourceIDs), "targets", len(targets))
	return resultFromTargets(targets), nil
}

// exactSourceNode finds the node whose normalized text equals norm.
// Returns 0 when no node matches.
func (s *Store) exactSourceNode(ctx context.Context, norm string, workflowID *int64) (int64, error) {
	query := `SELECT id FROM nodes WHERE lower(btrim(text)) = $1`
	args := []any{norm}
	if workflowID != nil {
		query += ` AND workflow_id = $2`
		args = append(args, *workflowID)
	}
	query += ` ORDER BY id LIMIT 1`

	var id int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("exact node match: %w", err)
	}
	return id, nil
}

// partialSourceNodes finds nodes whose normalized text is a substring of
// norm or contains norm, in insertion order.
func (s *Store) partialSourceNodes(ctx context.Context, norm string, workflowID *int64) ([]int64, error) {
	query := `SELECT id FROM nodes
		WHERE (position(lower(btrim(text)) IN $1) > 0
		    OR position($1 IN lower(btrim(text))) > 0)`
	args := []any{norm}
	if workflowID != nil {
		query += ` AND workflow_id = $2`
		args = append(args, *workflowID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("partial node match: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning node id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// targetNodes follows the outgoing edges of a source node.
func (s *Store) targetNodes(ctx context.Context, sourceID int64) ([]TargetNode, error) {
	rows, err := s.db.Query(ctx, targetQuery, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading target nodes: %w", err)
	}
	defer rows.Close()

	var targets []TargetNode
	for rows.Next() {
		var t TargetNode
		if err := rows.Scan(&t.ID, &t.Text, &t.IsSource); err != nil {
			return nil, fmt.Errorf("scanning target node: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func resultFromTargets(targets []TargetNode) MatchResult {
	answers := make([]string, len(targets))
	for i, t := range targets {
		answers[i] = t.Text
	}
	return MatchResult{Matched: true, Answers: answers, TargetNodes: targets}
}
