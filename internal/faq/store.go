package faq

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const uniqueViolation = "23505"

// entryCols is the standard SELECT column list for scanning entries.
const entryCols = `id, question, answer, COALESCE(category, ''), created_at, updated_at`

// Store manages FAQ entries in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates an FAQ Store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, logger: logger}, nil
}

// Create inserts an entry. The question must be unique as stored.
func (s *Store) Create(ctx context.Context, question, answer, category string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx,
		`INSERT INTO faqs (question, answer, category)
		 VALUES ($1, $2, NULLIF($3, ''))
		 RETURNING `+entryCols,
		question, answer, category,
	).Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("question %q: %w", question, ErrDuplicateQuestion)
		}
		return nil, fmt.Errorf("creating faq entry: %w", err)
	}

	s.logger.Debug("created faq entry", "id", e.ID)
	return &e, nil
}

// Entry retrieves an entry by ID.
func (s *Store) Entry(ctx context.Context, id int64) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx,
		`SELECT `+entryCols+` FROM faqs WHERE id = $1`, id,
	).Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("faq %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting faq %d: %w", id, err)
	}
	return &e, nil
}

// Entries lists entries in insertion order, optionally filtered by category.
func (s *Store) Entries(ctx context.Context, category string) ([]Entry, error) {
	query := `SELECT ` + entryCols + ` FROM faqs`
	var args []any
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing faq entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning faq entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Categories lists the distinct non-empty categories in use.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT category FROM faqs
		 WHERE category IS NOT NULL AND category <> ''
		 ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing faq categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Update replaces an entry's question, answer, and category.
func (s *Store) Update(ctx context.Context, id int64, question, answer, category string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx,
		`UPDATE faqs
		 SET question = $2, answer = $3, category = NULLIF($4, ''), updated_at = now()
		 WHERE id = $1
		 RETURNING `+entryCols,
		id, question, answer, category,
	).Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("faq %d: %w", id, ErrNotFound)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("question %q: %w", question, ErrDuplicateQuestion)
		}
		return nil, fmt.Errorf("updating faq %d: %w", id, err)
	}
	return &e, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting faq %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("faq %d: %w", id, ErrNotFound)
	}
	return nil
}

// Match resolves a question against stored entries.
//
// Exact case-insensitive equality wins first; ties break to the lowest ID.
// Otherwise the first entry (by ID) whose question contains the input, or
// is contained by it, matches partially. A miss is a normal
// MatchResult{Matched: false}, not an error.
func (s *Store) Match(ctx context.Context, question string) (MatchResult, error) {
	norm := strings.ToLower(strings.TrimSpace(question))
	if norm == "" {
		return MatchResult{}, nil
	}

	var e Entry
	err := s.db.QueryRow(ctx,
		`SELECT id, answer, COALESCE(category, '')
		 FROM faqs WHERE lower(question) = $1
		 ORDER BY id LIMIT 1`, norm,
	).Scan(&e.ID, &e.Answer, &e.Category)
	if err == nil {
		s.logger.Debug("faq exact match", "faq_id", e.ID)
		return MatchResult{
			Matched:   true,
			Answer:    e.Answer,
			FAQID:     e.ID,
			Category:  e.Category,
			MatchType: MatchExact,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MatchResult{}, fmt.Errorf("exact faq match: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT id, answer, COALESCE(category, '')
		 FROM faqs
		 WHERE position($1 IN lower(question)) > 0
		    OR position(lower(question) IN $1) > 0
		 ORDER BY id LIMIT 1`, norm,
	).Scan(&e.ID, &e.Answer, &e.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return MatchResult{}, nil
	}
	if err != nil {
		return MatchResult{}, fmt.Errorf("partial faq match: %w", err)
	}

	s.logger.Debug("faq partial match", "faq_id", e.ID)
	return MatchResult{
		Matched:   true,
		Answer:    e.Answer,
		FAQID:     e.ID,
		Category:  e.Category,
		MatchType: MatchPartial,
	}, nil
}
