package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askpath/askpath/internal/log"
)

const sessionCols = "id, session_id, user_id, title, COALESCE(category, ''), total_messages, is_active, created_at, updated_at"

const messageCols = "id, message_id, session_id, user_id, question, COALESCE(answer, ''), COALESCE(source, ''), created_at"

const defaultTitle = "New Conversation"

// Store persists sessions and messages in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore wires a Store over the shared connection pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Create opens a new active session for a user. A blank title gets a
// default; token uniqueness comes from the generator, not a lookup.
func (s *Store) Create(ctx context.Context, userID, title, category string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id must not be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	const q = `
		INSERT INTO chat_sessions (session_id, user_id, title, category)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING ` + sessionCols

	sess, err := scanSession(s.pool.QueryRow(ctx, q, NewSessionToken(), userID, title, category))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session created", "session_id", sess.SessionID, "user_id", userID)
	return sess, nil
}

// Session fetches one active session by its public token.
func (s *Store) Session(ctx context.Context, token string) (*Session, error) {
	const q = `
		SELECT ` + sessionCols + `
		FROM chat_sessions
		WHERE session_id = $1 AND is_active`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Sessions lists a user's active sessions, most recently touched first.
func (s *Store) Sessions(ctx context.Context, userID string) ([]Session, error) {
	const q = `
		SELECT ` + sessionCols + `
		FROM chat_sessions
		WHERE user_id = $1 AND is_active
		ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Messages returns the full history of an active session in
// chronological order.
func (s *Store) Messages(ctx context.Context, token string) ([]Message, error) {
	if _, err := s.Session(ctx, token); err != nil {
		return nil, err
	}

	const q = `
		SELECT ` + messageCols + `
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, token)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// AppendMessage stores one exchange and bumps the session counter in
// the same transaction, holding a row lock on the session so concurrent
// appends serialize and the counter never drifts. Answer and source may
// be empty when the question is logged before it is resolved.
func (s *Store) AppendMessage(ctx context.Context, token, userID, question, answer, source string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSession(ctx, tx, token); err != nil {
		return nil, err
	}

	const insert = `
		INSERT INTO chat_messages (message_id, session_id, user_id, question, answer, source)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING ` + messageCols

	row := tx.QueryRow(ctx, insert, NewMessageToken(), token, userID, question, answer, source)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	const bump = `
		UPDATE chat_sessions
		SET total_messages = total_messages + 1, updated_at = now()
		WHERE session_id = $1`
	if _, err := tx.Exec(ctx, bump, token); err != nil {
		return nil, fmt.Errorf("bump counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return m, nil
}

// CompleteMessage fills in the answer and source of a logged question
// once the pipeline resolves it.
func (s *Store) CompleteMessage(ctx context.Context, messageToken, answer, source string) (*Message, error) {
	const q = `
		UPDATE chat_messages
		SET answer = $2, source = NULLIF($3, '')
		WHERE message_id = $1
		RETURNING ` + messageCols

	m, err := scanMessage(s.pool.QueryRow(ctx, q, messageToken, answer, source))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("complete message: %w", err)
	}
	return m, nil
}

// Update changes a session's title and category, nothing else.
func (s *Store) Update(ctx context.Context, token, title, category string) (*Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	const q = `
		UPDATE chat_sessions
		SET title = $2, category = NULLIF($3, ''), updated_at = now()
		WHERE session_id = $1 AND is_active
		RETURNING ` + sessionCols

	sess, err := scanSession(s.pool.QueryRow(ctx, q, token, title, category))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update session: %w", err)
	}
	return sess, nil
}

// Delete deactivates a session. History stays in place so the session
// can be audited or restored by hand.
func (s *Store) Delete(ctx context.Context, token string) error {
	const q = `
		UPDATE chat_sessions
		SET is_active = FALSE, updated_at = now()
		WHERE session_id = $1 AND is_active`

	tag, err := s.pool.Exec(ctx, q, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Info("session deactivated", "session_id", token)
	return nil
}

// ClearMessages deletes a session's history and resets its counter in
// one transaction, returning how many messages were removed.
func (s *Store) ClearMessages(ctx context.Context, token string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSession(ctx, tx, token); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, token)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}

	const reset = `
		UPDATE chat_sessions
		SET total_messages = 0, updated_at = now()
		WHERE session_id = $1`
	if _, err := tx.Exec(ctx, reset, token); err != nil {
		return 0, fmt.Errorf("reset counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}

	deleted := tag.RowsAffected()
	s.logger.Info("session history cleared", "session_id", token, "deleted", deleted)
	return deleted, nil
}

// VerifyCounter checks the denormalized counter against the true
// message count and returns ErrCounterDrift on mismatch.
func (s *Store) VerifyCounter(ctx context.Context, token string) error {
	const q = `
		SELECT s.total_messages,
		       (SELECT count(*) FROM chat_messages m WHERE m.session_id = s.session_id)
		FROM chat_sessions s
		WHERE s.session_id = $1 AND s.is_active`

	var counter, actual int64
	if err := s.pool.QueryRow(ctx, q, token).Scan(&counter, &actual); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("verify counter: %w", err)
	}
	if counter != actual {
		return fmt.Errorf("%w: session %s records %d, found %d", ErrCounterDrift, token, counter, actual)
	}
	return nil
}

// lockSession takes a row lock on an active session inside tx, mapping
// a missing row to ErrNotFound.
func lockSession(ctx context.Context, tx pgx.Tx, token string) error {
	const q = `
		SELECT id FROM chat_sessions
		WHERE session_id = $1 AND is_active
		FOR UPDATE`

	var id int64
	if err := tx.QueryRow(ctx, q, token).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.SessionID, &sess.UserID, &sess.Title, &sess.Category,
		&sess.TotalMessages, &sess.IsActive, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.MessageID, &m.SessionID, &m.UserID, &m.Question,
		&m.Answer, &m.Source, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
