package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"viajeia-backend/conn"
)

// SQLStore persists sessions in conversation_sessions and conversation_messages.
// Queries stick to SQL accepted by both MySQL and SQLite.
type SQLStore struct {
	db          *sql.DB
	maxMessages int
	// adoptSQL inserts a session row unless it already exists.
	adoptSQL string
}

func NewSQLStore(db *sql.DB, dialect conn.Dialect, maxMessages int) *SQLStore {
	verb := "INSERT OR IGNORE"
	if dialect == conn.MySQL {
		verb = "INSERT IGNORE"
	}
	return &SQLStore{
		db:          db,
		maxMessages: maxMessages,
		adoptSQL:    verb + ` INTO conversation_sessions (id, created_at) VALUES (?, ?)`,
	}
}

func (s *SQLStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO conversation_sessions (id, created_at) VALUES (?, ?)`, id, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *SQLStore) SessionExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM conversation_sessions WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) ensure(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.adoptSQL, id, time.Now().UTC())
	return err
}

func (s *SQLStore) AddMessage(ctx context.Context, id, role, content string) error {
	if err := s.ensure(ctx, id); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		id, role, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if s.maxMessages <= 0 {
		return nil
	}
	// Keep only the newest maxMessages rows.
	var cutoff int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversation_messages WHERE session_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?`,
		id, s.maxMessages-1).Scan(&cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE session_id = ? AND id < ?`, id, cutoff); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (s *SQLStore) Messages(ctx context.Context, id string, limit int) ([]Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT role, content, created_at FROM conversation_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`, id, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT role, content, created_at FROM conversation_messages WHERE session_id = ? ORDER BY id DESC`, id)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLStore) ClearMessages(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE session_id = ?`, id)
	return err
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) SetCurrentDestination(ctx context.Context, id, destination string) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE conversation_sessions SET current_destination = ? WHERE id = ?`, destination, id)
	return err
}

func (s *SQLStore) CurrentDestination(ctx context.Context, id string) (string, error) {
	var dest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT current_destination FROM conversation_sessions WHERE id = ?`, id).Scan(&dest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return dest.String, err
}

func (s *SQLStore) SetPending(ctx context.Context, id string, p Pending) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation_sessions SET pending_detected = ?, pending_current = ?, pending_question = ?, pending_created_at = ? WHERE id = ?`,
		p.DetectedDestination, p.CurrentDestination, p.OriginalQuestion, p.CreatedAt, id)
	return err
}

func (s *SQLStore) Pending(ctx context.Context, id string) (*Pending, error) {
	var (
		detected, current, question sql.NullString
		created                     sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT pending_detected, pending_current, pending_question, pending_created_at FROM conversation_sessions WHERE id = ?`,
		id).Scan(&detected, &current, &question, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !detected.Valid {
		return nil, nil
	}
	return &Pending{
		DetectedDestination: detected.String,
		CurrentDestination:  current.String,
		OriginalQuestion:    question.String,
		CreatedAt:           created.Time,
	}, nil
}

func (s *SQLStore) ClearPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation_sessions SET pending_detected = NULL, pending_current = NULL, pending_question = NULL, pending_created_at = NULL WHERE id = ?`, id)
	return err
}

func (s *SQLStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversation_sessions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
