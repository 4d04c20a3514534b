package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"synthesistalk/internal/models"
)

// Store keeps research notes per user. Every mutating call returns the
// resulting ordered list so callers can render it directly.
type Store struct {
	db *sql.DB
}

// NewStore builds a notes store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append saves a note at the end of the user's list.
func (s *Store) Append(ctx context.Context, userID, content string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, content, created_at) VALUES (?, ?, ?)`,
		userID, content, time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return s.List(ctx, userID)
}

// List returns the user's notes in insertion order.
func (s *Store) List(ctx context.Context, userID string) ([]string, error) {
	notes, err := s.records(ctx, userID)
	if err != nil {
		return nil, err
	}
	return contents(notes), nil
}

// Delete removes the note at the zero-based index. Out of range indexes
// leave the list untouched.
func (s *Store) Delete(ctx context.Context, userID string, index int) ([]string, error) {
	userID = strings.TrimSpace(userID)
	notes, err := s.records(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(notes) {
		return contents(notes), nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, notes[index].ID, userID); err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	return s.List(ctx, userID)
}

// Clear removes every note of the user.
func (s *Store) Clear(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("clear notes: %w", err)
	}
	return []string{}, nil
}

func (s *Store) records(ctx context.Context, userID string) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM notes WHERE user_id = ? ORDER BY id ASC`,
		strings.TrimSpace(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func contents(notes []models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Content)
	}
	return out
}
