package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"synthesistalk/internal/models"
	"synthesistalk/internal/redis"
)

// Store persists per-user conversation history in insertion order.
type Store struct {
	db    *sql.DB
	cache *historyCache
}

// NewStore builds a history store. cacheClient may be nil.
func NewStore(db *sql.DB, cacheClient *redis.Client) *Store {
	return &Store{db: db, cache: newHistoryCache(cacheClient)}
}

// Append stores one message for the user and returns it.
func (s *Store) Append(ctx context.Context, userID string, role models.Role, content string) (*models.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if role == "" {
		return nil, errors.New("role is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("history message id: %w", err)
	}
	s.cache.invalidate(ctx, userID)
	return &models.Message{ID: id, UserID: userID, Role: role, Content: content, CreatedAt: now}, nil
}

// Read returns the full history of the user, oldest first. Unknown users have
// an empty history.
func (s *Store) Read(ctx context.Context, userID string) ([]models.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	if cached, ok := s.cache.load(ctx, userID); ok {
		return cached, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at FROM history_messages WHERE user_id = ? ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache.store(ctx, userID, messages)
	return messages, nil
}

// Clear removes every message of the user.
func (s *Store) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user_id is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history_messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.cache.invalidate(ctx, userID)
	return nil
}
