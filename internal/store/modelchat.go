package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// ChatStore persists model conversation history.
type ChatStore struct {
	db *pgxpool.Pool
}

// NewChatStore creates a model chat repository.
func NewChatStore(db *pgxpool.Pool) *ChatStore {
	return &ChatStore{db: db}
}

const chatColumns = `id, account_id, role, content, reasoning, decisions, trigger_tag, created_at`

func scanChat(row pgx.Row) (model.ModelChatMessage, error) {
	var m model.ModelChatMessage
	err := row.Scan(&m.ID, &m.AccountID, &m.Role, &m.Content, &m.Reasoning,
		&m.Decisions, &m.TriggerTag, &m.CreatedAt)
	return m, err
}

// Insert records one chat message.
func (s *ChatStore) Insert(ctx context.Context, m model.ModelChatMessage) (model.ModelChatMessage, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO model_chat_messages (id, account_id, role, content, reasoning,
			decisions, trigger_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.AccountID, m.Role, m.Content, m.Reasoning, m.Decisions, m.TriggerTag, m.CreatedAt)
	if err != nil {
		return model.ModelChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return m, nil
}

// Feed returns chat messages newest first. accountID filters when
// non-nil; before paginates by creation time.
func (s *ChatStore) Feed(ctx context.Context, accountID *uuid.UUID, before *time.Time, limit int) ([]model.ModelChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cutoff := time.Now().UTC()
	if before != nil {
		cutoff = *before
	}

	var (
		rows pgx.Rows
		err  error
	)
	if accountID != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+chatColumns+` FROM model_chat_messages
			WHERE account_id = $1 AND created_at < $2
			ORDER BY created_at DESC LIMIT $3`, *accountID, cutoff, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+chatColumns+` FROM model_chat_messages
			WHERE created_at < $1
			ORDER BY created_at DESC LIMIT $2`, cutoff, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query chat feed: %w", err)
	}
	defer rows.Close()

	var out []model.ModelChatMessage
	for rows.Next() {
		m, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
