// internal/infra/database/chat_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/subscriber"
)

// Custom errors specific to the chat repository
var ErrChatNotFound = fmt.Errorf("telegram chat not found")

// ChatRepository persists subscriber chats in the 'telegram_chat' table.
// It implements subscriber.Registry for both SQLite and Postgres.
type ChatRepository struct {
	q       Querier
	dialect Dialect
}

func NewChatRepository(q Querier, dialect Dialect) *ChatRepository {
	return &ChatRepository{q: q, dialect: dialect}
}

func (r *ChatRepository) ActiveChatIDs(ctx context.Context, groupID string) ([]int64, error) {
	query := r.dialect.rebind(`SELECT id FROM telegram_chat
               WHERE group_id = ? AND subscribed = TRUE
               ORDER BY id`)
	rows, err := r.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error querying active subscribers: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning subscriber id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber ids: %w", err)
	}
	return ids, nil
}

func (r *ChatRepository) Get(ctx context.Context, chatID int64) (*subscriber.Chat, error) {
	query := r.dialect.rebind(`SELECT id, group_id, subscribed, created_at, updated_at
               FROM telegram_chat WHERE id = ?`)
	chat := &subscriber.Chat{}
	err := r.q.QueryRowContext(ctx, query, chatID).Scan(
		&chat.ID, &chat.GroupID, &chat.Subscribed, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("error getting telegram chat: %w", err)
	}
	return chat, nil
}

func (r *ChatRepository) Subscribe(ctx context.Context, chatID int64, groupID string) error {
	now := time.Now().UTC()
	query := r.dialect.rebind(`INSERT INTO telegram_chat (id, group_id, subscribed, created_at, updated_at)
               VALUES (?, ?, TRUE, ?, ?)
               ON CONFLICT (id) DO UPDATE
               SET group_id = excluded.group_id, subscribed = TRUE, updated_at = excluded.updated_at`)
	if _, err := r.q.ExecContext(ctx, query, chatID, groupID, now, now); err != nil {
		return fmt.Errorf("error subscribing chat %d: %w", chatID, err)
	}
	return nil
}

func (r *ChatRepository) Unsubscribe(ctx context.Context, chatID int64) error {
	// Idempotent: a missing or already-unsubscribed row is not an error.
	query := r.dialect.rebind(`UPDATE telegram_chat
               SET subscribed = FALSE, updated_at = ?
               WHERE id = ? AND subscribed = TRUE`)
	if _, err := r.q.ExecContext(ctx, query, time.Now().UTC(), chatID); err != nil {
		return fmt.Errorf("error unsubscribing chat %d: %w", chatID, err)
	}
	return nil
}
