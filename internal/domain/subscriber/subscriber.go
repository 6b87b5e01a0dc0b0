package subscriber

import (
	"context"
	"time"
)

// Chat is a Telegram chat following one group's timetable.
// Corresponds to a row of the 'telegram_chat' table.
type Chat struct {
	ID         int64 // Telegram chat id, also the primary key
	GroupID    string
	Subscribed bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Registry defines the operations on the persisted set of subscribers.
// Rows are never deleted; unsubscribing only flips the flag, so the history
// of churn is preserved.
type Registry interface {
	// ActiveChatIDs returns the chat ids subscribed to the group.
	ActiveChatIDs(ctx context.Context, groupID string) ([]int64, error)

	// Get returns the chat row, or database.ErrChatNotFound.
	Get(ctx context.Context, chatID int64) (*Chat, error)

	// Subscribe creates the chat row or re-points an existing one at the
	// group, setting subscribed = true. A chat follows at most one group.
	Subscribe(ctx context.Context, chatID int64, groupID string) error

	// Unsubscribe sets subscribed = false. Idempotent: unsubscribing an
	// unknown or already-unsubscribed chat is a no-op.
	Unsubscribe(ctx context.Context, chatID int64) error
}
