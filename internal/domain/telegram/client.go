package telegram

import (
	"errors"

	"gopkg.in/telebot.v3"
)

// ErrRecipientUnreachable marks a delivery failure that proves the recipient
// is permanently gone: the bot was blocked, the chat id is invalid or the
// account was deleted. The notifier reacts by unsubscribing the chat.
// Transient failures (network errors, timeouts, rate limits) must never be
// wrapped in it.
var ErrRecipientUnreachable = errors.New("recipient permanently unreachable")

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
