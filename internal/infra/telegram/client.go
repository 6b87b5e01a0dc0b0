// internal/infra/telegram/client.go
package telegram

import (
	"errors"
	"fmt"

	domainTelegram "github.com/vyalkov-2002/iat-timetable/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// permanentSendErrors are Telegram responses proving the chat cannot be
// reached anymore, as opposed to transient transport conditions.
var permanentSendErrors = []error{
	telebot.ErrBlockedByUser,
	telebot.ErrUserIsDeactivated,
	telebot.ErrChatNotFound,
	telebot.ErrNotStartedByUser,
	telebot.ErrKickedFromGroup,
}

// SendMessage sends a text message to the specified recipient. Failures that
// prove the recipient is gone for good are wrapped in
// domainTelegram.ErrRecipientUnreachable; anything else is returned as is.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(recipientChatID), text, options)
	if err == nil {
		return nil
	}
	for _, perm := range permanentSendErrors {
		if errors.Is(err, perm) {
			return fmt.Errorf("%v: %w", err, domainTelegram.ErrRecipientUnreachable)
		}
	}
	return err
}
