// internal/infra/telegram/handlers.go
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/subscriber"
	idb "github.com/vyalkov-2002/iat-timetable/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// CheckRunner triggers an immediate check cycle. Implemented by the scheduler.
type CheckRunner interface {
	RunOnce(ctx context.Context) error
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	chats subscriber.Registry,
	runner CheckRunner,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	cmdLogger := baseLogger.WithField("handler_group", "commands")

	b.Handle("/start", func(c telebot.Context) error {
		cmdLogger.WithField("command", "/start").WithField("chat_id", c.Chat().ID).Info("Processing /start command")
		return c.Send("Привет! Я присылаю уведомления об изменениях в расписании.\n\n" +
			"/subscribe <группа> — подписаться на изменения расписания группы\n" +
			"/unsubscribe — отписаться от уведомлений\n" +
			"/status — показать текущую подписку")
	})

	b.Handle("/subscribe", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := cmdLogger.WithField("command", "/subscribe").WithField("chat_id", chatID)

		args := c.Args()
		if len(args) != 1 || args[0] == "" {
			return c.Send("Укажите группу: /subscribe <группа>")
		}
		groupID := args[0]

		if err := chats.Subscribe(ctx, chatID, groupID); err != nil {
			logCtx.WithError(err).Error("Failed to subscribe chat")
			return c.Send("Не удалось оформить подписку. Попробуйте позже.")
		}
		logCtx.WithField("group", groupID).Info("Chat subscribed")
		return c.Send(fmt.Sprintf("Вы подписаны на изменения расписания группы %s.", groupID))
	})

	b.Handle("/unsubscribe", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := cmdLogger.WithField("command", "/unsubscribe").WithField("chat_id", chatID)

		if err := chats.Unsubscribe(ctx, chatID); err != nil {
			logCtx.WithError(err).Error("Failed to unsubscribe chat")
			return c.Send("Не удалось отписаться. Попробуйте позже.")
		}
		logCtx.Info("Chat unsubscribed")
		return c.Send("Вы отписаны от уведомлений.")
	})

	b.Handle("/status", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := cmdLogger.WithField("command", "/status").WithField("chat_id", chatID)

		chat, err := chats.Get(ctx, chatID)
		if err != nil {
			if err == idb.ErrChatNotFound {
				return c.Send("Вы не подписаны. Используйте /subscribe <группа>.")
			}
			logCtx.WithError(err).Error("Failed to load chat status")
			return c.Send("Не удалось проверить подписку. Попробуйте позже.")
		}
		if !chat.Subscribed {
			return c.Send("Вы не подписаны. Используйте /subscribe <группа>.")
		}
		return c.Send(fmt.Sprintf("Вы подписаны на группу %s.", chat.GroupID))
	})

	// Admin-only: run the check cycle right now instead of waiting for cron.
	b.Handle("/check", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/check").WithField("sender_id", senderID)

		if adminTelegramID == 0 || senderID != adminTelegramID {
			logCtx.Warn("Unauthorized /check attempt")
			return c.Send("Эта команда доступна только администратору.")
		}

		if err := c.Send("Запускаю проверку расписания..."); err != nil {
			return err
		}
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if err := runner.RunOnce(runCtx); err != nil {
			logCtx.WithError(err).Error("Forced check run finished with failures")
			return c.Send(fmt.Sprintf("Проверка завершилась с ошибками: %v", err))
		}
		logCtx.Info("Forced check run completed")
		return c.Send("Проверка завершена.")
	})
}
