// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
	"github.com/vyalkov-2002/iat-timetable/internal/domain/subscriber"
	domainTelegram "github.com/vyalkov-2002/iat-timetable/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Store hands the pipeline repositories scoped to one transaction. A single
// InTx call wraps one group/week batch, so a mid-batch crash leaves the store
// either pre-batch or post-batch, never in between.
type Store interface {
	InTx(ctx context.Context, fn func(lessons schedule.Repository, chats subscriber.Registry) error) error
}

// ErrNoTimetable is returned by a TimetableSource when no parsed timetable
// exists for a group/week combination.
var ErrNoTimetable = errors.New("no timetable for group/week")

// TimetableSource is the collaborator that supplies the group list and fully
// parsed timetables. Scraping and parsing happen outside this service.
type TimetableSource interface {
	Groups(ctx context.Context) ([]string, error)
	Load(ctx context.Context, groupID string, week schedule.Week) (schedule.Timetable, error)
}

// NotificationService defines the change-detection and notification pipeline.
type NotificationService interface {
	// ProcessGroupWeek runs reconcile → select → notify → checkpoint for one
	// group/week inside a single transaction.
	ProcessGroupWeek(ctx context.Context, groupID string, week schedule.Week, tt schedule.Timetable) error
	// RunWeek processes every group of one week and aggregates failures, so
	// a failed group does not block its siblings.
	RunWeek(ctx context.Context, week schedule.Week, timetables map[string]schedule.Timetable) error
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	store     Store
	transport domainTelegram.Client
	logger    *logrus.Entry
	now       func() time.Time
}

func NewNotificationService(store Store, transport domainTelegram.Client, logger *logrus.Entry) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		store:     store,
		transport: transport,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessGroupWeek reconciles the parsed timetable against the store, sends
// one message per changed day to every active subscriber of the group and
// advances the notification checkpoint.
//
// Delivery failures split by kind: a permanently unreachable recipient is
// unsubscribed and not reported; transient failures are collected and
// returned after the batch transaction commits, so the checkpoint still
// advances (at-least-once delivery: a crash or transient error between send
// and checkpoint causes at most a duplicate, never a missed notification).
func (s *NotificationServiceImpl) ProcessGroupWeek(ctx context.Context, groupID string, week schedule.Week, tt schedule.Timetable) error {
	logCtx := s.logger.WithField("group", groupID).WithField("week", week.ID)
	now := s.now()

	var sendErrs []error
	err := s.store.InTx(ctx, func(lessons schedule.Repository, chats subscriber.Registry) error {
		ids, err := reconcile(ctx, lessons, groupID, week, tt, now)
		if err != nil {
			return err
		}

		days, err := lessons.AffectedDays(ctx, groupID, week.ID)
		if err != nil {
			return err
		}

		if len(days) > 0 {
			sendErrs, err = s.notifyDays(ctx, chats, groupID, week, tt, days, logCtx)
			if err != nil {
				return err
			}
		}

		// Checkpoint only after the fan-out: sends come first, so a crash
		// in between re-sends instead of losing a change.
		return lessons.MarkChecked(ctx, ids, now)
	})
	if err != nil {
		logCtx.WithError(err).Error("Group/week batch rolled back")
		return fmt.Errorf("batch for group %s, week %s: %w", groupID, week.ID, err)
	}
	if len(sendErrs) > 0 {
		return fmt.Errorf("delivery for group %s, week %s: %w", groupID, week.ID, errors.Join(sendErrs...))
	}
	return nil
}

// notifyDays fans one message per affected day out to the group's active
// subscribers. The returned slice holds transient delivery failures; the
// error return is reserved for store failures, which abort the batch.
func (s *NotificationServiceImpl) notifyDays(ctx context.Context, chats subscriber.Registry, groupID string, week schedule.Week, tt schedule.Timetable, days []int, logCtx *logrus.Entry) ([]error, error) {
	recipients, err := chats.ActiveChatIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	logCtx.Infof("Sending %d day notifications to %d subscribers", len(days), len(recipients))

	var sendErrs []error
	dropped := make(map[int64]bool)
	for _, day := range days {
		message := ComposeDayMessage(tt, week, day)
		for _, chatID := range recipients {
			if dropped[chatID] {
				continue
			}
			err := s.transport.SendMessage(chatID, message, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
			if err == nil {
				continue
			}
			if errors.Is(err, domainTelegram.ErrRecipientUnreachable) {
				logCtx.WithField("chat_id", chatID).Info("Recipient unreachable, unsubscribing")
				if err := chats.Unsubscribe(ctx, chatID); err != nil {
					return sendErrs, err
				}
				dropped[chatID] = true
				continue
			}
			logCtx.WithField("chat_id", chatID).WithError(err).Error("Delivery failed")
			sendErrs = append(sendErrs, fmt.Errorf("chat %d, day %d: %w", chatID, day, err))
		}
	}
	return sendErrs, nil
}

// RunWeek runs ProcessGroupWeek for every group in deterministic order.
func (s *NotificationServiceImpl) RunWeek(ctx context.Context, week schedule.Week, timetables map[string]schedule.Timetable) error {
	groups := make([]string, 0, len(timetables))
	for groupID := range timetables {
		groups = append(groups, groupID)
	}
	sort.Strings(groups)

	var failures []error
	for _, groupID := range groups {
		if err := s.ProcessGroupWeek(ctx, groupID, week, timetables[groupID]); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		s.logger.WithField("week", week.ID).Errorf("%d of %d groups failed", len(failures), len(groups))
		return errors.Join(failures...)
	}
	return nil
}
