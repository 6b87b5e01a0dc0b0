package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
	domainTelegram "github.com/vyalkov-2002/iat-timetable/internal/domain/telegram"
	idb "github.com/vyalkov-2002/iat-timetable/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	chatID int64
	text   string
}

// fakeTransport records deliveries and fails programmatically per recipient.
type fakeTransport struct {
	sent []sentMessage
	fail map[int64]error
}

func (f *fakeTransport) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) chatIDs() []int64 {
	ids := make([]int64, 0, len(f.sent))
	for _, m := range f.sent {
		ids = append(ids, m.chatID)
	}
	return ids
}

type serviceFixture struct {
	svc       *NotificationServiceImpl
	db        *idb.DB
	transport *fakeTransport
	clock     *time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := idb.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	l := logrus.New()
	l.SetOutput(io.Discard)

	transport := &fakeTransport{fail: make(map[int64]error)}
	svc := NewNotificationService(db, transport, l.WithField("component", "test"))

	clock := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	return &serviceFixture{svc: svc, db: db, transport: transport, clock: &clock}
}

func (f *serviceFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func day0Timetable(classroom, name string) schedule.Timetable {
	var tt schedule.Timetable
	tt[0] = schedule.Day{1: {Classroom: classroom, Name: name}}
	return tt
}

func TestProcessGroupWeek_EndToEnd(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.db.Chats().Subscribe(ctx, 111, "G1"))
	require.NoError(t, f.db.Chats().Subscribe(ctx, 222, "G1"))

	// First scrape: one new lesson on Monday, both subscribers notified.
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	require.Len(t, f.transport.sent, 2)
	assert.ElementsMatch(t, []int64{111, 222}, f.transport.chatIDs())
	for _, m := range f.transport.sent {
		assert.Contains(t, m.text, "Math")
		assert.Contains(t, m.text, "101")
	}

	// Identical re-scrape: nothing pending, nothing sent.
	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	assert.Len(t, f.transport.sent, 2)

	// Classroom change: announced again with the new content.
	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("205", "Math")))
	require.Len(t, f.transport.sent, 4)
	for _, m := range f.transport.sent[2:] {
		assert.Contains(t, m.text, "205")
	}
}

func TestProcessGroupWeek_ReconcileIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	before, err := f.db.Lessons().ListByGroupWeek(ctx, "G1", week.ID)
	require.NoError(t, err)
	require.Len(t, before, 1)

	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	after, err := f.db.Lessons().ListByGroupWeek(ctx, "G1", week.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)

	assert.Equal(t, before[0].ID, after[0].ID)
	assert.True(t, after[0].LastUpdated.Equal(before[0].LastUpdated),
		"identical content must not bump last_updated")
	assert.False(t, after[0].Pending())
}

func TestProcessGroupWeek_PermanentFailureUnsubscribes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.db.Chats().Subscribe(ctx, 111, "G1"))
	require.NoError(t, f.db.Chats().Subscribe(ctx, 222, "G1"))
	f.transport.fail[222] = fmt.Errorf("telegram: forbidden: %w", domainTelegram.ErrRecipientUnreachable)

	// Not a batch failure, and the healthy recipient still gets its message.
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	assert.Equal(t, []int64{111}, f.transport.chatIDs())

	active, err := f.db.Chats().ActiveChatIDs(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, []int64{111}, active)
}

func TestProcessGroupWeek_TransientFailureSurfacedAfterCheckpoint(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.db.Chats().Subscribe(ctx, 111, "G1"))
	require.NoError(t, f.db.Chats().Subscribe(ctx, 222, "G1"))
	f.transport.fail[222] = errors.New("telegram: request timeout")

	err := f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math"))
	require.Error(t, err)
	// Fan-out is best effort: the other recipient was still served.
	assert.Equal(t, []int64{111}, f.transport.chatIDs())

	// The registry is untouched by transient failures.
	active, err := f.db.Chats().ActiveChatIDs(ctx, "G1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{111, 222}, active)

	// The checkpoint advanced anyway: the same content is never re-flagged.
	delete(f.transport.fail, 222)
	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	assert.Len(t, f.transport.sent, 1)
}

func TestProcessGroupWeek_ObsoleteLessonsStaySilent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.db.Chats().Subscribe(ctx, 111, "G1"))

	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	require.Len(t, f.transport.sent, 1)

	// The slot disappears: marked obsolete, nothing announced.
	f.advance(time.Hour)
	var empty schedule.Timetable
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, empty))
	assert.Len(t, f.transport.sent, 1)

	records, err := f.db.Lessons().ListByGroupWeek(ctx, "G1", week.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].ObsoleteSince.Valid)

	// Nothing pending on later runs either.
	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, empty))
	assert.Len(t, f.transport.sent, 1)

	// Reappearance reuses the record, clears obsolescence and re-announces.
	f.advance(time.Hour)
	require.NoError(t, f.svc.ProcessGroupWeek(ctx, "G1", week, day0Timetable("101", "Math")))
	assert.Len(t, f.transport.sent, 2)

	records, err = f.db.Lessons().ListByGroupWeek(ctx, "G1", week.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].ObsoleteSince.Valid)
}

func TestProcessGroupWeek_RejectsNegativeSlot(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var tt schedule.Timetable
	tt[0] = schedule.Day{-1: {Name: "Broken"}}

	err := f.svc.ProcessGroupWeek(ctx, "G1", testWeek(), tt)
	require.Error(t, err)

	// The batch rolled back: no partial reconciliation visible.
	records, err := f.db.Lessons().ListByGroupWeek(ctx, "G1", testWeek().ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunWeek_FailedGroupDoesNotBlockSiblings(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	week := testWeek()

	require.NoError(t, f.db.Chats().Subscribe(ctx, 111, "G1"))
	require.NoError(t, f.db.Chats().Subscribe(ctx, 333, "G2"))
	f.transport.fail[111] = errors.New("telegram: request timeout")

	err := f.svc.RunWeek(ctx, week, map[string]schedule.Timetable{
		"G1": day0Timetable("101", "Math"),
		"G2": day0Timetable("205", "Physics"),
	})
	require.Error(t, err)
	assert.Equal(t, []int64{333}, f.transport.chatIDs())
}
