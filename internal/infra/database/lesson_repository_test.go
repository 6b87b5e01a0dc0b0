package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
	"github.com/vyalkov-2002/iat-timetable/internal/domain/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(group, week string, day, slot int, t0 time.Time) *schedule.Record {
	return &schedule.Record{
		GroupID:     group,
		WeekID:      week,
		DayNum:      day,
		LessonNum:   slot,
		Classroom:   "101",
		Name:        "Математика",
		CreatedAt:   t0,
		LastUpdated: t0,
		// LastChecked stays zero: the record starts out pending.
	}
}

func TestLessonLifecycle(t *testing.T) {
	db := openTestDB(t)
	lessons := db.Lessons()
	ctx := context.Background()

	t0 := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	rec := newRecord("G1", "2025-W10", 0, 1, t0)
	require.NoError(t, lessons.Insert(ctx, rec))
	require.NotZero(t, rec.ID, "insert assigns the surrogate id")

	days, err := lessons.AffectedDays(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, days, "a fresh record is pending")

	// Checkpoint: no longer pending.
	require.NoError(t, lessons.MarkChecked(ctx, []int64{rec.ID}, t0))
	days, err = lessons.AffectedDays(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Empty(t, days)

	// Content change makes it pending again.
	t1 := t0.Add(time.Hour)
	require.NoError(t, lessons.UpdateContent(ctx, rec.ID, "205", "Математика", t1))
	days, err = lessons.AffectedDays(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, days)

	// Obsolete records never show up as affected.
	t2 := t1.Add(time.Hour)
	require.NoError(t, lessons.MarkObsolete(ctx, rec.ID, t2))
	days, err = lessons.AffectedDays(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Empty(t, days)

	records, err := lessons.ListByGroupWeek(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "205", got.Classroom)
	assert.True(t, got.LastUpdated.Equal(t1))
	require.True(t, got.ObsoleteSince.Valid)
	assert.True(t, got.ObsoleteSince.Time.Equal(t2))

	// Re-marking keeps the original disappearance time.
	require.NoError(t, lessons.MarkObsolete(ctx, rec.ID, t2.Add(time.Hour)))
	records, err = lessons.ListByGroupWeek(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.True(t, records[0].ObsoleteSince.Time.Equal(t2))
}

func TestUpdateContentClearsObsolescence(t *testing.T) {
	db := openTestDB(t)
	lessons := db.Lessons()
	ctx := context.Background()

	t0 := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	rec := newRecord("G1", "2025-W10", 2, 3, t0)
	require.NoError(t, lessons.Insert(ctx, rec))
	require.NoError(t, lessons.MarkObsolete(ctx, rec.ID, t0.Add(time.Hour)))

	require.NoError(t, lessons.UpdateContent(ctx, rec.ID, "101", "Математика", t0.Add(2*time.Hour)))

	records, err := lessons.ListByGroupWeek(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].ObsoleteSince.Valid)
	assert.True(t, records[0].Pending())
}

func TestAffectedDaysAreDistinctAndScoped(t *testing.T) {
	db := openTestDB(t)
	lessons := db.Lessons()
	ctx := context.Background()

	t0 := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	require.NoError(t, lessons.Insert(ctx, newRecord("G1", "2025-W10", 4, 1, t0)))
	require.NoError(t, lessons.Insert(ctx, newRecord("G1", "2025-W10", 4, 2, t0)))
	require.NoError(t, lessons.Insert(ctx, newRecord("G1", "2025-W10", 1, 1, t0)))
	// Other group and other week must not leak in.
	require.NoError(t, lessons.Insert(ctx, newRecord("G2", "2025-W10", 5, 1, t0)))
	require.NoError(t, lessons.Insert(ctx, newRecord("G1", "2025-W11", 6, 1, t0)))

	days, err := lessons.AffectedDays(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, days)
}

func TestUpdateContentMissingRecord(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Lessons().UpdateContent(ctx, 12345, "101", "Математика", time.Now().UTC())
	assert.True(t, errors.Is(err, ErrLessonNotFound))
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	t0 := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	err := db.InTx(ctx, func(lessons schedule.Repository, _ subscriber.Registry) error {
		if err := lessons.Insert(ctx, newRecord("G1", "2025-W10", 0, 1, t0)); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	records, err := db.Lessons().ListByGroupWeek(ctx, "G1", "2025-W10")
	require.NoError(t, err)
	assert.Empty(t, records, "insert must not survive the rollback")
}
