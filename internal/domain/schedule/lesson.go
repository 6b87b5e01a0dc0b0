package schedule

import (
	"context"
	"database/sql"
	"time"
)

// Record is one persisted lesson slot of a group's week.
// Corresponds to a row of the 'lesson' table.
type Record struct {
	ID            int64
	GroupID       string
	WeekID        string
	DayNum        int
	LessonNum     int
	Classroom     string
	Name          string
	CreatedAt     time.Time
	LastUpdated   time.Time
	LastChecked   time.Time
	ObsoleteSince sql.NullTime // set when the slot disappeared from a re-scrape
}

// Pending reports whether the record has a change that was not yet announced.
func (r *Record) Pending() bool {
	return !r.ObsoleteSince.Valid && r.LastChecked.Before(r.LastUpdated)
}

// Repository defines the operations for persisting and querying lesson records.
// Implementations never delete rows; obsolete lessons are kept for history.
type Repository interface {
	// ListByGroupWeek returns every record of the group's week, obsolete
	// rows included.
	ListByGroupWeek(ctx context.Context, groupID, weekID string) ([]*Record, error)

	// Insert stores a new record and assigns its surrogate id.
	Insert(ctx context.Context, rec *Record) error

	// UpdateContent replaces the record's classroom and name, bumps
	// last_updated and clears obsolete_since. last_checked is left alone so
	// the record becomes pending.
	UpdateContent(ctx context.Context, id int64, classroom, name string, at time.Time) error

	// MarkObsolete sets obsolete_since unless it is already set.
	MarkObsolete(ctx context.Context, id int64, at time.Time) error

	// AffectedDays returns the distinct day numbers of the group's week with
	// at least one pending, non-obsolete record, in ascending order.
	AffectedDays(ctx context.Context, groupID, weekID string) ([]int, error)

	// MarkChecked advances last_checked for the given record ids.
	MarkChecked(ctx context.Context, ids []int64, at time.Time) error
}
