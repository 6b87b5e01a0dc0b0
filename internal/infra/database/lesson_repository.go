// internal/infra/database/lesson_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
)

// Custom errors specific to the lesson repository
var ErrLessonNotFound = fmt.Errorf("lesson record not found")

// LessonRepository persists lesson records in the 'lesson' table.
// It implements schedule.Repository for both SQLite and Postgres.
type LessonRepository struct {
	q       Querier
	dialect Dialect
}

func NewLessonRepository(q Querier, dialect Dialect) *LessonRepository {
	return &LessonRepository{q: q, dialect: dialect}
}

func (r *LessonRepository) ListByGroupWeek(ctx context.Context, groupID, weekID string) ([]*schedule.Record, error) {
	query := r.dialect.rebind(`SELECT id, group_id, week_id, day_num, lesson_num, classroom, name,
                      created_at, last_updated, last_checked, obsolete_since
               FROM lesson
               WHERE group_id = ? AND week_id = ?
               ORDER BY day_num, lesson_num`)
	rows, err := r.q.QueryContext(ctx, query, groupID, weekID)
	if err != nil {
		return nil, fmt.Errorf("error querying lessons by group and week: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*schedule.Record, error) {
	records := make([]*schedule.Record, 0)
	for rows.Next() {
		rec := schedule.Record{}
		if err := rows.Scan(
			&rec.ID, &rec.GroupID, &rec.WeekID, &rec.DayNum, &rec.LessonNum,
			&rec.Classroom, &rec.Name,
			&rec.CreatedAt, &rec.LastUpdated, &rec.LastChecked, &rec.ObsoleteSince,
		); err != nil {
			return nil, fmt.Errorf("error scanning lesson row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson rows: %w", err)
	}
	return records, nil
}

func (r *LessonRepository) Insert(ctx context.Context, rec *schedule.Record) error {
	query := r.dialect.rebind(`INSERT INTO lesson (group_id, week_id, day_num, lesson_num, classroom, name,
                                   created_at, last_updated, last_checked)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
               RETURNING id`)
	err := r.q.QueryRowContext(ctx, query,
		rec.GroupID, rec.WeekID, rec.DayNum, rec.LessonNum, rec.Classroom, rec.Name,
		rec.CreatedAt, rec.LastUpdated, rec.LastChecked,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("error inserting lesson record: %w", err)
	}
	return nil
}

func (r *LessonRepository) UpdateContent(ctx context.Context, id int64, classroom, name string, at time.Time) error {
	query := r.dialect.rebind(`UPDATE lesson
               SET classroom = ?, name = ?, last_updated = ?, obsolete_since = NULL
               WHERE id = ?`)
	res, err := r.q.ExecContext(ctx, query, classroom, name, at, id)
	if err != nil {
		return fmt.Errorf("error updating lesson content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking lesson update result: %w", err)
	}
	if affected == 0 {
		return ErrLessonNotFound
	}
	return nil
}

func (r *LessonRepository) MarkObsolete(ctx context.Context, id int64, at time.Time) error {
	// No-op when obsolete_since is already set: the original disappearance
	// time is what the history keeps.
	query := r.dialect.rebind(`UPDATE lesson
               SET obsolete_since = ?
               WHERE id = ? AND obsolete_since IS NULL`)
	if _, err := r.q.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("error marking lesson obsolete: %w", err)
	}
	return nil
}

func (r *LessonRepository) AffectedDays(ctx context.Context, groupID, weekID string) ([]int, error) {
	query := r.dialect.rebind(`SELECT DISTINCT day_num
               FROM lesson
               WHERE group_id = ? AND week_id = ?
                 AND last_checked < last_updated
                 AND obsolete_since IS NULL
               ORDER BY day_num`)
	rows, err := r.q.QueryContext(ctx, query, groupID, weekID)
	if err != nil {
		return nil, fmt.Errorf("error querying affected days: %w", err)
	}
	defer rows.Close()

	days := make([]int, 0)
	for rows.Next() {
		var day int
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("error scanning affected day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating affected days: %w", err)
	}
	return days, nil
}

func (r *LessonRepository) MarkChecked(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	stmt, err := r.q.PrepareContext(ctx, r.dialect.rebind(`UPDATE lesson SET last_checked = ? WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement for checkpoint update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, at, id); err != nil {
			return fmt.Errorf("error advancing checkpoint for lesson %d: %w", id, err)
		}
	}
	return nil
}
