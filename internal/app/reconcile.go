// internal/app/reconcile.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
)

type slotKey struct {
	day  int
	slot int
}

// reconcile brings the stored lesson records of one group/week in line with
// the freshly parsed timetable: new slots are inserted pending, changed slots
// bump last_updated, vanished slots are marked obsolete and untouched slots
// produce no writes. It returns the ids of every record backing the current
// timetable, for the checkpoint pass.
//
// Must run inside the batch transaction; a second call with the identical
// timetable is a no-op.
func reconcile(ctx context.Context, lessons schedule.Repository, groupID string, week schedule.Week, tt schedule.Timetable, now time.Time) ([]int64, error) {
	existing, err := lessons.ListByGroupWeek(ctx, groupID, week.ID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[slotKey]*schedule.Record, len(existing))
	for _, rec := range existing {
		byKey[slotKey{rec.DayNum, rec.LessonNum}] = rec
	}

	ids := make([]int64, 0, len(existing))
	seen := make(map[slotKey]bool)
	for day := range tt {
		for slot, entry := range tt[day] {
			if slot < 0 {
				return nil, fmt.Errorf("invalid lesson slot %d on day %d of group %s", slot, day, groupID)
			}
			key := slotKey{day, slot}
			seen[key] = true

			rec, ok := byKey[key]
			if !ok {
				rec = &schedule.Record{
					GroupID:     groupID,
					WeekID:      week.ID,
					DayNum:      day,
					LessonNum:   slot,
					Classroom:   entry.Classroom,
					Name:        entry.Name,
					CreatedAt:   now,
					LastUpdated: now,
					// LastChecked stays at the zero time: a brand-new
					// lesson is pending until its first announcement.
				}
				if err := lessons.Insert(ctx, rec); err != nil {
					return nil, err
				}
				ids = append(ids, rec.ID)
				continue
			}

			// A slot that reappears after obsolescence counts as a change
			// even when its content is identical.
			if rec.Classroom != entry.Classroom || rec.Name != entry.Name || rec.ObsoleteSince.Valid {
				if err := lessons.UpdateContent(ctx, rec.ID, entry.Classroom, entry.Name, now); err != nil {
					return nil, err
				}
			}
			ids = append(ids, rec.ID)
		}
	}

	for _, rec := range existing {
		if rec.ObsoleteSince.Valid || seen[slotKey{rec.DayNum, rec.LessonNum}] {
			continue
		}
		if err := lessons.MarkObsolete(ctx, rec.ID, now); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
