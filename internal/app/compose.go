// internal/app/compose.go
package app

import (
	"fmt"
	"strings"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
)

// Weekday names in Russian, Monday first, matching the day numbering.
var weekdayNames = [7]string{
	"понедельник",
	"вторник",
	"среда",
	"четверг",
	"пятница",
	"суббота",
	"воскресенье",
}

// slotMarker renders the visible number of a lesson line. Telegram keycap
// emoji exist for single digits only; larger numbers fall back to plain text.
func slotMarker(num int) string {
	if num >= 0 && num <= 9 {
		return string(rune('0'+num)) + "\ufe0f\u20e3"
	}
	return fmt.Sprintf("%d.", num)
}

// ComposeDayMessage builds the HTML notification about one day's schedule.
// Slots run contiguously from 0 to the day's maximum; a gap becomes a dash
// placeholder with no classroom, so the numbering stays recognizable. Slot n
// carries the n+1 digit marker: the visible numbering is 1-based.
func ComposeDayMessage(tt schedule.Timetable, week schedule.Week, dayNum int) string {
	date := week.DayDate(dayNum)

	var b strings.Builder
	fmt.Fprintf(&b, "Новое расписание на <b>%s (%s):</b>\n",
		date.Format("02.01.2006"), weekdayNames[dayNum])

	for num := 0; num <= tt.MaxSlot(dayNum); num++ {
		entry, ok := tt[dayNum][num]
		if !ok {
			entry = schedule.Entry{Name: "—"}
		}
		b.WriteString("\n" + slotMarker(num+1) + " " + entry.Name)
		if entry.Classroom != "" {
			b.WriteString(" — <i>" + entry.Classroom + "</i>")
		}
	}
	return b.String()
}
