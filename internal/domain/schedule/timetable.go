package schedule

// Entry is the content of a single timetable cell as produced by the parser.
type Entry struct {
	Classroom string `json:"classroom"`
	Name      string `json:"name"`
}

// Day maps a lesson slot number to its entry. Slot 0 is the "zero period";
// slots may have gaps or the whole day may be empty.
type Day map[int]Entry

// Timetable is the fully parsed weekly schedule of one group: seven days,
// Monday first.
type Timetable [7]Day

// MaxSlot returns the highest slot number present on the given day,
// or -1 for an empty day.
func (t Timetable) MaxSlot(day int) int {
	max := -1
	for num := range t[day] {
		if num > max {
			max = num
		}
	}
	return max
}
