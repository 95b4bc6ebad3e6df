package ticket

import (
	"fmt"
	"strings"
	"time"
)

// Date formats used across the registration flow
const (
	LabelLayout      = "2 January"
	LessonDateLayout = "02.01.2006"
)

// UpcomingSaturdays returns the next n Saturdays starting from today.
// Today counts when it is a Saturday.
func UpcomingSaturdays(today time.Time, n int) []time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	ahead := (int(time.Saturday) - int(day.Weekday()) + 7) % 7
	first := day.AddDate(0, 0, ahead)

	days := make([]time.Time, n)
	for i := range days {
		days[i] = first.AddDate(0, 0, 7*i)
	}
	return days
}

// DateLabel formats a lesson day for a keyboard button, e.g. "2 January"
func DateLabel(t time.Time) string {
	return t.Format(LabelLayout)
}

// ParseDateLabel turns a button label back into a date. The year is the
// current one unless the day has already passed, then it is the next one.
func ParseDateLabel(label string, today time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(LabelLayout, strings.TrimSpace(label), today.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", label, err)
	}
	d := time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, today.Location())
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if d.Before(start) {
		d = d.AddDate(1, 0, 0)
	}
	return d, nil
}

// DisplayMonth is the short upper case month printed on the ticket, e.g. "JAN"
func DisplayMonth(t time.Time) string {
	return strings.ToUpper(t.Format("Jan"))
}

// LessonDate formats the day as stored with the appointment
func LessonDate(t time.Time) string {
	return t.Format(LessonDateLayout)
}

// GroupLabel builds the product group of a lesson, e.g. "07.11.2026_13.00"
func GroupLabel(day time.Time, clock string) string {
	return LessonDate(day) + "_" + strings.ReplaceAll(clock, ":", ".")
}

// ForDay builds the ticket texts for a lesson
func ForDay(day time.Time, clock, activity string) Ticket {
	return Ticket{
		Day:      fmt.Sprintf("%d", day.Day()),
		Month:    DisplayMonth(day),
		Time:     clock,
		Activity: activity,
	}
}
