package storage

import (
	"sort"
	"time"

	"inspira/internal/models"
)

// SortSlots orders lesson slots chronologically
func SortSlots(slots []models.LessonSlot) {
	sort.Slice(slots, func(i, j int) bool {
		di, _ := time.Parse(LessonDateLayout, slots[i].Date)
		dj, _ := time.Parse(LessonDateLayout, slots[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return slots[i].Time < slots[j].Time
	})
}

// StartOfDay truncates t to midnight UTC of its calendar day, the form
// lesson days are stored in
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
