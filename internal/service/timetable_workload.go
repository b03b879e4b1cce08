package service

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ComputeWorkload counts the non-lunch periods each teacher name holds in a
// class week, busiest first.
func ComputeWorkload(schedule models.Schedule, key models.ClassKey) []models.WorkloadEntry {
	counts := make(map[string]int)
	for _, classes := range schedule {
		for period, cell := range classes[key] {
			if period == models.PeriodLunch || cell.Break || cell.TeacherName == "" {
				continue
			}
			counts[cell.TeacherName]++
		}
	}

	entries := make([]models.WorkloadEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, models.WorkloadEntry{TeacherName: name, Periods: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Periods != entries[j].Periods {
			return entries[i].Periods > entries[j].Periods
		}
		return entries[i].TeacherName < entries[j].TeacherName
	})
	return entries
}
