package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RandomSource picks an index in [0, n).
type RandomSource interface {
	Intn(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a goroutine-safe source. A zero seed is replaced by the clock.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

// GenerateClassWeek fills every day of a class with random course assignments.
// Within a day no course is picked whose teacher taught the previous period,
// unless every course would repeat that teacher; then any course is allowed.
// Lunch resets the tracker. An unmapped course counts as the empty teacher, so it
// is skipped at the start of a block and right after another unmapped period.
func GenerateClassWeek(reference models.ReferenceData, courses []models.Course, rnd RandomSource) (models.ClassWeek, dto.GenerationStats) {
	week := make(models.ClassWeek, len(models.Days))
	stats := dto.GenerationStats{}
	if len(courses) == 0 {
		return week, stats
	}

	for _, day := range models.Days {
		plan := make(models.DayPlan, len(models.Periods))
		previous := ""
		for _, period := range models.Periods {
			if period == models.PeriodLunch {
				plan[period] = models.BreakCell()
				previous = ""
				continue
			}

			candidates := make([]models.Course, 0, len(courses))
			for _, course := range courses {
				teacherID, _ := reference.TeacherFor(course.ID)
				if teacherID != previous {
					candidates = append(candidates, course)
				}
			}
			if len(candidates) == 0 {
				candidates = courses
				stats.Fallbacks++
			}

			chosen := candidates[rnd.Intn(len(candidates))]
			cell := reference.Assignment(chosen)
			plan[period] = cell
			previous = cell.TeacherIDValue()
			stats.Periods++
		}
		week[day] = plan
	}
	return week, stats
}
