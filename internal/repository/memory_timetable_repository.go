package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MemoryTimetableRepository keeps timetable collections in process memory.
type MemoryTimetableRepository struct {
	mu             sync.RWMutex
	courses        map[string]models.Course
	teachers       models.TeacherDirectory
	courseTeachers models.CourseTeacherMap
	schedule       models.Schedule
}

// NewMemoryTimetableRepository seeds the repository with optional reference data.
func NewMemoryTimetableRepository(seed models.ReferenceData) *MemoryTimetableRepository {
	repo := &MemoryTimetableRepository{
		courses:        make(map[string]models.Course, len(seed.Courses)),
		teachers:       make(models.TeacherDirectory, len(seed.Teachers)),
		courseTeachers: make(models.CourseTeacherMap, len(seed.CourseTeachers)),
		schedule:       models.Schedule{},
	}
	for _, c := range seed.Courses {
		repo.courses[c.ID] = c
	}
	for id, name := range seed.Teachers {
		repo.teachers[id] = name
	}
	for courseID, teacherID := range seed.CourseTeachers {
		repo.courseTeachers[courseID] = teacherID
	}
	return repo
}

// PutCourse inserts or replaces a course.
func (r *MemoryTimetableRepository) PutCourse(course models.Course) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[course.ID] = course
}

// PutTeacher inserts or renames a teacher.
func (r *MemoryTimetableRepository) PutTeacher(teacherID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[teacherID] = name
}

// AssignTeacher maps a course to a teacher.
func (r *MemoryTimetableRepository) AssignTeacher(courseID, teacherID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courseTeachers[courseID] = teacherID
}

// ListCourses returns every course ordered by id.
func (r *MemoryTimetableRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	courses := make([]models.Course, 0, len(r.courses))
	for _, c := range r.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

// TeacherDirectory returns a copy of the teacher names.
func (r *MemoryTimetableRepository) TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(models.TeacherDirectory, len(r.teachers))
	for id, name := range r.teachers {
		out[id] = name
	}
	return out, nil
}

// CourseTeachers returns a copy of the course -> teacher map.
func (r *MemoryTimetableRepository) CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(models.CourseTeacherMap, len(r.courseTeachers))
	for courseID, teacherID := range r.courseTeachers {
		out[courseID] = teacherID
	}
	return out, nil
}

// LoadSchedule returns a deep copy of the stored grid.
func (r *MemoryTimetableRepository) LoadSchedule(ctx context.Context) (models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schedule.Clone(), nil
}

// SaveSchedule replaces the stored grid with a deep copy.
func (r *MemoryTimetableRepository) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedule = schedule.Clone()
	return nil
}

func sortedDays(schedule models.Schedule) []models.Day {
	days := make([]models.Day, 0, len(schedule))
	for day := range schedule {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		a, b := dayIndex(days[i]), dayIndex(days[j])
		if a != b {
			return a < b
		}
		return days[i] < days[j]
	})
	return days
}

func dayIndex(day models.Day) int {
	for i, d := range models.Days {
		if d == day {
			return i
		}
	}
	return len(models.Days)
}

func sortedClassKeys(classes map[models.ClassKey]models.DayPlan) []models.ClassKey {
	keys := make([]models.ClassKey, 0, len(classes))
	for key := range classes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedPeriods(plan models.DayPlan) []models.Period {
	periods := make([]models.Period, 0, len(plan))
	for period := range plan {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool {
		a, b := periodIndex(periods[i]), periodIndex(periods[j])
		if a != b {
			return a < b
		}
		return periods[i] < periods[j]
	})
	return periods
}

func periodIndex(period models.Period) int {
	for i, p := range models.Periods {
		if p == period {
			return i
		}
	}
	return len(models.Periods)
}
