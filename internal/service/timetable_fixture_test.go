package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// grade9AReference is the Math/English/Biology class where Math and Biology share a teacher.
func grade9AReference() models.ReferenceData {
	return models.ReferenceData{
		Courses: []models.Course{
			{ID: "c1", Grade: "9", Section: "A", Subject: "Math"},
			{ID: "c2", Grade: "9", Section: "A", Subject: "English"},
			{ID: "c3", Grade: "9", Section: "A", Subject: "Biology"},
			{ID: "c4", Grade: "10", Section: "B", Subject: "Physics"},
		},
		Teachers:       models.TeacherDirectory{"T1": "Alice", "T2": "Bob"},
		CourseTeachers: models.CourseTeacherMap{"c1": "T1", "c2": "T2", "c3": "T1"},
	}
}

var errSourceDown = errors.New("remote store unreachable")

// sourceStub is an in-memory timetableSource with per-call failure switches.
type sourceStub struct {
	mu             sync.Mutex
	reference      models.ReferenceData
	schedule       models.Schedule
	saved          []models.Schedule
	failCourses    bool
	failTeachers   bool
	failAssignment bool
	failLoad       bool
	failSave       bool
}

func newSourceStub(reference models.ReferenceData) *sourceStub {
	return &sourceStub{reference: reference, schedule: models.Schedule{}}
}

func (s *sourceStub) ListCourses(ctx context.Context) ([]models.Course, error) {
	if s.failCourses {
		return nil, errSourceDown
	}
	return append([]models.Course(nil), s.reference.Courses...), nil
}

func (s *sourceStub) TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error) {
	if s.failTeachers {
		return nil, errSourceDown
	}
	out := models.TeacherDirectory{}
	for k, v := range s.reference.Teachers {
		out[k] = v
	}
	return out, nil
}

func (s *sourceStub) CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error) {
	if s.failAssignment {
		return nil, errSourceDown
	}
	out := models.CourseTeacherMap{}
	for k, v := range s.reference.CourseTeachers {
		out[k] = v
	}
	return out, nil
}

func (s *sourceStub) LoadSchedule(ctx context.Context) (models.Schedule, error) {
	if s.failLoad {
		return nil, errSourceDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.Clone(), nil
}

func (s *sourceStub) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	if s.failSave {
		return errSourceDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule.Clone()
	s.saved = append(s.saved, schedule.Clone())
	return nil
}

// cacheStub satisfies referenceCache with a plain map.
type cacheStub struct {
	mu          sync.Mutex
	items       map[string]models.ReferenceData
	invalidated []string
	failSet     bool
}

func newCacheStub() *cacheStub {
	return &cacheStub{items: map[string]models.ReferenceData{}}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*(dest.(*models.ReferenceData)) = value
	return true, nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache write refused")
	}
	c.items[key] = value.(models.ReferenceData)
	return nil
}

func (c *cacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	delete(c.items, pattern)
	return nil
}

// sequenceRand replays fixed picks, clamped to n.
type sequenceRand struct {
	picks []int
	next  int
}

func (r *sequenceRand) Intn(n int) int {
	if len(r.picks) == 0 {
		return 0
	}
	pick := r.picks[r.next%len(r.picks)]
	r.next++
	if pick >= n {
		return n - 1
	}
	return pick
}

func loadedStore(source *sourceStub) *ScheduleStore {
	store := NewScheduleStore(source, nil, nil, nil, ScheduleStoreConfig{})
	store.Load(context.Background())
	return store
}

func assignedCell(reference models.ReferenceData, courseID string) models.Cell {
	for _, c := range reference.Courses {
		if c.ID == courseID {
			return reference.Assignment(c)
		}
	}
	return models.Cell{}
}
