package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const referenceCacheKey = "timetable:reference"

type timetableSource interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error)
	CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error)
	LoadSchedule(ctx context.Context) (models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule models.Schedule) error
}

type referenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// ScheduleStore holds the in-memory grid and the reference data it is built from.
type ScheduleStore struct {
	source   timetableSource
	cache    referenceCache
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration

	mu        sync.RWMutex
	reference models.ReferenceData
	schedule  models.Schedule
	loadedAt  time.Time
}

// ScheduleStoreConfig governs reference caching.
type ScheduleStoreConfig struct {
	CacheTTL time.Duration
}

// NewScheduleStore constructs an empty store. Call Load before serving.
func NewScheduleStore(source timetableSource, cache referenceCache, metrics *MetricsService, logger *zap.Logger, cfg ScheduleStoreConfig) *ScheduleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &ScheduleStore{
		source:   source,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cfg.CacheTTL,
		reference: models.ReferenceData{
			Teachers:       models.TeacherDirectory{},
			CourseTeachers: models.CourseTeacherMap{},
		},
		schedule: models.Schedule{},
	}
}

// Load fetches reference data and the persisted grid. A failed fetch is logged
// and replaced by its empty default.
func (s *ScheduleStore) Load(ctx context.Context) dto.LoadReport {
	report := dto.LoadReport{}

	reference, fromCache := s.cachedReference(ctx)
	if !fromCache {
		var failures []string
		reference, failures = s.fetchReference(ctx)
		report.Failures = append(report.Failures, failures...)
		if len(failures) == 0 && s.cache != nil {
			if err := s.cache.Set(ctx, referenceCacheKey, reference, s.cacheTTL); err != nil {
				s.logger.Debug("reference cache write failed", zap.Error(err))
			}
		}
	}
	report.FromCache = fromCache

	start := time.Now()
	schedule, err := s.source.LoadSchedule(ctx)
	s.metrics.ObserveStoreOperation("load_schedule", time.Since(start), err)
	if err != nil {
		s.logger.Warn("load schedules failed, using empty grid", zap.Error(err))
		report.Failures = append(report.Failures, "Schedules")
		schedule = models.Schedule{}
	}
	if schedule == nil {
		schedule = models.Schedule{}
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.reference = reference
	s.schedule = schedule
	s.loadedAt = now
	s.mu.Unlock()

	report.Courses = len(reference.Courses)
	report.Teachers = len(reference.Teachers)
	report.CourseTeachers = len(reference.CourseTeachers)
	report.Classes = len(reference.Classes())
	report.LoadedAt = now
	s.logger.Info("timetable data loaded",
		zap.Int("courses", report.Courses),
		zap.Int("teachers", report.Teachers),
		zap.Bool("from_cache", report.FromCache),
		zap.Strings("failures", report.Failures),
	)
	return report
}

// Reload drops cached reference data and loads again. The shared grid is
// replaced by the persisted one, so generations and edits not yet saved are
// discarded for every session.
func (s *ScheduleStore) Reload(ctx context.Context) dto.LoadReport {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, referenceCacheKey); err != nil {
			s.logger.Warn("reference cache invalidation failed", zap.Error(err))
		}
	}
	return s.Load(ctx)
}

// Reference returns the loaded reference data. Callers must not mutate it.
func (s *ScheduleStore) Reference() models.ReferenceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reference
}

// LoadedAt reports when the last Load completed, zero before the first one.
func (s *ScheduleStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// SelectClass computes the class key and filtered courses for grade+section.
func (s *ScheduleStore) SelectClass(grade, section string) models.ClassSelection {
	reference := s.Reference()
	return models.ClassSelection{
		Grade:   grade,
		Section: section,
		Key:     models.NewClassKey(grade, section),
		Courses: reference.CoursesFor(grade, section),
	}
}

// Snapshot returns a deep copy of the grid.
func (s *ScheduleStore) Snapshot() models.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule.Clone()
}

// ClassWeek returns a copy of one class's week.
func (s *ScheduleStore) ClassWeek(key models.ClassKey) models.ClassWeek {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule.Week(key)
}

// Replace swaps in a new grid.
func (s *ScheduleStore) Replace(next models.Schedule) {
	if next == nil {
		next = models.Schedule{}
	}
	s.mu.Lock()
	s.schedule = next
	s.mu.Unlock()
}

// Update hands fn a deep copy of the grid and publishes it only when fn
// succeeds. The committed grid is returned as a further copy.
func (s *ScheduleStore) Update(fn func(models.Schedule) error) (models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.schedule.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	s.schedule = draft
	return draft.Clone(), nil
}

// Persist writes the whole grid to the remote store. The in-memory grid is
// left untouched on failure.
func (s *ScheduleStore) Persist(ctx context.Context) (int, error) {
	snapshot := s.Snapshot()
	start := time.Now()
	err := s.source.SaveSchedule(ctx, snapshot)
	s.metrics.ObserveStoreOperation("save_schedule", time.Since(start), err)
	if err != nil {
		s.logger.Error("persist schedules failed", zap.Error(err))
		return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to save schedule")
	}
	classes := make(map[models.ClassKey]struct{})
	for _, byClass := range snapshot {
		for key := range byClass {
			classes[key] = struct{}{}
		}
	}
	s.logger.Info("schedules persisted", zap.Int("classes", len(classes)))
	return len(classes), nil
}

func (s *ScheduleStore) cachedReference(ctx context.Context) (models.ReferenceData, bool) {
	if s.cache == nil {
		return models.ReferenceData{}, false
	}
	var cached models.ReferenceData
	hit, err := s.cache.Get(ctx, referenceCacheKey, &cached)
	if err != nil || !hit {
		return models.ReferenceData{}, false
	}
	normalizeReference(&cached)
	return cached, true
}

func (s *ScheduleStore) fetchReference(ctx context.Context) (models.ReferenceData, []string) {
	reference := models.ReferenceData{}
	failures := make([]string, 0)

	start := time.Now()
	courses, err := s.source.ListCourses(ctx)
	s.metrics.ObserveStoreOperation("list_courses", time.Since(start), err)
	if err != nil {
		s.logger.Warn("load courses failed, using empty list", zap.Error(err))
		failures = append(failures, "Courses")
	} else {
		reference.Courses = courses
	}

	start = time.Now()
	teachers, err := s.source.TeacherDirectory(ctx)
	s.metrics.ObserveStoreOperation("teacher_directory", time.Since(start), err)
	if err != nil {
		s.logger.Warn("load teachers failed, using empty directory", zap.Error(err))
		failures = append(failures, "Teachers")
	} else {
		reference.Teachers = teachers
	}

	start = time.Now()
	courseTeachers, err := s.source.CourseTeachers(ctx)
	s.metrics.ObserveStoreOperation("course_teachers", time.Since(start), err)
	if err != nil {
		s.logger.Warn("load teacher assignments failed, using empty map", zap.Error(err))
		failures = append(failures, "TeacherAssignments")
	} else {
		reference.CourseTeachers = courseTeachers
	}

	normalizeReference(&reference)
	return reference, failures
}

func normalizeReference(reference *models.ReferenceData) {
	if reference.Courses == nil {
		reference.Courses = []models.Course{}
	}
	if reference.Teachers == nil {
		reference.Teachers = models.TeacherDirectory{}
	}
	if reference.CourseTeachers == nil {
		reference.CourseTeachers = models.CourseTeacherMap{}
	}
}
