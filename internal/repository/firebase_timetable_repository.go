package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Collection names of the shared document store.
const (
	CollectionCourses            = "Courses"
	CollectionTeachers           = "Teachers"
	CollectionUsers              = "Users"
	CollectionTeacherAssignments = "TeacherAssignments"
	CollectionSchedules          = "Schedules"
)

type documentStore interface {
	Get(ctx context.Context, path string, dest interface{}) error
	Set(ctx context.Context, path string, value interface{}) error
}

// FirebaseTimetableRepository reads timetable collections from a Realtime Database.
type FirebaseTimetableRepository struct {
	store documentStore
}

// NewFirebaseTimetableRepository constructs the repository.
func NewFirebaseTimetableRepository(store documentStore) *FirebaseTimetableRepository {
	return &FirebaseTimetableRepository{store: store}
}

type firebaseCourse struct {
	Grade   models.Label `json:"grade"`
	Section string       `json:"section"`
	Subject string       `json:"subject"`
}

type firebaseTeacher struct {
	UserID string `json:"userId"`
}

type firebaseUser struct {
	Name string `json:"name"`
}

type firebaseAssignment struct {
	CourseID  string `json:"courseId"`
	TeacherID string `json:"teacherId"`
}

// ListCourses returns every course ordered by id.
func (r *FirebaseTimetableRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	var raw map[string]firebaseCourse
	if err := r.store.Get(ctx, CollectionCourses, &raw); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]models.Course, 0, len(raw))
	for id, c := range raw {
		courses = append(courses, models.Course{ID: id, Grade: c.Grade, Section: c.Section, Subject: c.Subject})
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

// TeacherDirectory joins teachers with their user record to resolve display names.
func (r *FirebaseTimetableRepository) TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error) {
	var users map[string]firebaseUser
	if err := r.store.Get(ctx, CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var teachers map[string]firebaseTeacher
	if err := r.store.Get(ctx, CollectionTeachers, &teachers); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	directory := make(models.TeacherDirectory, len(teachers))
	for teacherID, t := range teachers {
		user, ok := users[t.UserID]
		if !ok {
			continue
		}
		directory[teacherID] = user.Name
	}
	return directory, nil
}

// CourseTeachers builds the course -> teacher map. The collection may be keyed
// by push id or stored as an array.
func (r *FirebaseTimetableRepository) CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error) {
	var raw json.RawMessage
	if err := r.store.Get(ctx, CollectionTeacherAssignments, &raw); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	assignments, err := decodeAssignments(raw)
	if err != nil {
		return nil, fmt.Errorf("decode teacher assignments: %w", err)
	}
	result := make(models.CourseTeacherMap, len(assignments))
	for _, a := range assignments {
		if a.CourseID == "" {
			continue
		}
		result[a.CourseID] = a.TeacherID
	}
	return result, nil
}

// LoadSchedule returns the persisted grid, empty when none exists.
func (r *FirebaseTimetableRepository) LoadSchedule(ctx context.Context) (models.Schedule, error) {
	var schedule models.Schedule
	if err := r.store.Get(ctx, CollectionSchedules, &schedule); err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	if schedule == nil {
		schedule = models.Schedule{}
	}
	return schedule, nil
}

// SaveSchedule overwrites the whole Schedules collection.
func (r *FirebaseTimetableRepository) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	if err := r.store.Set(ctx, CollectionSchedules, schedule); err != nil {
		return fmt.Errorf("save schedules: %w", err)
	}
	return nil
}

func decodeAssignments(raw json.RawMessage) ([]firebaseAssignment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var keyed map[string]*firebaseAssignment
	if err := json.Unmarshal(raw, &keyed); err == nil {
		ids := make([]string, 0, len(keyed))
		for id := range keyed {
			ids = append(ids, id)
		}
		// push ids sort chronologically, so later assignments win
		sort.Strings(ids)
		out := make([]firebaseAssignment, 0, len(keyed))
		for _, id := range ids {
			if keyed[id] != nil {
				out = append(out, *keyed[id])
			}
		}
		return out, nil
	}
	var list []*firebaseAssignment
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	out := make([]firebaseAssignment, 0, len(list))
	for _, a := range list {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}
