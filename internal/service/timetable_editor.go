package service

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// cellEditor applies editor transitions for one class selection.
type cellEditor struct {
	reference models.ReferenceData
	selection models.ClassSelection
}

func newCellEditor(reference models.ReferenceData, selection models.ClassSelection) cellEditor {
	return cellEditor{reference: reference, selection: selection}
}

func (e cellEditor) course(courseID string) (models.Course, bool) {
	for _, c := range e.selection.Courses {
		if c.ID == courseID {
			return c, true
		}
	}
	return models.Course{}, false
}

// candidates lists the teachers selectable for a course, at most one.
func (e cellEditor) candidates(courseID string) []models.TeacherOption {
	options := make([]models.TeacherOption, 0, 1)
	if courseID == "" {
		return options
	}
	if _, ok := e.course(courseID); !ok {
		return options
	}
	if teacherID, ok := e.reference.TeacherFor(courseID); ok {
		options = append(options, models.TeacherOption{ID: teacherID, Name: e.reference.TeacherName(teacherID)})
	}
	return options
}

// open targets a cell. ok is false when the cell is a break, leaving state as it was.
func (e cellEditor) open(state models.EditorState, schedule models.Schedule, day models.Day, period models.Period) (next models.EditorState, ok bool, abandoned bool) {
	if period == models.PeriodLunch {
		return state, false, false
	}
	cell, exists := schedule.Cell(day, e.selection.Key, period)
	if exists && cell.Break {
		return state, false, false
	}
	if state.Open && state.Day == day && state.Period == period {
		return state, true, false
	}

	draft := models.EditorDraft{}
	if exists {
		for _, c := range e.selection.Courses {
			if c.Subject == cell.Subject {
				draft.CourseID = c.ID
				break
			}
		}
		draft.TeacherID = cell.TeacherIDValue()
	}

	abandoned = state.Open && (state.Day != day || state.Period != period)
	return models.EditorState{Open: true, Day: day, Period: period, Draft: draft}, true, abandoned
}

func (e cellEditor) editSubject(state models.EditorState, courseID string) (models.EditorState, error) {
	if !state.Open {
		return state, appErrors.Clone(appErrors.ErrPreconditionFailed, "no cell is open for editing")
	}
	if courseID == "" {
		state.Draft = models.EditorDraft{}
		return state, nil
	}
	if _, ok := e.course(courseID); !ok {
		return state, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s is not offered to %s", courseID, e.selection.Key))
	}
	teacherID, _ := e.reference.TeacherFor(courseID)
	state.Draft = models.EditorDraft{CourseID: courseID, TeacherID: teacherID}
	return state, nil
}

func (e cellEditor) editTeacher(state models.EditorState, teacherID string) (models.EditorState, error) {
	if !state.Open {
		return state, appErrors.Clone(appErrors.ErrPreconditionFailed, "no cell is open for editing")
	}
	if teacherID == "" {
		state.Draft.TeacherID = ""
		return state, nil
	}
	for _, option := range e.candidates(state.Draft.CourseID) {
		if option.ID == teacherID {
			state.Draft.TeacherID = teacherID
			return state, nil
		}
	}
	return state, appErrors.Clone(appErrors.ErrValidation, "teacher does not teach the selected subject")
}

// save resolves the draft into the cell to write. The teacher always comes
// from the course mapping so the stored id and name stay consistent.
func (e cellEditor) save(state models.EditorState) (models.Cell, error) {
	if !state.Open {
		return models.Cell{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "no cell is open for editing")
	}
	course, ok := e.course(state.Draft.CourseID)
	if !ok {
		return models.Cell{}, appErrors.Clone(appErrors.ErrValidation, "select a subject offered to this class")
	}
	return e.reference.Assignment(course), nil
}
