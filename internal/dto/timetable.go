package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SelectClassRequest activates the grade+section view.
type SelectClassRequest struct {
	Grade   string `json:"grade" validate:"required,max=8"`
	Section string `json:"section" validate:"required,max=4"`
}

// OpenCellRequest targets one day+period of the selected class.
type OpenCellRequest struct {
	Day    string `json:"day" validate:"required"`
	Period string `json:"period" validate:"required"`
}

// EditSubjectRequest changes the draft subject. An empty course clears the draft.
type EditSubjectRequest struct {
	CourseID string `json:"courseId"`
}

// EditTeacherRequest changes the draft teacher.
type EditTeacherRequest struct {
	TeacherID string `json:"teacherId"`
}

// ReorderRequest drags one assignable period onto another within a day.
// A nil destination is a cancelled drag.
type ReorderRequest struct {
	Day              string `json:"day" validate:"required"`
	SourceIndex      *int   `json:"sourceIndex" validate:"required"`
	DestinationIndex *int   `json:"destinationIndex"`
}

// ExportRequest queues an export of the selected class.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
}

// LoadReport summarises what a load fetched and which collections fell back to defaults.
type LoadReport struct {
	Courses        int       `json:"courses"`
	Teachers       int       `json:"teachers"`
	CourseTeachers int       `json:"courseTeachers"`
	Classes        int       `json:"classes"`
	FromCache      bool      `json:"fromCache"`
	Failures       []string  `json:"failures,omitempty"`
	LoadedAt       time.Time `json:"loadedAt"`
}

// GenerationStats describes one generated class week.
type GenerationStats struct {
	Periods   int `json:"periods"`
	Fallbacks int `json:"fallbacks"`
}

// TimetableView is the selected class's week with its derived workload.
type TimetableView struct {
	Selected  bool                   `json:"selected"`
	Selection *models.ClassSelection `json:"selection,omitempty"`
	Week      models.ClassWeek       `json:"week,omitempty"`
	Workload  []models.WorkloadEntry `json:"workload"`
}

// GenerateResponse returns the freshly generated week.
type GenerateResponse struct {
	TimetableView
	Stats GenerationStats `json:"stats"`
}

// EditorResponse exposes the editor state machine.
type EditorResponse struct {
	Editor     models.EditorState     `json:"editor"`
	Candidates []models.TeacherOption `json:"candidates"`
	Changed    bool                   `json:"changed"`
	Abandoned  bool                   `json:"abandoned,omitempty"`
	Timetable  *TimetableView         `json:"timetable,omitempty"`
}

// ReorderResponse reports whether a swap happened.
type ReorderResponse struct {
	TimetableView
	Changed bool `json:"changed"`
}

// SaveResponse confirms a persisted grid.
type SaveResponse struct {
	Classes int       `json:"classes"`
	SavedAt time.Time `json:"savedAt"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string                 `json:"id"`
	Status   models.ExportJobStatus `json:"status"`
	Progress int                    `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string                 `json:"id"`
	ClassKey  models.ClassKey        `json:"classKey"`
	Format    models.ExportFormat    `json:"format"`
	Status    models.ExportJobStatus `json:"status"`
	Progress  int                    `json:"progress"`
	ResultURL *string                `json:"resultUrl,omitempty"`
	Error     *string                `json:"error,omitempty"`
}
