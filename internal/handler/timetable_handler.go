package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableEngine interface {
	Classes() []models.ClassGroup
	Reload(ctx context.Context) dto.LoadReport
	Selection(sessionID string) dto.TimetableView
	SelectClass(sessionID string, req dto.SelectClassRequest) (dto.TimetableView, error)
	Generate(ctx context.Context, sessionID string) (dto.GenerateResponse, error)
	Editor(sessionID string) (dto.EditorResponse, error)
	OpenCell(sessionID string, req dto.OpenCellRequest) (dto.EditorResponse, error)
	EditSubject(sessionID string, req dto.EditSubjectRequest) (dto.EditorResponse, error)
	EditTeacher(sessionID string, req dto.EditTeacherRequest) (dto.EditorResponse, error)
	SaveCell(sessionID string) (dto.EditorResponse, error)
	CancelEdit(sessionID string) (dto.EditorResponse, error)
	Reorder(sessionID string, req dto.ReorderRequest) (dto.ReorderResponse, error)
	Workload(sessionID string) ([]models.WorkloadEntry, error)
	Save(ctx context.Context) (dto.SaveResponse, error)
}

// TimetableHandler exposes the timetable editor endpoints.
type TimetableHandler struct {
	service timetableEngine
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Classes godoc
// @Summary List grades and their sections
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/classes [get]
func (h *TimetableHandler) Classes(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Classes())
}

// Reload godoc
// @Summary Reload reference data and the persisted grid
// @Description Replaces the shared grid with the persisted one, discarding unsaved generations and edits of every session. Collections that fail to load fall back to empty defaults and are listed in failures.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/reload [post]
func (h *TimetableHandler) Reload(c *gin.Context) {
	report := h.service.Reload(c.Request.Context())
	response.JSON(c, http.StatusOK, report, map[string]interface{}{
		"degraded":         len(report.Failures) > 0,
		"unsavedDiscarded": true,
	})
}

// Selection godoc
// @Summary Current class selection with its week and workload
// @Tags Timetable
// @Produce json
// @Param X-Session-ID header string false "Session id for anonymous callers"
// @Success 200 {object} response.Envelope
// @Router /timetable/selection [get]
func (h *TimetableHandler) Selection(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Selection(sessionFromContext(c)))
}

// SelectClass godoc
// @Summary Select grade and section
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.SelectClassRequest true "Class selection"
// @Success 200 {object} response.Envelope
// @Router /timetable/selection [put]
func (h *TimetableHandler) SelectClass(c *gin.Context) {
	var req dto.SelectClassRequest
	if !bindJSON(c, &req, "invalid class selection payload") {
		return
	}
	view, err := h.service.SelectClass(sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Generate godoc
// @Summary Generate the selected class's week
// @Description Replaces every cell of the selected class with random courses, avoiding back-to-back periods with the same teacher where possible.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	result, err := h.service.Generate(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Editor godoc
// @Summary Current cell editor state
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/editor [get]
func (h *TimetableHandler) Editor(c *gin.Context) {
	h.respondEditor(c, func(sessionID string) (dto.EditorResponse, error) {
		return h.service.Editor(sessionID)
	})
}

// OpenCell godoc
// @Summary Open a cell for editing
// @Description Break cells are ignored. Opening another cell discards an unsaved draft.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.OpenCellRequest true "Target cell"
// @Success 200 {object} response.Envelope
// @Router /timetable/editor/open [post]
func (h *TimetableHandler) OpenCell(c *gin.Context) {
	var req dto.OpenCellRequest
	if !bindJSON(c, &req, "invalid open cell payload") {
		return
	}
	h.respondEditor(c, func(sessionID string) (dto.EditorResponse, error) {
		return h.service.OpenCell(sessionID, req)
	})
}

// EditSubject godoc
// @Summary Change the draft subject
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.EditSubjectRequest true "Course"
// @Success 200 {object} response.Envelope
// @Router /timetable/editor/subject [put]
func (h *TimetableHandler) EditSubject(c *gin.Context) {
	var req dto.EditSubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	h.respondEditor(c, func(sessionID string) (dto.EditorResponse, error) {
		return h.service.EditSubject(sessionID, req)
	})
}

// EditTeacher godoc
// @Summary Change the draft teacher
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.EditTeacherRequest true "Teacher"
// @Success 200 {object} response.Envelope
// @Router /timetable/editor/teacher [put]
func (h *TimetableHandler) EditTeacher(c *gin.Context) {
	var req dto.EditTeacherRequest
	if !bindJSON(c, &req, "invalid teacher payload") {
		return
	}
	h.respondEditor(c, func(sessionID string) (dto.EditorResponse, error) {
		return h.service.EditTeacher(sessionID, req)
	})
}

// SaveCell godoc
// @Summary Commit the draft into the grid
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/editor/save [post]
func (h *TimetableHandler) SaveCell(c *gin.Context) {
	h.respondEditor(c, h.service.SaveCell)
}

// CancelEdit godoc
// @Summary Discard the draft
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/editor/cancel [post]
func (h *TimetableHandler) CancelEdit(c *gin.Context) {
	h.respondEditor(c, h.service.CancelEdit)
}

// Reorder godoc
// @Summary Swap two periods of a day
// @Description Indices address the day's periods with lunch removed. A missing destination leaves the grid unchanged.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ReorderRequest true "Drag result"
// @Success 200 {object} response.Envelope
// @Router /timetable/reorder [post]
func (h *TimetableHandler) Reorder(c *gin.Context) {
	var req dto.ReorderRequest
	if !bindJSON(c, &req, "invalid reorder payload") {
		return
	}
	result, err := h.service.Reorder(sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Workload godoc
// @Summary Periods per teacher for the selected class
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/workload [get]
func (h *TimetableHandler) Workload(c *gin.Context) {
	entries, err := h.service.Workload(sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"total": len(entries)})
}

// Save godoc
// @Summary Persist the whole grid to the remote store
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /timetable/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	result, err := h.service.Save(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *TimetableHandler) respondEditor(c *gin.Context, fn func(sessionID string) (dto.EditorResponse, error)) {
	result, err := fn(sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
