package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type exportJobService interface {
	CreateJob(ctx context.Context, selection models.ClassSelection, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

type selectionReader interface {
	CurrentSelection(sessionID string) (models.ClassSelection, error)
}

// TimetableExportHandler exposes export job endpoints.
type TimetableExportHandler struct {
	exports    exportJobService
	selections selectionReader
}

// NewTimetableExportHandler constructs the handler.
func NewTimetableExportHandler(exports *service.TimetableExportService, timetable *service.TimetableService) *TimetableExportHandler {
	return &TimetableExportHandler{exports: exports, selections: timetable}
}

// CreateExport godoc
// @Summary Queue an export of the selected class
// @Tags Timetable Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Router /timetable/exports [post]
func (h *TimetableExportHandler) CreateExport(c *gin.Context) {
	var req dto.ExportRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	selection, err := h.selections.CurrentSelection(sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), selection, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ExportStatus godoc
// @Summary Export job status
// @Tags Timetable Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/exports/{id} [get]
func (h *TimetableExportHandler) ExportStatus(c *gin.Context) {
	status, err := h.exports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download a finished export through its signed token
// @Tags Timetable Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /timetable/exports/download/{token} [get]
func (h *TimetableExportHandler) Download(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Expires", download.ExpiresAt.UTC().Format(http.TimeFormat))
	c.Header("Cache-Control", "private, max-age="+fmt.Sprint(int(time.Until(download.ExpiresAt).Seconds())))
	c.DataFromReader(http.StatusOK, info.Size(), contentType(download.Format), download.File, nil)
}

func contentType(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatCSV:
		return "text/csv"
	case models.ExportFormatPDF:
		return "application/pdf"
	case models.ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
