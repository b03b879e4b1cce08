package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

const lunchLabel = "LUNCH"

type classWeekSource interface {
	ClassWeek(key models.ClassKey) models.ClassWeek
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders class timetables and persists the files.
type ExportService struct {
	schedule classWeekSource
	storage  fileStorage
	csv      csvRenderer
	pdf      tableRenderer
	xlsx     tableRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRenderers groups the per-format renderers. Nil entries use the package defaults.
type ExportRenderers struct {
	CSV  csvRenderer
	PDF  tableRenderer
	XLSX tableRenderer
}

// NewExportService constructs an ExportService.
func NewExportService(schedule classWeekSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers ExportRenderers) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.XLSX == nil {
		renderers.XLSX = export.NewXLSXExporter()
	}
	return &ExportService{
		schedule: schedule,
		storage:  storage,
		csv:      renderers.CSV,
		pdf:      renderers.PDF,
		xlsx:     renderers.XLSX,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the job's class week and stores the result behind a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := job.Params.ClassKey()
	dataset := BuildTimetableDataset(s.schedule.ClassWeek(key))
	title := fmt.Sprintf("%s Timetable", key)

	var (
		payload []byte
		err     error
	)
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("timetable export rendered",
		zap.String("job_id", job.ID),
		zap.String("class", string(key)),
		zap.String("format", string(job.Params.Format)),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/timetable/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// BuildTimetableDataset lays a class week out as one row per period and one
// column per day. Assigned cells read "subject (teacher)".
func BuildTimetableDataset(week models.ClassWeek) export.Dataset {
	headers := make([]string, 0, len(models.Days)+1)
	headers = append(headers, "Period")
	for _, day := range models.Days {
		headers = append(headers, string(day))
	}

	rows := make([]map[string]string, 0, len(models.Periods))
	for _, period := range models.Periods {
		row := map[string]string{"Period": string(period)}
		for _, day := range models.Days {
			row[string(day)] = formatCell(period, week[day])
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCell(period models.Period, plan models.DayPlan) string {
	if period == models.PeriodLunch {
		return lunchLabel
	}
	cell, ok := plan[period]
	switch {
	case !ok:
		return ""
	case cell.Break:
		return lunchLabel
	case cell.TeacherName == "":
		return cell.Subject
	default:
		return fmt.Sprintf("%s (%s)", cell.Subject, cell.TeacherName)
	}
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	classPart := strings.ToLower(sanitizeFilename(string(job.Params.ClassKey())))
	return fmt.Sprintf("timetable_%s_%s_%s.%s", classPart, timestamp, shortID(job.ID), job.Params.Format)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return sanitizeFilename(id)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
