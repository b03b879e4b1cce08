package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func grade9A() models.ClassSelection {
	return models.ClassSelection{Grade: "9", Section: "A", Key: models.NewClassKey("9", "A")}
}

func newExportJobServiceForTest(t *testing.T) (*TimetableExportService, *repository.MemoryExportJobRepository, *queueStub, *ExportService) {
	t.Helper()
	repo := repository.NewMemoryExportJobRepository()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t)
	svc := NewTimetableExportService(repo, queue, exportSvc, nil, NewMetricsService(), zap.NewNop(), TimetableExportConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return svc, repo, queue, exportSvc
}

func TestTimetableExportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), grade9A(), dto.ExportRequest{Format: "CSV"}, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, ExportJobType, queue.jobs[0].Type)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, stored.Params.Format)
	assert.Equal(t, models.ClassKey("Grade 9A"), stored.Params.ClassKey())
	assert.Equal(t, "admin", stored.CreatedBy)
}

func TestTimetableExportServiceCreateJobValidation(t *testing.T) {
	svc, _, queue, _ := newExportJobServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), grade9A(), dto.ExportRequest{Format: "docx"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), models.ClassSelection{}, dto.ExportRequest{Format: models.ExportFormatPDF}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, queue.jobs)
}

func TestTimetableExportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	queue.err = errors.New("queue stopped")

	_, err := svc.CreateJob(context.Background(), grade9A(), dto.ExportRequest{Format: models.ExportFormatCSV}, "admin")
	require.Error(t, err)

	failed, err := repo.ListQueued(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestTimetableExportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	url := "/api/v1/timetable/exports/download/token"
	job := &models.ExportJob{
		ID:        "job-1",
		Params:    models.ExportJobParams{Grade: "9", Section: "A", Format: models.ExportFormatXLSX},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		ResultURL: &url,
		CreatedBy: "admin",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	resp, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Equal(t, models.ClassKey("Grade 9A"), resp.ClassKey)
	require.NotNil(t, resp.ResultURL)
	assert.Equal(t, url, *resp.ResultURL)

	_, err = svc.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableExportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-download",
		Params:    models.ExportJobParams{Grade: "9", Section: "A", Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NoError(t, repo.Update(context.Background(), job.ID, repository.UpdateExportJobParams{ResultURL: &result.URL}))

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, result.RelativePath, download.Filename)
	assert.Equal(t, models.ExportFormatCSV, download.Format)

	_, err = svc.ResolveDownload(context.Background(), "bogus.token.value.sig")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTimetableExportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{ID: "job-a", Params: models.ExportJobParams{Grade: "9", Section: "A", Format: models.ExportFormatCSV}}))
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{ID: "job-b", Status: models.ExportStatusFinished}))

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "job-a", queue.jobs[0].ID)
}

func TestTimetableExportServiceCleanupExpired(t *testing.T) {
	svc, repo, _, exportSvc := newExportJobServiceForTest(t)
	job := &models.ExportJob{ID: "job-old", Params: models.ExportJobParams{Grade: "9", Section: "A", Format: models.ExportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)

	finished := models.ExportStatusFinished
	longAgo := time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.Update(context.Background(), job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		ResultURL:  &result.URL,
		FinishedAt: &longAgo,
	}))

	svc.cleanupExpired(context.Background())

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusExpired, stored.Status)
	_, err = exportSvc.Open(result.RelativePath)
	require.Error(t, err)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func queuedExportRepo(t *testing.T) *repository.MemoryExportJobRepository {
	t.Helper()
	repo := repository.NewMemoryExportJobRepository()
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{
		ID:        "job-1",
		Params:    models.ExportJobParams{Grade: "9", Section: "A", Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "admin",
	}))
	return repo
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := queuedExportRepo(t)
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/timetable/exports/download/token"}}
	worker := NewExportWorker(repo, exporter, NewMetricsService(), 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))

	stored, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.FinishedAt)
}

func TestExportWorkerHandleRetryThenFail(t *testing.T) {
	repo := queuedExportRepo(t)
	worker := NewExportWorker(repo, exportStub{err: errors.New("boom")}, nil, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1}))
	stored, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "boom", *stored.ErrorMessage)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	stored, err = repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
}
