package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MemoryExportJobRepository keeps export jobs in process memory for the
// firebase and memory store drivers.
type MemoryExportJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]models.ExportJob
}

// NewMemoryExportJobRepository constructs an empty repository.
func NewMemoryExportJobRepository() *MemoryExportJobRepository {
	return &MemoryExportJobRepository{jobs: make(map[string]models.ExportJob)}
}

// Create stores a new job with generated defaults.
func (r *MemoryExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	prepareExportJob(job)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("create export job: duplicate id %s", job.ID)
	}
	r.jobs[job.ID] = copyExportJob(*job)
	return nil
}

// GetByID returns a copy of the job. Unknown ids wrap sql.ErrNoRows.
func (r *MemoryExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get export job: %w", sql.ErrNoRows)
	}
	out := copyExportJob(job)
	return &out, nil
}

// Update applies the provided changes.
func (r *MemoryExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("update export job: %w", sql.ErrNoRows)
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		at := *params.FinishedAt
		job.FinishedAt = &at
	}
	r.jobs[id] = job
	return nil
}

// ListQueued returns queued jobs, oldest first.
func (r *MemoryExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(limit, func(job models.ExportJob) bool {
		return job.Status == models.ExportStatusQueued
	}, func(job models.ExportJob) time.Time { return job.CreatedAt }), nil
}

// ListFinishedBefore returns finished jobs completed before cutoff, oldest first.
func (r *MemoryExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(limit, func(job models.ExportJob) bool {
		return job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff)
	}, func(job models.ExportJob) time.Time { return *job.FinishedAt }), nil
}

func (r *MemoryExportJobRepository) list(limit int, match func(models.ExportJob) bool, orderBy func(models.ExportJob) time.Time) []models.ExportJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.ExportJob, 0)
	for _, job := range r.jobs {
		if match(job) {
			result = append(result, copyExportJob(job))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := orderBy(result[i]), orderBy(result[j])
		if a.Equal(b) {
			return result[i].ID < result[j].ID
		}
		return a.Before(b)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func copyExportJob(job models.ExportJob) models.ExportJob {
	if job.ResultURL != nil {
		url := *job.ResultURL
		job.ResultURL = &url
	}
	if job.ErrorMessage != nil {
		msg := *job.ErrorMessage
		job.ErrorMessage = &msg
	}
	if job.FinishedAt != nil {
		at := *job.FinishedAt
		job.FinishedAt = &at
	}
	return job
}
