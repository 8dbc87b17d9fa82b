package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

const maxTrackedRuns = 200

// RunJobRegistry keeps the state of queued runs in memory. Only the most
// recent maxTrackedRuns jobs are retained.
type RunJobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*models.RunJob
	order []string
	clock func() time.Time
}

// NewRunJobRegistry constructs an empty registry.
func NewRunJobRegistry() *RunJobRegistry {
	return &RunJobRegistry{
		jobs:  make(map[string]*models.RunJob),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a queued job.
func (r *RunJobRegistry) Create(id string, req dto.RunSubstitutionRequest) *models.RunJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &models.RunJob{
		ID:         id,
		Date:       req.Date,
		Absentees:  append([]string(nil), req.Absentees...),
		Status:     models.RunJobQueued,
		EnqueuedAt: r.clock(),
	}
	r.jobs[id] = job
	r.order = append(r.order, id)
	for len(r.order) > maxTrackedRuns {
		delete(r.jobs, r.order[0])
		r.order = r.order[1:]
	}
	return cloneRunJob(job)
}

// Get returns a copy of the job.
func (r *RunJobRegistry) Get(id string) (*models.RunJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run job not found")
	}
	return cloneRunJob(job), nil
}

// List returns every tracked job, newest first.
func (r *RunJobRegistry) List() []models.RunJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RunJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *cloneRunJob(job))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	return out
}

func (r *RunJobRegistry) update(id string, fn func(job *models.RunJob, now time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job, r.clock())
	}
}

// Start marks the job running.
func (r *RunJobRegistry) Start(id string) {
	r.update(id, func(job *models.RunJob, now time.Time) {
		job.Status = models.RunJobRunning
		job.Attempts++
		job.StartedAt = &now
		job.FinishedAt = nil
	})
}

// Finish stores the run summary.
func (r *RunJobRegistry) Finish(id string, summary *models.RunSummary) {
	r.update(id, func(job *models.RunJob, now time.Time) {
		job.Status = models.RunJobFinished
		job.Summary = summary
		job.Error = ""
		job.FinishedAt = &now
	})
}

// Requeue records a failed attempt that will be retried.
func (r *RunJobRegistry) Requeue(id string, err error) {
	r.update(id, func(job *models.RunJob, _ time.Time) {
		job.Status = models.RunJobQueued
		job.Error = err.Error()
	})
}

// Fail marks the job failed for good.
func (r *RunJobRegistry) Fail(id string, err error) {
	r.update(id, func(job *models.RunJob, now time.Time) {
		job.Status = models.RunJobFailed
		job.Error = err.Error()
		job.FinishedAt = &now
	})
}

func cloneRunJob(job *models.RunJob) *models.RunJob {
	out := *job
	out.Absentees = append([]string(nil), job.Absentees...)
	if job.Summary != nil {
		summary := *job.Summary
		out.Summary = &summary
	}
	return &out
}

type runExecutor interface {
	execute(ctx context.Context, req dto.RunSubstitutionRequest, trigger string) *substitution.Result
}

// RunWorker bridges queue jobs to the substitution engine.
type RunWorker struct {
	runs       *RunJobRegistry
	executor   runExecutor
	logger     *zap.Logger
	maxRetries int
}

// NewRunWorker constructs a worker executing through svc.
func NewRunWorker(svc *SubstitutionService, maxRetries int, logger *zap.Logger) *RunWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RunWorker{
		runs:       svc.runs,
		executor:   svc,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job. Failed runs are returned as errors so the
// queue retries them; abandoned runs are not retried.
func (w *RunWorker) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.RunSubstitutionRequest)
	if !ok {
		err := fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
		w.runs.Fail(job.ID, err)
		w.logger.Sugar().Errorw("dropping run job", "job_id", job.ID, "error", err)
		return nil
	}

	w.runs.Start(job.ID)
	result := w.executor.execute(ctx, req, "queue")

	switch result.Status {
	case substitution.RunCompleted, substitution.RunPartial:
		w.runs.Finish(job.ID, Summarize(result))
		return nil
	case substitution.RunAbandoned:
		w.runs.Fail(job.ID, fmt.Errorf("run for %s abandoned", req.Date))
		return nil
	}

	err := fmt.Errorf("run for %s failed: %s", req.Date, lastError(result))
	if job.Attempt >= w.maxRetries {
		w.runs.Fail(job.ID, err)
	} else {
		w.runs.Requeue(job.ID, err)
	}
	return err
}

func lastError(result *substitution.Result) string {
	for i := len(result.Logs) - 1; i >= 0; i-- {
		if result.Logs[i].Status == models.LogStatusError {
			return result.Logs[i].Details
		}
	}
	return "unknown error"
}
