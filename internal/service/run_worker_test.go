package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

func failedResult(detail string) *substitution.Result {
	return &substitution.Result{
		Status: substitution.RunFailed,
		Logs: []models.ProcessLogEntry{
			{Action: substitution.ActionRunStarted, Status: models.LogStatusInfo},
			{Action: substitution.ActionSourceDataError, Status: models.LogStatusError, Details: detail},
		},
	}
}

func queuedJob(svc *SubstitutionService, date string) jobs.Job {
	req := dto.RunSubstitutionRequest{Date: date}
	job := svc.runs.Create(fmt.Sprintf("job-%s", date), req)
	return jobs.Job{ID: job.ID, Type: RunJobType, Payload: req}
}

func TestRunWorkerHandleFinishes(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{results: []*substitution.Result{sampleResult()}}, &readerStub{}, SubstitutionServiceConfig{})
	worker := NewRunWorker(svc, 2, zap.NewNop())
	job := queuedJob(svc, "2024-01-01")

	require.NoError(t, worker.Handle(context.Background(), job))

	stored, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunJobFinished, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, 2, stored.Summary.Assignments)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)
}

func TestRunWorkerHandleRetriesFailedRuns(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{results: []*substitution.Result{failedResult("roster is empty")}}, &readerStub{}, SubstitutionServiceConfig{})
	worker := NewRunWorker(svc, 2, zap.NewNop())
	job := queuedJob(svc, "2024-01-01")

	err := worker.Handle(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roster is empty")
	stored, _ := svc.Job(context.Background(), job.ID)
	assert.Equal(t, models.RunJobQueued, stored.Status)
	assert.Contains(t, stored.Error, "roster is empty")

	job.Attempt = 2
	require.Error(t, worker.Handle(context.Background(), job))
	stored, _ = svc.Job(context.Background(), job.ID)
	assert.Equal(t, models.RunJobFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestRunWorkerHandleAbandonedIsNotRetried(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{results: []*substitution.Result{{Status: substitution.RunAbandoned}}}, &readerStub{}, SubstitutionServiceConfig{})
	worker := NewRunWorker(svc, 2, zap.NewNop())
	job := queuedJob(svc, "2024-01-01")

	require.NoError(t, worker.Handle(context.Background(), job))
	stored, _ := svc.Job(context.Background(), job.ID)
	assert.Equal(t, models.RunJobFailed, stored.Status)
}

func TestRunWorkerHandleRejectsBadPayload(t *testing.T) {
	engine := &engineStub{}
	svc := newSubstitutionServiceForTest(engine, &readerStub{}, SubstitutionServiceConfig{})
	worker := NewRunWorker(svc, 2, zap.NewNop())
	job := queuedJob(svc, "2024-01-01")
	job.Payload = "2024-01-01"

	require.NoError(t, worker.Handle(context.Background(), job))
	stored, _ := svc.Job(context.Background(), job.ID)
	assert.Equal(t, models.RunJobFailed, stored.Status)
	assert.Empty(t, engine.requests)
}

func TestRunJobRegistryEvictsOldest(t *testing.T) {
	registry := NewRunJobRegistry()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	registry.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < maxTrackedRuns+5; i++ {
		registry.Create(fmt.Sprintf("job-%03d", i), dto.RunSubstitutionRequest{Date: "2024-01-01"})
	}

	_, err := registry.Get("job-000")
	require.Error(t, err)
	listed := registry.List()
	require.Len(t, listed, maxTrackedRuns)
	assert.Equal(t, fmt.Sprintf("job-%03d", maxTrackedRuns+4), listed[0].ID)
}

func TestRunJobRegistryReturnsCopies(t *testing.T) {
	registry := NewRunJobRegistry()
	job := registry.Create("job-1", dto.RunSubstitutionRequest{Date: "2024-01-01", Absentees: []string{"Carol"}})
	job.Absentees[0] = "mutated"

	stored, err := registry.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, stored.Absentees)
}

func TestQueueDrivesRunWorker(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{results: []*substitution.Result{sampleResult()}}, &readerStub{}, SubstitutionServiceConfig{})
	worker := NewRunWorker(svc, 1, zap.NewNop())
	queue := jobs.NewQueue("runs", worker.Handle, jobs.QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: 10 * time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.SetQueue(queue)

	job, err := svc.RunAsync(context.Background(), dto.RunSubstitutionRequest{Date: "2024-01-01"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := svc.Job(context.Background(), job.ID)
		return err == nil && stored.Status == models.RunJobFinished
	}, time.Second, 10*time.Millisecond)
}
