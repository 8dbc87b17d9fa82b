package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

type engineStub struct {
	mu       sync.Mutex
	requests []substitution.RunRequest
	results  []*substitution.Result
	running  map[string]bool
	resets   []string
	resetErr error
}

func (e *engineStub) Run(ctx context.Context, req substitution.RunRequest) *substitution.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if len(e.results) == 0 {
		return &substitution.Result{Date: req.Date, Status: substitution.RunCompleted}
	}
	res := e.results[0]
	if len(e.results) > 1 {
		e.results = e.results[1:]
	}
	res.Date = req.Date
	return res
}

func (e *engineStub) Reset(ctx context.Context, date string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[date] {
		return substitution.ErrRunInProgress
	}
	if e.resetErr != nil {
		return e.resetErr
	}
	e.resets = append(e.resets, date)
	return nil
}

type readerStub struct {
	committed  *models.CommittedSet
	logs       []models.ProcessLogEntry
	warnings   []string
	loadCalls int
	err       error
}

func (r *readerStub) LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error) {
	r.loadCalls++
	return r.committed, r.err
}

func (r *readerStub) LoadLogs(ctx context.Context, date string) ([]models.ProcessLogEntry, error) {
	return r.logs, r.err
}

func (r *readerStub) LoadWarnings(ctx context.Context, date string) ([]string, error) {
	return r.warnings, r.err
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func sampleResult() *substitution.Result {
	return &substitution.Result{
		RunID:  "run-1",
		Day:    "monday",
		Status: substitution.RunPartial,
		Assignments: []models.Assignment{
			{OriginalTeacher: "Carol Clark", Period: 1, ClassName: "8A", Substitute: "Bob Brown", SubstitutePhone: "222"},
			{OriginalTeacher: "Carol Clark", Period: 2, ClassName: "8B", Substitute: "Alice Adams", SubstitutePhone: "111", Fallback: true},
		},
		Unfilled:     []models.Slot{{Day: "monday", Period: 3, ClassName: "10A"}},
		Warnings:     []string{"No substitute available for 10A period 3"},
		WarningKinds: map[substitution.Kind]int{substitution.KindNoCandidate: 1, substitution.KindFallback: 1},
		Duration:     120 * time.Millisecond,
	}
}

func newSubstitutionServiceForTest(engine *engineStub, reader *readerStub, cfg SubstitutionServiceConfig) *SubstitutionService {
	return NewSubstitutionService(engine, reader, nil, zap.NewNop(), cfg)
}

func TestSubstitutionServiceRunValidatesDate(t *testing.T) {
	engine := &engineStub{}
	svc := newSubstitutionServiceForTest(engine, &readerStub{}, SubstitutionServiceConfig{})

	_, err := svc.Run(context.Background(), dto.RunSubstitutionRequest{Date: "01-01-2024"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, engine.requests)

	_, err = svc.Run(context.Background(), dto.RunSubstitutionRequest{Date: "2024-01-01", Absentees: []string{""}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubstitutionServiceRunRecordsMetrics(t *testing.T) {
	engine := &engineStub{results: []*substitution.Result{sampleResult()}}
	metrics := NewMetricsService()
	svc := newSubstitutionServiceForTest(engine, &readerStub{}, SubstitutionServiceConfig{Metrics: metrics})

	res, err := svc.Run(context.Background(), dto.RunSubstitutionRequest{Date: "2024-01-01", Absentees: []string{"Carol Clark"}})
	require.NoError(t, err)
	assert.Equal(t, substitution.RunPartial, res.Status)
	require.Len(t, engine.requests, 1)
	assert.Equal(t, []string{"Carol Clark"}, engine.requests[0].Absentees)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RunsTotal)
	assert.Equal(t, uint64(2), snapshot.AssignmentsTotal)
	assert.Equal(t, uint64(2), snapshot.WarningsTotal)
}

func TestSubstitutionServiceAssignmentsCacheAside(t *testing.T) {
	reader := &readerStub{committed: &models.CommittedSet{
		Assignments: []models.Assignment{{Period: 1, ClassName: "8A", Substitute: "Bob Brown"}},
	}}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := newSubstitutionServiceForTest(&engineStub{}, reader, SubstitutionServiceConfig{Cache: cache})
	ctx := context.Background()

	first, err := svc.Assignments(ctx, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, first.Assignments, 1)
	assert.Equal(t, []string{}, first.Warnings)

	second, err := svc.Assignments(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reader.loadCalls)

	_, err = svc.Run(ctx, dto.RunSubstitutionRequest{Date: "2024-01-01"})
	require.NoError(t, err)
	_, err = svc.Assignments(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.loadCalls)
}

func TestSubstitutionServiceAssignmentsEmptyDate(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{}, &readerStub{}, SubstitutionServiceConfig{})

	resp, err := svc.Assignments(context.Background(), "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", resp.Date)
	assert.NotNil(t, resp.Assignments)
	assert.Empty(t, resp.Assignments)

	_, err = svc.Assignments(context.Background(), "yesterday")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubstitutionServiceLogsAndWarnings(t *testing.T) {
	reader := &readerStub{logs: []models.ProcessLogEntry{{Action: substitution.ActionRunStarted}}}
	svc := newSubstitutionServiceForTest(&engineStub{}, reader, SubstitutionServiceConfig{})

	logs, err := svc.Logs(context.Background(), "2024-01-01")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	warnings, err := svc.Warnings(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, []string{}, warnings)

	reader.err = errors.New("disk gone")
	_, err = svc.Logs(context.Background(), "2024-01-01")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestSubstitutionServiceReset(t *testing.T) {
	engine := &engineStub{running: map[string]bool{"2024-01-01": true}}
	reader := &readerStub{}
	svc := newSubstitutionServiceForTest(engine, reader, SubstitutionServiceConfig{})

	err := svc.Reset(context.Background(), "2024-01-01")
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))
	assert.Empty(t, engine.resets)

	require.NoError(t, svc.Reset(context.Background(), "2024-01-02"))
	assert.Equal(t, []string{"2024-01-02"}, engine.resets)

	engine.resetErr = errors.New("disk gone")
	err = svc.Reset(context.Background(), "2024-01-03")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	err = svc.Reset(context.Background(), "03/01/2024")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubstitutionServiceRunAsync(t *testing.T) {
	svc := newSubstitutionServiceForTest(&engineStub{}, &readerStub{}, SubstitutionServiceConfig{})
	req := dto.RunSubstitutionRequest{Date: "2024-01-01"}

	_, err := svc.RunAsync(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))

	dispatcher := &dispatcherStub{}
	svc.SetQueue(dispatcher)
	job, err := svc.RunAsync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.RunJobQueued, job.Status)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, job.ID, dispatcher.jobs[0].ID)
	assert.Equal(t, RunJobType, dispatcher.jobs[0].Type)
	assert.Equal(t, req, dispatcher.jobs[0].Payload)

	polled, err := svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, polled.ID)

	_, err = svc.Job(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubstitutionServiceRunAsyncEnqueueFailure(t *testing.T) {
	runs := NewRunJobRegistry()
	svc := newSubstitutionServiceForTest(&engineStub{}, &readerStub{}, SubstitutionServiceConfig{
		Runs:  runs,
		Queue: &dispatcherStub{err: errors.New("queue stopped")},
	})

	_, err := svc.RunAsync(context.Background(), dto.RunSubstitutionRequest{Date: "2024-01-01"})
	require.Error(t, err)
	listed := runs.List()
	require.Len(t, listed, 1)
	assert.Equal(t, models.RunJobFailed, listed[0].Status)
}

func TestSummarize(t *testing.T) {
	res := sampleResult()
	res.Date = "2024-01-01"
	summary := Summarize(res)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "partial", summary.Status)
	assert.Equal(t, 2, summary.Assignments)
	assert.Equal(t, 1, summary.Unfilled)
	assert.Equal(t, 1, summary.Kinds["no_candidate"])
	assert.Equal(t, int64(120), summary.DurationMs)
}
