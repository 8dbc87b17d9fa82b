package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

// Job type of queued substitution runs.
const RunJobType = "substitution_run"

type substitutionEngine interface {
	Run(ctx context.Context, req substitution.RunRequest) *substitution.Result
	Reset(ctx context.Context, date string) error
}

type substitutionReader interface {
	LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error)
	LoadLogs(ctx context.Context, date string) ([]models.ProcessLogEntry, error)
	LoadWarnings(ctx context.Context, date string) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SubstitutionService exposes engine runs and the committed state of a date.
type SubstitutionService struct {
	engine    substitutionEngine
	store     substitutionReader
	cache     *CacheService
	metrics   *MetricsService
	runs      *RunJobRegistry
	queue     jobDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// SubstitutionServiceConfig groups optional collaborators.
type SubstitutionServiceConfig struct {
	Cache    *CacheService
	Metrics  *MetricsService
	Runs     *RunJobRegistry
	Queue    jobDispatcher
	CacheTTL time.Duration
}

// NewSubstitutionService constructs the service.
func NewSubstitutionService(engine substitutionEngine, store substitutionReader, validate *validator.Validate, logger *zap.Logger, cfg SubstitutionServiceConfig) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Runs == nil {
		cfg.Runs = NewRunJobRegistry()
	}
	return &SubstitutionService{
		engine:    engine,
		store:     store,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		runs:      cfg.Runs,
		queue:     cfg.Queue,
		validator: validate,
		logger:    logger,
		cacheTTL:  cfg.CacheTTL,
	}
}

// SetQueue attaches the dispatcher used by RunAsync.
func (s *SubstitutionService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

func (s *SubstitutionService) validateRun(req dto.RunSubstitutionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return nil
}

// Run executes a run synchronously. Runs for the same date queue behind each other.
func (s *SubstitutionService) Run(ctx context.Context, req dto.RunSubstitutionRequest) (*substitution.Result, error) {
	if err := s.validateRun(req); err != nil {
		return nil, err
	}
	return s.execute(ctx, req, "api"), nil
}

func (s *SubstitutionService) execute(ctx context.Context, req dto.RunSubstitutionRequest, trigger string) *substitution.Result {
	result := s.engine.Run(ctx, substitution.RunRequest{Date: req.Date, Absentees: req.Absentees})
	s.observe(result, trigger)
	if result.Status != substitution.RunAbandoned && result.Status != substitution.RunFailed {
		s.cache.InvalidateDate(ctx, req.Date)
	}
	s.logger.Info("substitution run finished",
		zap.String("run_id", result.RunID),
		zap.String("date", result.Date),
		zap.String("status", string(result.Status)),
		zap.String("trigger", trigger),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("unfilled", len(result.Unfilled)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (s *SubstitutionService) observe(result *substitution.Result, trigger string) {
	stats := RunStats{
		Status:   string(result.Status),
		Trigger:  trigger,
		Duration: result.Duration,
		Unfilled: len(result.Unfilled),
		Warnings: make(map[string]int, len(result.WarningKinds)),
	}
	for _, a := range result.Assignments {
		if a.Fallback {
			stats.Fallback++
		} else {
			stats.Primary++
		}
	}
	for kind, count := range result.WarningKinds {
		stats.Warnings[string(kind)] = count
	}
	s.metrics.ObserveRun(stats)
}

// RunAsync queues a run and returns its job for polling.
func (s *SubstitutionService) RunAsync(ctx context.Context, req dto.RunSubstitutionRequest) (*models.RunJob, error) {
	if err := s.validateRun(req); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "background runs are disabled")
	}

	job := s.runs.Create(uuid.NewString(), req)
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: RunJobType, Payload: req}); err != nil {
		s.runs.Fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue substitution run")
	}
	return s.runs.Get(job.ID)
}

// Job returns the state of a queued run.
func (s *SubstitutionService) Job(ctx context.Context, id string) (*models.RunJob, error) {
	return s.runs.Get(id)
}

// Assignments returns the committed assignments of date.
func (s *SubstitutionService) Assignments(ctx context.Context, date string) (*dto.AssignmentsResponse, error) {
	if _, err := substitution.DayOf(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	key := DateKey("assignments", date)
	var cached dto.AssignmentsResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	set, err := s.store.LoadCommitted(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	resp := &dto.AssignmentsResponse{Date: date, Assignments: []models.Assignment{}, Warnings: []string{}}
	if set != nil {
		if set.Assignments != nil {
			resp.Assignments = set.Assignments
		}
		if set.Warnings != nil {
			resp.Warnings = set.Warnings
		}
	}
	_ = s.cache.Set(ctx, key, resp, s.cacheTTL)
	return resp, nil
}

// Logs returns the process log of the latest run of date.
func (s *SubstitutionService) Logs(ctx context.Context, date string) ([]models.ProcessLogEntry, error) {
	if _, err := substitution.DayOf(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	entries, err := s.store.LoadLogs(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load process log")
	}
	if entries == nil {
		entries = []models.ProcessLogEntry{}
	}
	return entries, nil
}

// Warnings returns the warnings of the latest run of date.
func (s *SubstitutionService) Warnings(ctx context.Context, date string) ([]string, error) {
	if _, err := substitution.DayOf(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	warnings, err := s.store.LoadWarnings(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load warnings")
	}
	if warnings == nil {
		warnings = []string{}
	}
	return warnings, nil
}

// Reset clears the committed assignments of date so it can be recomputed.
func (s *SubstitutionService) Reset(ctx context.Context, date string) error {
	if _, err := substitution.DayOf(date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.engine.Reset(ctx, date); err != nil {
		if errors.Is(err, substitution.ErrRunInProgress) {
			return appErrors.ErrRunInProgress
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset assignments")
	}
	s.cache.InvalidateDate(ctx, date)
	s.logger.Info("substitution assignments reset", zap.String("date", date))
	return nil
}

// Summarize condenses a result.
func Summarize(result *substitution.Result) *models.RunSummary {
	kinds := make(map[string]int, len(result.WarningKinds))
	for kind, count := range result.WarningKinds {
		kinds[string(kind)] = count
	}
	return &models.RunSummary{
		RunID:       result.RunID,
		Date:        result.Date,
		Day:         result.Day,
		Status:      string(result.Status),
		Assignments: len(result.Assignments),
		Unfilled:    len(result.Unfilled),
		Warnings:    len(result.Warnings),
		Kinds:       kinds,
		DurationMs:  result.Duration.Milliseconds(),
	}
}
