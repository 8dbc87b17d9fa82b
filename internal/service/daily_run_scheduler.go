package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
)

type dailyRunner interface {
	execute(ctx context.Context, req dto.RunSubstitutionRequest, trigger string) *substitution.Result
}

// DailyRunScheduler triggers a run for today's recorded absences on a cron
// schedule evaluated in the school's timezone.
type DailyRunScheduler struct {
	cron    *cron.Cron
	runner  dailyRunner
	spec    string
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewDailyRunScheduler constructs a scheduler; Start registers the job.
func NewDailyRunScheduler(svc *SubstitutionService, spec string, loc *time.Location, logger *zap.Logger) *DailyRunScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyRunScheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		runner:  svc,
		spec:    spec,
		loc:     loc,
		timeout: 5 * time.Minute,
		now:     time.Now,
		logger:  logger,
	}
}

// Start registers the daily job and starts the cron engine.
func (s *DailyRunScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunToday(context.Background()) }); err != nil {
		return fmt.Errorf("register daily run %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("daily substitution run scheduled", zap.String("cron", s.spec), zap.String("timezone", s.loc.String()))
	return nil
}

// Stop waits for a running job to return.
func (s *DailyRunScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("daily substitution run scheduler stopped")
}

// RunToday executes a run for the current date using the persisted absentees.
func (s *DailyRunScheduler) RunToday(ctx context.Context) *substitution.Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	date := s.now().In(s.loc).Format("2006-01-02")
	s.logger.Info("daily substitution run triggered", zap.String("date", date))
	return s.runner.execute(ctx, dto.RunSubstitutionRequest{Date: date}, "schedule")
}
