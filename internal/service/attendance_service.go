package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type absenceStore interface {
	LoadRoster(ctx context.Context) ([]models.RosterEntry, error)
	LoadAbsentees(ctx context.Context, date string) ([]models.Absentee, error)
	AddAbsentee(ctx context.Context, date string, absentee models.Absentee) error
}

// AttendanceOptions configures roster matching of reported absences.
type AttendanceOptions struct {
	Matcher   substitution.Matcher
	Threshold float64
	Clock     func() time.Time
}

// AttendanceService records teacher absences ahead of a run.
type AttendanceService struct {
	store     absenceStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	opts      AttendanceOptions
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(store absenceStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, opts AttendanceOptions) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AttendanceService{store: store, cache: cache, validator: validate, logger: logger, opts: opts}
}

// RecordAbsence stores an absence. The name is matched against the roster to
// fill in a missing phone number; unknown names are still recorded so the run
// can report them.
func (s *AttendanceService) RecordAbsence(ctx context.Context, req dto.RecordAbsenceRequest) (*dto.AbsenceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	name := strings.TrimSpace(req.TeacherName)
	if substitution.NormalizeName(name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher name has no usable characters")
	}

	roster, err := s.store.LoadRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	dir := substitution.NewDirectory(roster, substitution.DirectoryOptions{Matcher: s.opts.Matcher, Threshold: s.opts.Threshold})

	absentee := models.Absentee{
		Name:        name,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Timestamp:   s.opts.Clock().UTC(),
	}
	resp := &dto.AbsenceResponse{Date: req.Date}

	teacher, match, ok := dir.Resolve(name)
	if !ok && absentee.PhoneNumber != "" {
		teacher, ok = dir.ByPhone(absentee.PhoneNumber)
	}
	if ok {
		resp.Matched = teacher.CanonicalName
		resp.Score = match.Score
		if absentee.PhoneNumber == "" {
			absentee.PhoneNumber = teacher.Phone
		}
	} else {
		resp.Warning = fmt.Sprintf("%q does not match any roster teacher", name)
		s.logger.Warn("absence recorded for unknown teacher", zap.String("name", name), zap.String("date", req.Date), zap.Float64("best_score", match.Score))
	}

	if err := s.store.AddAbsentee(ctx, req.Date, absentee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record absence")
	}
	s.cache.InvalidateDate(ctx, req.Date)
	resp.Absentee = absentee
	return resp, nil
}

// ListAbsences returns the absences recorded for date.
func (s *AttendanceService) ListAbsences(ctx context.Context, date string) ([]models.Absentee, error) {
	if _, err := substitution.DayOf(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	absentees, err := s.store.LoadAbsentees(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}
	if absentees == nil {
		absentees = []models.Absentee{}
	}
	return absentees, nil
}
