package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type substitutionServiceMock struct {
	runReq      dto.RunSubstitutionRequest
	runResult   *substitution.Result
	runErr      error
	job         *models.RunJob
	jobErr      error
	assignments *dto.AssignmentsResponse
	logs        []models.ProcessLogEntry
	warnings    []string
	resetErr    error
	resetDate   string
}

func (m *substitutionServiceMock) Run(ctx context.Context, req dto.RunSubstitutionRequest) (*substitution.Result, error) {
	m.runReq = req
	return m.runResult, m.runErr
}

func (m *substitutionServiceMock) RunAsync(ctx context.Context, req dto.RunSubstitutionRequest) (*models.RunJob, error) {
	m.runReq = req
	return m.job, m.jobErr
}

func (m *substitutionServiceMock) Job(ctx context.Context, id string) (*models.RunJob, error) {
	if m.job == nil || m.job.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run job not found")
	}
	return m.job, nil
}

func (m *substitutionServiceMock) Assignments(ctx context.Context, date string) (*dto.AssignmentsResponse, error) {
	return m.assignments, nil
}

func (m *substitutionServiceMock) Logs(ctx context.Context, date string) ([]models.ProcessLogEntry, error) {
	return m.logs, nil
}

func (m *substitutionServiceMock) Warnings(ctx context.Context, date string) ([]string, error) {
	return m.warnings, nil
}

func (m *substitutionServiceMock) Reset(ctx context.Context, date string) error {
	m.resetDate = date
	return m.resetErr
}

type exportServiceMock struct {
	format string
}

func (m *exportServiceMock) Export(ctx context.Context, date, format string) (*service.ExportResult, error) {
	m.format = format
	return &service.ExportResult{Filename: "substitutes-" + date + ".csv", ContentType: "text/csv", Data: []byte("Period\n")}, nil
}

type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	switch token {
	case "admin":
		return &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, nil
	case "teacher":
		return &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type absenceServiceMock struct {
	req  dto.RecordAbsenceRequest
	list []models.Absentee
}

func (m *absenceServiceMock) RecordAbsence(ctx context.Context, req dto.RecordAbsenceRequest) (*dto.AbsenceResponse, error) {
	m.req = req
	return &dto.AbsenceResponse{Date: req.Date, Absentee: models.Absentee{Name: req.TeacherName}, Matched: req.TeacherName, Score: 1}, nil
}

func (m *absenceServiceMock) ListAbsences(ctx context.Context, date string) ([]models.Absentee, error) {
	return m.list, nil
}

func newTestRouter(subs *substitutionServiceMock, absences *absenceServiceMock, exporter *exportServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Routes{
		Substitutions: NewSubstitutionHandler(subs, exporter),
		Attendance:    NewAttendanceHandler(absences),
		Metrics:       NewMetricsHandler(service.NewMetricsService(), nil),
		Tokens:        tokenStub{},
		Logger:        zap.NewNop(),
	}.Register(r.Group("/api/v1"))
	return r
}

func perform(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSubstitutionHandlerRun(t *testing.T) {
	subs := &substitutionServiceMock{runResult: &substitution.Result{
		RunID:       "run-1",
		Date:        "2024-01-01",
		Status:      substitution.RunCompleted,
		Assignments: []models.Assignment{{Period: 1, ClassName: "8A", Substitute: "Bob Brown"}},
	}}
	r := newTestRouter(subs, &absenceServiceMock{}, &exportServiceMock{})

	w := perform(r, http.MethodPost, "/api/v1/substitutions/run", "admin", dto.RunSubstitutionRequest{Date: "2024-01-01", Absentees: []string{"Carol"}})
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "completed", env.Meta["status"])

	var result substitution.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []string{"Carol"}, subs.runReq.Absentees)
}

func TestSubstitutionHandlerRunFailedStatus(t *testing.T) {
	subs := &substitutionServiceMock{runResult: &substitution.Result{Status: substitution.RunFailed}}
	r := newTestRouter(subs, &absenceServiceMock{}, &exportServiceMock{})

	w := perform(r, http.MethodPost, "/api/v1/substitutions/run", "admin", dto.RunSubstitutionRequest{Date: "2024-01-01"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubstitutionHandlerRunRequiresOperator(t *testing.T) {
	r := newTestRouter(&substitutionServiceMock{}, &absenceServiceMock{}, &exportServiceMock{})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/api/v1/substitutions/run", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodPost, "/api/v1/substitutions/run", "teacher", nil).Code)
}

func TestSubstitutionHandlerRunRejectsBadJSON(t *testing.T) {
	r := newTestRouter(&substitutionServiceMock{}, &absenceServiceMock{}, &exportServiceMock{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/substitutions/run", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestSubstitutionHandlerRunAsyncAndPoll(t *testing.T) {
	subs := &substitutionServiceMock{job: &models.RunJob{ID: "job-1", Date: "2024-01-01", Status: models.RunJobQueued, EnqueuedAt: time.Now()}}
	r := newTestRouter(subs, &absenceServiceMock{}, &exportServiceMock{})

	w := perform(r, http.MethodPost, "/api/v1/substitutions/run/async", "admin", dto.RunSubstitutionRequest{Date: "2024-01-01"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = perform(r, http.MethodGet, "/api/v1/runs/job-1", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job models.RunJob
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))
	assert.Equal(t, models.RunJobQueued, job.Status)

	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/api/v1/runs/other", "teacher", nil).Code)
}

func TestSubstitutionHandlerReads(t *testing.T) {
	subs := &substitutionServiceMock{
		assignments: &dto.AssignmentsResponse{Date: "2024-01-01", Assignments: []models.Assignment{{Period: 1, ClassName: "8A"}}, Warnings: []string{}},
		logs:        []models.ProcessLogEntry{{Action: substitution.ActionRunStarted}},
		warnings:    []string{"No substitute available for 10A period 3"},
	}
	r := newTestRouter(subs, &absenceServiceMock{}, &exportServiceMock{})

	w := perform(r, http.MethodGet, "/api/v1/substitutions/2024-01-01", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Meta["count"])

	w = perform(r, http.MethodGet, "/api/v1/substitutions/2024-01-01/logs", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/api/v1/substitutions/2024-01-01/warnings", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var warnings []string
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &warnings))
	assert.Len(t, warnings, 1)
}

func TestSubstitutionHandlerExport(t *testing.T) {
	exporter := &exportServiceMock{}
	r := newTestRouter(&substitutionServiceMock{}, &absenceServiceMock{}, exporter)

	w := perform(r, http.MethodGet, "/api/v1/substitutions/2024-01-01/export?format=pdf", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf", exporter.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "substitutes-2024-01-01.csv")

	w = perform(r, http.MethodGet, "/api/v1/substitutions/2024-01-01/export?format=xlsx", "teacher", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerReset(t *testing.T) {
	subs := &substitutionServiceMock{}
	r := newTestRouter(subs, &absenceServiceMock{}, &exportServiceMock{})

	w := perform(r, http.MethodDelete, "/api/v1/substitutions/2024-01-01", "admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "2024-01-01", subs.resetDate)

	subs.resetErr = appErrors.ErrRunInProgress
	w = perform(r, http.MethodDelete, "/api/v1/substitutions/2024-01-01", "admin", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RUN_IN_PROGRESS", decode(t, w).Error.Code)
}

func TestAttendanceHandler(t *testing.T) {
	absences := &absenceServiceMock{list: []models.Absentee{{Name: "Carol Clark"}}}
	r := newTestRouter(&substitutionServiceMock{}, absences, &exportServiceMock{})

	w := perform(r, http.MethodPost, "/api/v1/absences", "teacher", dto.RecordAbsenceRequest{TeacherName: "Carol Clark", Date: "2024-01-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Carol Clark", absences.req.TeacherName)

	w = perform(r, http.MethodGet, "/api/v1/absences/2024-01-01", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Meta["count"])
}
