package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type substitutionService interface {
	Run(ctx context.Context, req dto.RunSubstitutionRequest) (*substitution.Result, error)
	RunAsync(ctx context.Context, req dto.RunSubstitutionRequest) (*models.RunJob, error)
	Job(ctx context.Context, id string) (*models.RunJob, error)
	Assignments(ctx context.Context, date string) (*dto.AssignmentsResponse, error)
	Logs(ctx context.Context, date string) ([]models.ProcessLogEntry, error)
	Warnings(ctx context.Context, date string) ([]string, error)
	Reset(ctx context.Context, date string) error
}

type exportService interface {
	Export(ctx context.Context, date, format string) (*service.ExportResult, error)
}

// SubstitutionHandler exposes substitution runs and their results.
type SubstitutionHandler struct {
	service  substitutionService
	exporter exportService
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(svc substitutionService, exporter exportService) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc, exporter: exporter}
}

// Run godoc
// @Summary Run substitute assignment
// @Description Assigns substitutes for every period vacated by the absentees of a date. Without absentees the recorded absences are used.
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.RunSubstitutionRequest true "Run request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /substitutions/run [post]
func (h *SubstitutionHandler) Run(c *gin.Context) {
	var req dto.RunSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	switch result.Status {
	case substitution.RunFailed:
		status = http.StatusUnprocessableEntity
	case substitution.RunAbandoned:
		status = http.StatusServiceUnavailable
	}
	response.JSON(c, status, result, map[string]interface{}{"status": result.Status})
}

// RunAsync godoc
// @Summary Queue substitute assignment
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.RunSubstitutionRequest true "Run request"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /substitutions/run/async [post]
func (h *SubstitutionHandler) RunAsync(c *gin.Context) {
	var req dto.RunSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	job, err := h.service.RunAsync(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Job godoc
// @Summary Queued run status
// @Tags Substitutions
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *SubstitutionHandler) Job(c *gin.Context) {
	job, err := h.service.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Assignments godoc
// @Summary Committed assignments of a date
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date} [get]
func (h *SubstitutionHandler) Assignments(c *gin.Context) {
	resp, err := h.service.Assignments(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, map[string]interface{}{"count": len(resp.Assignments)})
}

// Logs godoc
// @Summary Process log of the latest run
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date}/logs [get]
func (h *SubstitutionHandler) Logs(c *gin.Context) {
	entries, err := h.service.Logs(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// Warnings godoc
// @Summary Warnings of the latest run
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date}/warnings [get]
func (h *SubstitutionHandler) Warnings(c *gin.Context) {
	warnings, err := h.service.Warnings(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, warnings)
}

// Export godoc
// @Summary Download the substitution sheet of a date
// @Tags Substitutions
// @Produce text/csv
// @Produce application/pdf
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /substitutions/{date}/export [get]
func (h *SubstitutionHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query"))
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), c.Param("date"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Reset godoc
// @Summary Clear committed assignments of a date
// @Tags Substitutions
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /substitutions/{date} [delete]
func (h *SubstitutionHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context(), c.Param("date")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
