package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type attendanceService interface {
	RecordAbsence(ctx context.Context, req dto.RecordAbsenceRequest) (*dto.AbsenceResponse, error)
	ListAbsences(ctx context.Context, date string) ([]models.Absentee, error)
}

// AttendanceHandler records teacher absences.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Record a teacher absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.RecordAbsenceRequest true "Absence"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /absences [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req dto.RecordAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	resp, err := h.service.RecordAbsence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// List godoc
// @Summary Absences recorded for a date
// @Tags Absences
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /absences/{date} [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	absentees, err := h.service.ListAbsences(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absentees, map[string]interface{}{"count": len(absentees)})
}
