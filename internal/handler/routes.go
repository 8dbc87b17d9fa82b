package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Substitutions *SubstitutionHandler
	Attendance    *AttendanceHandler
	Metrics       *MetricsHandler
	Tokens        middleware.TokenValidator
	Logger        *zap.Logger
}

// Register mounts every API route on group. Reads need any valid token;
// runs and resets need an admin or staff role.
func (rt Routes) Register(group *gin.RouterGroup) {
	authed := group.Group("")
	authed.Use(middleware.JWT(rt.Tokens))

	operators := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	subs := authed.Group("/substitutions")
	subs.GET("/:date", rt.Substitutions.Assignments)
	subs.GET("/:date/logs", rt.Substitutions.Logs)
	subs.GET("/:date/warnings", rt.Substitutions.Warnings)
	subs.GET("/:date/export", rt.Substitutions.Export)
	subs.POST("/run", operators, middleware.Audit(rt.Logger, "substitution.run"), rt.Substitutions.Run)
	subs.POST("/run/async", operators, middleware.Audit(rt.Logger, "substitution.run_async"), rt.Substitutions.RunAsync)
	subs.DELETE("/:date", operators, middleware.Audit(rt.Logger, "substitution.reset"), rt.Substitutions.Reset)

	authed.GET("/runs/:id", rt.Substitutions.Job)

	absences := authed.Group("/absences")
	absences.POST("", middleware.Audit(rt.Logger, "absence.record"), rt.Attendance.Record)
	absences.GET("/:date", rt.Attendance.List)

	authed.GET("/metrics/summary", operators, rt.Metrics.Summary)
}
