package api

import (
	"context"
	"errors"
	"net/http"

	"funnel-health/pkg/calculator"
	"funnel-health/pkg/models"

	"github.com/gin-gonic/gin"
)

// CohortsHandler returns the funnel report of an experience.
//
// GET /analytics/cohorts?experienceId=<id>&rangeDays=<days>
func (s *server) CohortsHandler(c *gin.Context) {
	experienceID := c.Query("experienceId")
	if experienceID == "" {
		experienceID = c.Query("experience_id")
	}
	if experienceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "experienceId is required"})
		return
	}
	var rangeDays float64 // zero when absent: the report default applies
	if raw, ok := c.GetQuery("rangeDays"); ok {
		rangeDays = float64(calculator.ParseRangeDays(raw))
	}
	logCtx := logContext(c).WithField("experience_id", experienceID)

	ctx := c.Request.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	funnel, err := s.funnels.Get(ctx, experienceID)
	if errors.Is(err, models.ErrFunnelNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
		return
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed loading funnel.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed loading funnel."})
		return
	}

	report, err := calculator.ComputeFunnelReport(ctx, s.ledger, *funnel, models.ReportConfig{
		RangeDays:   rangeDays,
		Now:         s.now(),
		Concurrency: s.opts.Concurrency,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		logCtx.WithError(err).Error("Cohorts failed.")
		c.AbortWithStatusJSON(status, gin.H{"error": "Cohorts failed."})
		return
	}
	c.JSON(http.StatusOK, report)
}
