package api

import (
	"errors"
	"net/http"

	"funnel-health/pkg/funnels"
	"funnel-health/pkg/models"

	"github.com/gin-gonic/gin"
)

func (s *server) GetFunnelHandler(c *gin.Context) {
	experienceID := c.Param("experienceId")
	f, err := s.funnels.Get(c.Request.Context(), experienceID)
	if errors.Is(err, models.ErrFunnelNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
		return
	}
	if err != nil {
		logContext(c).WithError(err).Error("Failed getting funnel.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed getting funnel."})
		return
	}
	c.JSON(http.StatusOK, f)
}

// UpsertFunnelHandler creates or replaces the funnel of the posted experience_id.
func (s *server) UpsertFunnelHandler(c *gin.Context) {
	var payload models.Funnel
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel payload."})
		return
	}
	payload = funnels.Normalize(payload)
	if err := funnels.Validate(payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := s.funnels.Upsert(c.Request.Context(), payload)
	if err != nil {
		logContext(c).WithError(err).Error("Failed saving funnel.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed saving funnel."})
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *server) DeleteFunnelHandler(c *gin.Context) {
	experienceID := c.Param("experienceId")
	existed, err := s.funnels.Delete(c.Request.Context(), experienceID)
	if err != nil {
		logContext(c).WithError(err).Error("Failed deleting funnel.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed deleting funnel."})
		return
	}
	logContext(c).WithField("experience_id", experienceID).WithField("existed", existed).Info("Deleted funnel.")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
