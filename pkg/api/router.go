package api

import (
	"context"
	"net/http"
	"time"

	"funnel-health/pkg/calculator"
	"funnel-health/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FunnelStore persists funnel definitions, keyed by experience.
type FunnelStore interface {
	Get(ctx context.Context, experienceID string) (*models.Funnel, error)
	Upsert(ctx context.Context, f models.Funnel) (*models.Funnel, error)
	Delete(ctx context.Context, experienceID string) (bool, error)
}

// Options tune request handling.
type Options struct {
	Concurrency    int
	RequestTimeout time.Duration
}

type server struct {
	funnels FunnelStore
	ledger  calculator.Ledger
	opts    Options
	now     func() time.Time
}

// NewRouter wires the analytics and funnel routes.
func NewRouter(funnels FunnelStore, ledger calculator.Ledger, opts Options) *gin.Engine {
	return newRouter(&server{funnels: funnels, ledger: ledger, opts: opts, now: time.Now})
}

func newRouter(s *server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	analytics := r.Group("/analytics")
	analytics.GET("/cohorts", s.CohortsHandler)

	funnels := r.Group("/funnels")
	funnels.GET("/:experienceId", s.GetFunnelHandler)
	funnels.POST("", s.UpsertFunnelHandler)
	funnels.DELETE("/:experienceId", s.DeleteFunnelHandler)

	return r
}
