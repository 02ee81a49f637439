package calculator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_reports_total",
		Help: "Funnel reports computed, by outcome.",
	}, []string{"outcome"})

	reportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funnel_report_duration_seconds",
		Help:    "Time spent computing one funnel report.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	ledgerReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_ledger_read_errors_total",
		Help: "Failed ledger reads, by operation.",
	}, []string{"op"})
)
