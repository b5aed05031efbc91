package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digital_human_stage_requests_total",
			Help: "Total number of accepted stage requests.",
		},
		[]string{"stage"},
	)

	stageResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digital_human_stage_results_total",
			Help: "Total number of finished background stage jobs by status.",
		},
		[]string{"stage", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digital_human_stage_duration_seconds",
			Help:    "Duration of background stage jobs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	feeUSDTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digital_human_fee_usd_total",
			Help: "Total fee charged by stage in USD.",
		},
		[]string{"stage"},
	)
)
