package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The scope label distinguishes the read and write budgets.
var (
	rlHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by rate limiting",
		},
		[]string{"scope"},
	)

	rlFailOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scimgate",
			Name:      "rate_limit_fail_open_total",
			Help:      "Requests allowed despite Redis being unavailable",
		},
		[]string{"scope"},
	)
)
