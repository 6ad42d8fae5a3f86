package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FunnelRequests counts funnel page entries by state and outcome.
	FunnelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_requests_total",
		Help: "Funnel requests by step and outcome.",
	}, []string{"step", "outcome"})

	// BeaconEvents counts accepted analytics beacon events by type.
	BeaconEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_beacon_events_total",
		Help: "Accepted analytics beacon events by type.",
	}, []string{"type"})

	// RecommendationCache counts recommendation cache lookups.
	RecommendationCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_cache_lookups_total",
		Help: "Recommendation cache lookups by result.",
	}, []string{"result"})
)
