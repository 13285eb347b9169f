// Package metrics 定义 Prometheus 指标，通过 /metrics 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageFetches 分页拉取结果 (outcome: success, failure, stale)
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_page_fetches_total",
			Help: "Paginated feed fetches by outcome",
		},
		[]string{"outcome"},
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_fetch_retries_total",
			Help: "Retries issued for transient feed fetch failures",
		},
	)

	// VoteToggles 投票结果 (outcome: committed, rolled_back)
	VoteToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_vote_toggles_total",
			Help: "Optimistic vote toggles by outcome",
		},
		[]string{"outcome"},
	)

	Personalization = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_personalization_results_total",
			Help: "Inspiration results by reason",
		},
		[]string{"reason"},
	)

	// ResolverFailOpen 降级次数 (resolver: blocklist, trip_context, tags, popular)
	ResolverFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_resolver_fail_open_total",
			Help: "Advisory resolver failures absorbed by fail-open degradation",
		},
		[]string{"resolver"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests (outcome: success, failure, rejected)
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_circuit_breaker_requests_total",
			Help: "Store calls through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_sessions_active",
			Help: "Feed sessions held in the session registry",
		},
	)
)
