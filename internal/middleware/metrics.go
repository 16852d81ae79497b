package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waypost_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ReviewDecisions counts request reviews by resulting status.
	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waypost_review_decisions_total",
		Help: "Total number of access request reviews by resulting status",
	}, []string{"status"})

	// KeysProvisioned counts credential provisioning events by outcome.
	KeysProvisioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waypost_api_keys_provisioned_total",
		Help: "Total number of API key provisioning events",
	}, []string{"outcome"})

	// KeysRevoked counts credentials removed by the revoker.
	KeysRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waypost_api_keys_revoked_total",
		Help: "Total number of API keys removed by revocation",
	})

	// DuplicateKeysRemoved counts credentials removed by reconciliation.
	DuplicateKeysRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waypost_duplicate_api_keys_removed_total",
		Help: "Total number of duplicate API keys removed by reconciliation",
	})

	// GateRejections counts authentication failures at the access gate by reason.
	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waypost_gate_rejections_total",
		Help: "Total number of access gate rejections by reason",
	}, []string{"reason"})
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a fiber.Handler.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
