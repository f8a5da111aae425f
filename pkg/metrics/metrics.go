package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "everycheese"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	CheesesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "cheeses_created_total", Help: "Number of cheeses added to the catalog."},
	)
	CheesesUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "cheeses_updated_total", Help: "Number of cheese updates."},
	)
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "login_attempts_total", Help: "Sign-in attempts by outcome."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CheesesCreated)
	reg.MustRegister(CheesesUpdated)
	reg.MustRegister(LoginAttempts)
}
