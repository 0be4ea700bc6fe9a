// Package metrics holds the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Authentications counts loader authentication attempts by terminal
// outcome (success, failed, invalid_key, banned_hwid).
var Authentications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_authentications_total",
	Help: "Loader authentication attempts by terminal outcome.",
}, []string{"outcome"})

// ObfuscationRejections counts authoring saves rejected by the quota
// ledger, by tier.
var ObfuscationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_obfuscation_rejections_total",
	Help: "Script obfuscation requests rejected by the monthly quota.",
}, []string{"tier"})
