// Package metrics declares the Prometheus instrumentation shared by the
// core components. All collectors register on the default registry and are
// exposed by the server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts upstream calls by logical endpoint and
	// outcome ("ok" or a failure kind).
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "igmirror",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream platform calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// EgressBlocks counts anti-bot blocks per egress path.
	EgressBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "igmirror",
		Subsystem: "egress",
		Name:      "blocks_total",
		Help:      "Egress paths marked blocked after a classified anti-bot response.",
	}, []string{"path"})

	// CacheLookups counts entity cache lookups by cache name and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "igmirror",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Entity cache lookups by result (hit, miss).",
	}, []string{"cache", "result"})

	// QuotaRejections counts requests rejected before any upstream work.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "igmirror",
		Subsystem: "quota",
		Name:      "rejections_total",
		Help:      "Requests rejected because the requester's quota window was exhausted.",
	})
)
