package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dyndnsd",
		Subsystem: "http",
		Name:      "update_requests_total",
		Help:      "Update requests processed, labelled by response status tag.",
	}, []string{"status"})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dyndnsd",
		Subsystem: "http",
		Name:      "auth_failures_total",
		Help:      "Rejected authentication attempts on the update endpoint.",
	})

	commitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dyndnsd",
		Subsystem: "zone",
		Name:      "commits_total",
		Help:      "Update batches durably committed.",
	})

	propagationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dyndnsd",
		Subsystem: "zone",
		Name:      "propagation_failures_total",
		Help:      "Propagation attempts that failed after a successful save.",
	})

	zoneSerial = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dyndnsd",
		Subsystem: "zone",
		Name:      "serial",
		Help:      "Serial of the last committed zone state.",
	})

	hostsBound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dyndnsd",
		Subsystem: "zone",
		Name:      "hosts_bound",
		Help:      "Hostnames currently holding a binding.",
	})
)
