package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IncidentsTotal tracks handled incidents by kind and outcome
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_incidents_total",
			Help: "Total number of incidents handled",
		},
		[]string{"kind", "outcome"},
	)

	// IncidentDuration tracks how long HandleError took
	IncidentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_incident_duration_seconds",
			Help:    "Incident handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// RetryAttemptsTotal tracks retry attempts by kind and result
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"kind", "result"},
	)

	// RollbacksTotal tracks rollbacks by result
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_rollbacks_total",
			Help: "Total number of snapshot rollbacks",
		},
		[]string{"result"},
	)

	// SnapshotsResident tracks the number of snapshots in the store
	SnapshotsResident = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_snapshots_resident",
			Help: "Number of snapshots currently retained",
		},
	)

	// SnapshotsEvicted tracks snapshots removed by capacity eviction
	SnapshotsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_snapshots_evicted_total",
			Help: "Total number of snapshots evicted",
		},
	)

	// LoopsDetected tracks detected execution loops
	LoopsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_loops_detected_total",
			Help: "Total number of execution loops detected",
		},
		[]string{"severity"},
	)

	// PausedAgents tracks agents currently paused by loop detection
	PausedAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_paused_agents",
			Help: "Number of agents currently paused",
		},
	)

	// TicketsOpened tracks escalation tickets by priority
	TicketsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_tickets_opened_total",
			Help: "Total number of escalation tickets opened",
		},
		[]string{"priority"},
	)

	// TicketsResolved tracks resolved tickets by resolution source
	TicketsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_tickets_resolved_total",
			Help: "Total number of escalation tickets resolved",
		},
		[]string{"source"},
	)

	// EngineErrors tracks internal I/O failures per component
	EngineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_engine_errors_total",
			Help: "Total number of engine-internal errors",
		},
		[]string{"component"},
	)

	// StorageOpDuration tracks durable storage latency
	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_storage_op_duration_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "op"},
	)

	// DBConnectionPoolUsage tracks the percentage of open connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_db_connection_pool_usage_percent",
			Help: "Percentage of the database connection pool in use",
		},
	)
)
