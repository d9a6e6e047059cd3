package metrics

import (
	"time"

	"github.com/flowpump/flowpump/internal/observability"
)

// Pump and server metrics following Prometheus conventions
var (
	// Pump throughput metrics
	ItemsAdmittedTotal  = "pump_items_admitted_total"
	ItemsCompletedTotal = "pump_items_completed_total"
	ItemsFailedTotal    = "pump_items_failed_total"
	BytesAdmittedTotal  = "pump_bytes_admitted_total"
	BytesCompletedTotal = "pump_bytes_completed_total"

	// Pump state gauges
	QueueDepth     = "pump_queue_depth"
	InFlight       = "pump_in_flight"
	PendingResults = "pump_pending_results"
	EffectiveLimit = "pump_effective_size_limit"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordAdmission records one item entering the send window.
func RecordAdmission(size int64, urgent bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"priority": "deferred"}
	if urgent {
		labels["priority"] = "urgent"
	}
	_ = observability.TelemetrySystem.Counter(ItemsAdmittedTotal, 1, labels)
	_ = observability.TelemetrySystem.Counter(BytesAdmittedTotal, float64(size), labels)
}

// RecordCompletion records one item whose send finished.
func RecordCompletion(size int64, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	labels := map[string]string{"status": status}
	_ = observability.TelemetrySystem.Counter(ItemsCompletedTotal, 1, labels)
	if !success {
		_ = observability.TelemetrySystem.Counter(ItemsFailedTotal, 1, nil)
	}
	_ = observability.TelemetrySystem.Counter(BytesCompletedTotal, float64(size), labels)
}

// SetPumpGauges publishes the current pump state.
func SetPumpGauges(queueDepth, inFlight, pendingResults, effectiveLimit int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(QueueDepth, float64(queueDepth), nil)
	_ = observability.TelemetrySystem.Gauge(InFlight, float64(inFlight), nil)
	_ = observability.TelemetrySystem.Gauge(PendingResults, float64(pendingResults), nil)
	_ = observability.TelemetrySystem.Gauge(EffectiveLimit, float64(effectiveLimit), nil)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
