package lock

import "github.com/VictoriaMetrics/metrics"

// Lock protocol counters. Exposed through the default metrics set; embed
// metrics.WritePrometheus in an HTTP handler to scrape them.
var (
	metricAcquisitions      = metrics.NewCounter("dlock_acquisitions_total")
	metricAcquireConflicts  = metrics.NewCounter("dlock_acquire_conflicts_total")
	metricHeartbeats        = metrics.NewCounter("dlock_heartbeats_total")
	metricHeartbeatFailures = metrics.NewCounter("dlock_heartbeat_failures_total")
	metricReleases          = metrics.NewCounter("dlock_releases_total")
)
