// Package metrics provides real-time metrics collection for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect, per
// dependency:
//   - Request counts and degraded (fallback) responses
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - Circuit breaker state and transition counts
//   - Health status tracking
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Collector also implements
// circuitbreaker.StateChangeListener, so it can be handed straight to a
// breaker as a listener.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Dependency: "users",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// Metrics storage is guarded by sync.RWMutex, and pending events are drained
// on shutdown.
package metrics
