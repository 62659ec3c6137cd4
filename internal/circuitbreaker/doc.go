// Package circuitbreaker guards calls to downstream dependencies.
//
// Each dependency gets one CircuitBreaker, held by a Registry built at
// startup. A breaker has three states:
//
//   - CLOSED: calls pass through; outcomes feed a rolling time window
//   - OPEN: calls are answered with the fallback without touching the dependency
//   - HALF-OPEN: exactly one probe call is let through; everyone else gets the fallback
//
// The circuit opens once the window holds at least MinimumRequests outcomes
// and the failure percentage reaches ErrorThresholdPercentage. Only timeouts
// and transport errors are failures; a dependency's "not found" is data.
// There are no timers: the OPEN to HALF-OPEN move happens on the first call
// after ResetTimeout.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(logger)
//	cb, err := registry.Register("users", invoker.NewHTTPInvoker(dep, nil), circuitbreaker.DefaultConfig())
//	if err != nil {
//	    // duplicate name or invalid config
//	}
//	result := cb.Fire(ctx, invoker.Request{Method: http.MethodGet, Path: "/users/42"})
//	if result.Degraded {
//	    // result.Payload is the fallback
//	}
package circuitbreaker
