// Package dependency describes the downstream services the gateway fronts.
// A Dependency carries the service's name and base address, how its "not
// found" responses are classified, its last known liveness and an EWMA of
// its response times.
package dependency
