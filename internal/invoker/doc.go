// Package invoker performs single outbound calls to a dependency and
// classifies what came back.
//
// Every call ends in exactly one Outcome kind:
//
//   - Success: 2xx response
//   - ExpectedFailure: 404 from a dependency configured to treat "not found" as data
//   - Timeout: the call's deadline expired
//   - TransportError: connection failure or any other status
//   - Canceled: the caller went away before the call finished
//
// Only Timeout and TransportError count against a circuit breaker.
package invoker
