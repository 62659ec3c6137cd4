// Package aggregator composes a user with their orders.
//
// Both dependencies are called concurrently through their circuit breakers.
// The user is the primary resource: a missing user ends the request with
// StatusNotFound, while a degraded orders call still yields the user with
// the orders fallback in its place.
package aggregator
