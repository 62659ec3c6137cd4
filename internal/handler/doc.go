// Package handler implements the gateway's HTTP surface. Every dependency
// call goes through its circuit breaker; degraded answers are written as
// 503 with the breaker's fallback body, and aggregate requests are served
// by the aggregator.
package handler
