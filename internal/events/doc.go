// Package events publishes circuit breaker transitions to NATS so other
// services can react to a dependency going down or recovering.
//
// Each transition becomes one JSON message on <subject>.<dependency>:
//
//	{"id":"…","dependency":"orders","from":"CLOSED","to":"OPEN","timestamp":"…"}
package events
