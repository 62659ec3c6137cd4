// Package httpserver wraps net/http.Server with address validation and
// graceful, context-driven shutdown.
package httpserver
