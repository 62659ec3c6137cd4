// Package logger builds the structured slog loggers used by the gateway and
// the backend services: text output in dev and staging, JSON in prod, every
// record tagged with the environment.
package logger
