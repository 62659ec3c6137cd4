// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the gateway configuration (listen
// address, breaker tuning, dependencies, health checks and event publishing)
// and the smaller configuration of the backend services.
package config
