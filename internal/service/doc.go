// Package service implements the users and orders backends that sit behind
// the gateway. Each is a JSON CRUD API over an in-memory store keyed by
// auto-incrementing numeric ids, plus health and status endpoints.
package service
