// Package healthcheck polls the health endpoint of each gateway dependency
// and keeps its healthy flag current. Health is advisory: the circuit
// breakers decide admission on their own.
package healthcheck
