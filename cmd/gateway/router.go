package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/api-gateway/internal/handler"
	"github.com/angeloszaimis/api-gateway/internal/metrics"
)

func setupRouter(gw *handler.Gateway, metricsCollector *metrics.Collector, log *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(handler.RequestLogger(log))

	r.HandleFunc("/health", gw.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", gw.Status).Methods(http.MethodGet)
	r.HandleFunc("/metrics", metricsCollector.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/users/{id:[0-9]+}/details", gw.UserDetails).Methods(http.MethodGet)

	users := gw.Forward(usersDependency)
	r.Handle("/users", users).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/users/{id:[0-9]+}", users).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	orders := gw.Forward(ordersDependency)
	r.Handle("/orders", orders).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/orders/status", orders).Methods(http.MethodGet)
	r.Handle("/orders/health", orders).Methods(http.MethodGet)
	r.Handle("/orders/{id:[0-9]+}", orders).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	return r
}
