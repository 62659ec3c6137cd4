package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/api-gateway/internal/aggregator"
	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/api-gateway/internal/dependency"
	"github.com/angeloszaimis/api-gateway/internal/invoker"
	"github.com/angeloszaimis/api-gateway/internal/metrics"
)

const (
	maxBodyBytes = 1 << 20

	HeaderRequestID = "X-Request-ID"
	HeaderDegraded  = "X-Degraded"

	gatewayStatus = "API Gateway is running"
)

type Gateway struct {
	logger           *slog.Logger
	registry         *circuitbreaker.Registry
	dependencies     map[string]*dependency.Dependency
	aggregator       *aggregator.Aggregator
	metricsCollector *metrics.Collector
}

type circuitHealth struct {
	State       circuitbreaker.State `json:"state"`
	Stats       circuitbreaker.Stats `json:"stats"`
	OpenedAt    time.Time            `json:"opened_at,omitzero"`
	Healthy     bool                 `json:"healthy"`
	AvgResponse time.Duration        `json:"avg_response"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Circuits map[string]circuitHealth `json:"circuits"`
}

type detailsResponse struct {
	User     json.RawMessage `json:"user"`
	Orders   json.RawMessage `json:"orders"`
	Degraded []string        `json:"degraded,omitempty"`
}

func NewGateway(
	logger *slog.Logger,
	registry *circuitbreaker.Registry,
	deps []*dependency.Dependency,
	agg *aggregator.Aggregator,
	collector *metrics.Collector,
) *Gateway {
	byName := make(map[string]*dependency.Dependency, len(deps))
	for _, d := range deps {
		byName[d.Name()] = d
	}

	return &Gateway{
		logger:           logger,
		registry:         registry,
		dependencies:     byName,
		aggregator:       agg,
		metricsCollector: collector,
	}
}

// Forward relays the request, path and query unchanged, to the named
// dependency through its breaker.
func (g *Gateway) Forward(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cb, err := g.registry.Get(name)
		if err != nil {
			g.logger.Error("No circuit breaker for route", slog.String("dependency", name), slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		req := invoker.Request{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Header: forwardedHeaders(r),
		}
		if len(body) > 0 {
			req.Body = body
		}

		g.emitEvent(metrics.MetricEvent{
			Type:       metrics.EventRequestReceived,
			Timestamp:  time.Now(),
			Dependency: name,
		})

		start := time.Now()
		result := cb.Fire(r.Context(), req)
		g.complete(name, start, result)

		writeResult(w, result)
	}
}

// UserDetails serves a user together with their orders.
func (g *Gateway) UserDetails(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || userID < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
		return
	}

	result := g.aggregator.GetUserWithOrders(r.Context(), userID)

	switch result.Status {
	case aggregator.StatusNotFound:
		writeRaw(w, http.StatusNotFound, "application/json", result.User)

	case aggregator.StatusPartial:
		status := http.StatusOK
		if result.UserDegraded(g.aggregator.Users()) {
			status = http.StatusServiceUnavailable
		}

		g.logger.Warn("Serving degraded user details",
			slog.Int("user_id", userID),
			slog.String("degraded", strings.Join(result.Degraded, ",")),
			slog.Int("status", status))

		w.Header().Set(HeaderDegraded, strings.Join(result.Degraded, ","))
		writeJSON(w, status, detailsResponse{
			User:     result.User,
			Orders:   result.Orders,
			Degraded: result.Degraded,
		})

	default:
		writeJSON(w, http.StatusOK, detailsResponse{
			User:   result.User,
			Orders: result.Orders,
		})
	}
}

// Health reports every breaker with its dependency's liveness.
func (g *Gateway) Health(w http.ResponseWriter, _ *http.Request) {
	circuits := make(map[string]circuitHealth)

	for name, snap := range g.registry.Snapshots() {
		ch := circuitHealth{
			State:    snap.State,
			Stats:    snap.Stats,
			OpenedAt: snap.OpenedAt,
		}
		if dep, ok := g.dependencies[name]; ok {
			ch.Healthy = dep.IsHealthy()
			ch.AvgResponse = dep.EWMATime()
		}
		circuits[name] = ch
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   gatewayStatus,
		Circuits: circuits,
	})
}

func (g *Gateway) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": gatewayStatus})
}

func (g *Gateway) complete(name string, start time.Time, result circuitbreaker.Result) {
	if result.Degraded {
		g.logger.Warn("Serving fallback",
			slog.String("dependency", name),
			slog.Any("cause", result.Err))
	}

	g.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Dependency: name,
		Duration:   time.Since(start),
		StatusCode: result.StatusCode,
		Degraded:   result.Degraded,
	})
}

func (g *Gateway) emitEvent(event metrics.MetricEvent) {
	if g.metricsCollector == nil {
		return
	}

	g.metricsCollector.Emit(event)
}

func forwardedHeaders(r *http.Request) http.Header {
	header := make(http.Header)
	for _, key := range []string{HeaderRequestID, "Accept", "Authorization", "Content-Type"} {
		if value := r.Header.Get(key); value != "" {
			header.Set(key, value)
		}
	}
	return header
}

func writeResult(w http.ResponseWriter, result circuitbreaker.Result) {
	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	writeRaw(w, status, contentType, result.Payload)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
