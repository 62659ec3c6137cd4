package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
)

type EventType string

const (
	EventRequestReceived     EventType = "request_received"
	EventResponseCompleted   EventType = "response_completed"
	EventCircuitStateChanged EventType = "circuit_state_changed"
	EventHealthChanged       EventType = "health_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Dependency string
	Duration   time.Duration
	StatusCode int
	Degraded   bool
	Healthy    bool
	State      string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking. Events are dropped when the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

// OnStateChange records breaker transitions. It never blocks the breaker.
func (c *Collector) OnStateChange(name string, _, to circuitbreaker.State) {
	c.Emit(MetricEvent{
		Type:       EventCircuitStateChanged,
		Dependency: name,
		State:      to.String(),
	})
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Dependency)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Dependency, event.Duration, event.StatusCode, event.Degraded)

	case EventCircuitStateChanged:
		c.metrics.RecordStateChange(event.Dependency, event.State)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Dependency, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
