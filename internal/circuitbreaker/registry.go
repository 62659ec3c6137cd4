package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/angeloszaimis/api-gateway/internal/invoker"
)

// Registry holds one breaker per dependency name. It is filled once at
// startup and read by every request afterwards.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// Register builds and stores the breaker for name. It fails with ErrConfig
// if name is taken or the config is invalid.
func (r *Registry) Register(name string, inv invoker.Invoker, cfg Config, opts ...Option) (*CircuitBreaker, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.breakers[name]; exists {
		return nil, fmt.Errorf("%w: dependency %q is already registered", ErrConfig, name)
	}

	cb, err := NewCircuitBreaker(name, inv, cfg, append([]Option{WithLogger(r.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}

	r.breakers[name] = cb

	r.logger.Info("Registered circuit breaker",
		slog.String("dependency", name),
		slog.Float64("error_threshold_percentage", cfg.ErrorThresholdPercentage),
		slog.Duration("request_timeout", cfg.RequestTimeout),
		slog.Duration("reset_timeout", cfg.ResetTimeout),
		slog.Int("minimum_requests", cfg.MinimumRequests))

	return cb, nil
}

func (r *Registry) Get(name string) (*CircuitBreaker, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, exists := r.breakers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return cb, nil
}

// Names returns the registered dependency names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (r *Registry) Snapshots() map[string]Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshots := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		snapshots[name] = cb.Snapshot()
	}
	return snapshots
}
