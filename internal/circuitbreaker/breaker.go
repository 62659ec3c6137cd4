package circuitbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/api-gateway/internal/invoker"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking Requests
	StateHalfOpen              // Testing with one request
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is what Fire hands back to the caller. A Degraded result carries
// the fallback payload, whether the call failed or was never attempted.
type Result struct {
	Payload     []byte
	StatusCode  int
	ContentType string
	NotFound    bool
	Degraded    bool
	Err         error
}

type Stats struct {
	Successes       int64   `json:"successes"`
	Failures        int64   `json:"failures"`
	Timeouts        int64   `json:"timeouts"`
	Rejections      int64   `json:"rejections"`
	Fallbacks       int64   `json:"fallbacks"`
	NotFounds       int64   `json:"not_founds"`
	Canceled        int64   `json:"canceled"`
	WindowSize      int     `json:"window_size"`
	WindowFailures  int     `json:"window_failures"`
	ErrorPercentage float64 `json:"error_percentage"`
}

type Snapshot struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	Stats    Stats     `json:"stats"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

type transition struct {
	from State
	to   State
}

type CircuitBreaker struct {
	name      string
	invoker   invoker.Invoker
	config    Config
	clock     func() time.Time
	logger    *slog.Logger
	listeners []StateChangeListener

	mutex    sync.Mutex
	state    State
	probing  bool
	openedAt time.Time
	window   *rollingWindow
	stats    Stats
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now for every state decision.
func WithClock(clock func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if clock != nil {
			cb.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) {
		if logger != nil {
			cb.logger = logger
		}
	}
}

// WithListener subscribes l to state changes. Listeners are fixed once the
// breaker is built.
func WithListener(l StateChangeListener) Option {
	return func(cb *CircuitBreaker) {
		if l != nil {
			cb.listeners = append(cb.listeners, l)
		}
	}
}

func NewCircuitBreaker(name string, inv invoker.Invoker, cfg Config, opts ...Option) (*CircuitBreaker, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: dependency name is required", ErrConfig)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s: invoker is required", ErrConfig, name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, name, err)
	}

	cb := &CircuitBreaker{
		name:    name,
		invoker: inv,
		config:  cfg,
		clock:   time.Now,
		logger:  slog.New(slog.DiscardHandler),
		state:   StateClosed,
		window:  newRollingWindow(cfg.Window, cfg.Buckets),
	}

	for _, opt := range opts {
		opt(cb)
	}

	cb.logger = cb.logger.With(slog.String("dependency", name))

	return cb, nil
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) Config() Config {
	return cb.config
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Fire runs req through the breaker. It never returns an error: failed and
// short-circuited calls come back as a Degraded result with the fallback.
func (cb *CircuitBreaker) Fire(ctx context.Context, req invoker.Request) Result {
	probe, allowed, changes := cb.admit()
	cb.notify(changes)

	if !allowed {
		return cb.Fallback(ErrShortCircuited)
	}

	outcome := cb.call(ctx, req)
	cb.notify(cb.record(outcome, probe))

	switch outcome.Kind {
	case invoker.KindSuccess:
		return Result{
			Payload:     outcome.Body,
			StatusCode:  outcome.StatusCode,
			ContentType: outcome.ContentType,
		}
	case invoker.KindExpectedFailure:
		return Result{
			Payload:     outcome.Body,
			StatusCode:  outcome.StatusCode,
			ContentType: outcome.ContentType,
			NotFound:    true,
		}
	default:
		return cb.Fallback(outcome.Err)
	}
}

// Fallback builds the degraded result for cause. A panicking or empty
// fallback function is replaced by DefaultFallback.
func (cb *CircuitBreaker) Fallback(cause error) Result {
	cb.mutex.Lock()
	cb.stats.Fallbacks++
	cb.mutex.Unlock()

	return Result{
		Payload:     cb.fallbackPayload(cause),
		StatusCode:  http.StatusServiceUnavailable,
		ContentType: "application/json",
		Degraded:    true,
		Err:         cause,
	}
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	total, failed := cb.window.totals(cb.clock())

	stats := cb.stats
	stats.WindowSize = total
	stats.WindowFailures = failed
	stats.ErrorPercentage = errorPercentage(total, failed)

	return Snapshot{
		Name:     cb.name,
		State:    cb.state,
		Stats:    stats,
		OpenedAt: cb.openedAt,
	}
}

// admit decides whether a call may reach the dependency. The Open to
// HalfOpen move happens here, on the first attempt after ResetTimeout, and
// that caller becomes the only prober.
func (cb *CircuitBreaker) admit() (probe, allowed bool, changes []transition) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true, nil
	case StateOpen:
		if cb.clock().Sub(cb.openedAt) < cb.config.ResetTimeout {
			cb.stats.Rejections++
			return false, false, nil
		}
		changes = append(changes, cb.setState(StateHalfOpen))
		cb.probing = true
		return true, true, changes
	case StateHalfOpen:
		if cb.probing {
			cb.stats.Rejections++
			return false, false, nil
		}
		cb.probing = true
		return true, true, nil
	default:
		return false, true, nil
	}
}

// call enforces RequestTimeout even if the invoker ignores its context.
// The context is canceled on return so an abandoned transport is torn down.
func (cb *CircuitBreaker) call(ctx context.Context, req invoker.Request) invoker.Outcome {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, cb.config.RequestTimeout)
	defer cancel()

	done := make(chan invoker.Outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invoker.Outcome{
					Kind: invoker.KindTransportError,
					Err:  fmt.Errorf("%w: invoker panic: %v", invoker.ErrTransport, r),
				}
			}
		}()

		done <- cb.invoker.Invoke(callCtx, req)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return invoker.CanceledOutcome(err, time.Since(start))
		}
		return invoker.TimeoutOutcome(time.Since(start))
	}
}

func (cb *CircuitBreaker) record(outcome invoker.Outcome, probe bool) []transition {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.clock()
	cb.count(outcome)

	if probe {
		cb.probing = false

		switch {
		case outcome.Kind == invoker.KindCanceled:
			return nil
		case outcome.Failed():
			cb.openedAt = now
			return []transition{cb.setState(StateOpen)}
		default:
			cb.window.reset()
			return []transition{cb.setState(StateClosed)}
		}
	}

	// Calls admitted while Closed may land after the circuit has moved on.
	if cb.state != StateClosed || outcome.Kind == invoker.KindCanceled {
		return nil
	}

	cb.window.record(now, outcome.Failed())

	total, failed := cb.window.totals(now)
	if total < cb.config.MinimumRequests {
		return nil
	}

	if errorPercentage(total, failed) >= cb.config.ErrorThresholdPercentage {
		cb.openedAt = now
		return []transition{cb.setState(StateOpen)}
	}

	return nil
}

func (cb *CircuitBreaker) count(outcome invoker.Outcome) {
	switch outcome.Kind {
	case invoker.KindSuccess:
		cb.stats.Successes++
	case invoker.KindExpectedFailure:
		cb.stats.Successes++
		cb.stats.NotFounds++
	case invoker.KindTimeout:
		cb.stats.Timeouts++
	case invoker.KindTransportError:
		cb.stats.Failures++
	case invoker.KindCanceled:
		cb.stats.Canceled++
	}
}

func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	return t
}

func (cb *CircuitBreaker) notify(changes []transition) {
	for _, t := range changes {
		switch t.to {
		case StateOpen:
			cb.logger.Warn("Circuit breaker opened",
				slog.String("from", t.from.String()),
				slog.Duration("reset_timeout", cb.config.ResetTimeout))
		case StateHalfOpen:
			cb.logger.Info("Circuit breaker half-open, probing dependency")
		case StateClosed:
			cb.logger.Info("Circuit breaker closed", slog.String("from", t.from.String()))
		}

		for _, l := range cb.listeners {
			cb.deliver(l, t)
		}
	}
}

func (cb *CircuitBreaker) deliver(l StateChangeListener, t transition) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("State change listener panicked", slog.Any("panic", r))
		}
	}()

	l.OnStateChange(cb.name, t.from, t.to)
}

func (cb *CircuitBreaker) fallbackPayload(cause error) (payload []byte) {
	if cb.config.Fallback == nil {
		return DefaultFallback(cb.name, cause)
	}

	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("Fallback panicked", slog.Any("panic", r))
			payload = DefaultFallback(cb.name, cause)
		}
	}()

	payload = cb.config.Fallback(cb.name, cause)
	if len(payload) == 0 {
		payload = DefaultFallback(cb.name, cause)
	}

	return payload
}
