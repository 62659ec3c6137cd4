package dependency

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// Dependency is a named downstream service. Name and address are fixed at
// construction; liveness and latency are updated as calls and probes complete.
type Dependency struct {
	name             string
	url              *url.URL
	healthPath       string
	notFoundAsData   bool
	mutex            sync.Mutex
	isHealthy        bool
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// Option configures a Dependency.
type Option func(*Dependency)

// WithHealthPath sets the path polled by the liveness probe.
// Defaults to /<name>/health.
func WithHealthPath(path string) Option {
	return func(d *Dependency) {
		if path != "" {
			d.healthPath = path
		}
	}
}

// WithNotFoundAsData makes a 404 from this dependency an expected,
// data-carrying outcome instead of a failure.
func WithNotFoundAsData(enabled bool) Option {
	return func(d *Dependency) {
		d.notFoundAsData = enabled
	}
}

// New creates a Dependency. It starts out healthy.
func New(name string, baseURL *url.URL, opts ...Option) *Dependency {
	d := &Dependency{
		name:           name,
		url:            baseURL,
		healthPath:     "/" + name + "/health",
		notFoundAsData: true,
		isHealthy:      true,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Name returns the dependency's identity.
func (d *Dependency) Name() string {
	return d.name
}

// URL returns the dependency's base address.
func (d *Dependency) URL() *url.URL {
	return d.url
}

// NotFoundAsData reports whether a 404 is an expected outcome.
func (d *Dependency) NotFoundAsData() bool {
	return d.notFoundAsData
}

// Resolve maps a gateway-relative path (optionally with a query) onto the
// dependency's base address.
func (d *Dependency) Resolve(path string) *url.URL {
	resolved := *d.url

	ref, err := url.Parse(path)
	if err != nil {
		resolved.Path = strings.TrimRight(d.url.Path, "/") + path
		return &resolved
	}

	resolved.Path = strings.TrimRight(d.url.Path, "/") + ref.Path
	resolved.RawQuery = ref.RawQuery
	return &resolved
}

// HealthURL returns the address polled by the liveness probe.
func (d *Dependency) HealthURL() *url.URL {
	return d.Resolve(d.healthPath)
}

// IsHealthy returns the result of the last liveness probe.
func (d *Dependency) IsHealthy() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.isHealthy
}

// SetHealthy updates the liveness flag.
// Returns true if the status changed, false if it was already in that state.
func (d *Dependency) SetHealthy(healthy bool) (changed bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isHealthy == healthy {
		return false
	}

	d.isHealthy = healthy
	return true
}

// RecordResponse folds the latest call duration into the EWMA.
func (d *Dependency) RecordResponse(duration time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.hasEWMA {
		d.ewmaResponseTime = duration
		d.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	d.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(d.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the smoothed response time, or 0 before the first call.
func (d *Dependency) EWMATime() time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.hasEWMA {
		return 0
	}

	return d.ewmaResponseTime
}
