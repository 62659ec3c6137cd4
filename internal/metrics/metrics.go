package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	degraded      map[string]int64
	transitions   map[string]int64
	circuitState  map[string]string
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                        `json:"total_requests"`
	TotalDegraded int64                        `json:"total_degraded"`
	Uptime        time.Duration                `json:"uptime"`
	Dependencies  map[string]DependencyMetrics `json:"dependencies"`
}

type DependencyMetrics struct {
	Requests     int64         `json:"requests"`
	Degraded     int64         `json:"degraded"`
	Healthy      bool          `json:"healthy"`
	CircuitState string        `json:"circuit_state,omitempty"`
	Transitions  int64         `json:"transitions"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
	StatusCodes  map[int]int64 `json:"status_codes"`
}

func (m *Metrics) IncrementRequests(dependency string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[dependency]++
}

func (m *Metrics) RecordResponse(dependency string, duration time.Duration, statusCode int, degraded bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[dependency] = append(m.responseTimes[dependency], duration)
	if len(m.responseTimes[dependency]) > maxSamples {
		m.responseTimes[dependency] = m.responseTimes[dependency][1:]
	}

	if m.statusCodes[dependency] == nil {
		m.statusCodes[dependency] = make(map[int]int64)
	}
	m.statusCodes[dependency][statusCode]++

	if degraded {
		m.degraded[dependency]++
	}
}

func (m *Metrics) RecordStateChange(dependency, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.circuitState[dependency] = state
	m.transitions[dependency]++
}

func (m *Metrics) UpdateHealthStatus(dependency string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[dependency] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:       time.Since(m.startTime),
		Dependencies: make(map[string]DependencyMetrics),
	}

	names := make(map[string]struct{})
	for _, keyed := range []map[string]int64{m.requests, m.degraded, m.transitions} {
		for name := range keyed {
			names[name] = struct{}{}
		}
	}
	for name := range m.responseTimes {
		names[name] = struct{}{}
	}
	for name := range m.healthStatus {
		names[name] = struct{}{}
	}
	for name := range m.circuitState {
		names[name] = struct{}{}
	}

	for name := range names {
		snap.TotalRequests += m.requests[name]
		snap.TotalDegraded += m.degraded[name]

		dm := DependencyMetrics{
			Requests:     m.requests[name],
			Degraded:     m.degraded[name],
			Healthy:      m.healthStatus[name],
			CircuitState: m.circuitState[name],
			Transitions:  m.transitions[name],
			StatusCodes:  copyCodes(m.statusCodes[name]),
		}

		if durations := m.responseTimes[name]; len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			dm.AvgResponse = average(sorted)
			dm.P50Response = percentile(sorted, 0.50)
			dm.P95Response = percentile(sorted, 0.95)
			dm.P99Response = percentile(sorted, 0.99)
		}

		snap.Dependencies[name] = dm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		degraded:      make(map[string]int64),
		transitions:   make(map[string]int64),
		circuitState:  make(map[string]string),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func copyCodes(codes map[int]int64) map[int]int64 {
	if codes == nil {
		return nil
	}
	out := make(map[int]int64, len(codes))
	for code, count := range codes {
		out[code] = count
	}
	return out
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
