package circuitbreaker

import "time"

type bucket struct {
	epoch     int64
	successes int
	failures  int
}

// rollingWindow counts outcomes in fixed-width time buckets. Buckets are
// recycled lazily when a newer epoch lands on the same slot, so old outcomes
// age out without a background timer. Not safe for concurrent use; the
// owning breaker serializes access.
type rollingWindow struct {
	buckets []bucket
	width   time.Duration
}

func newRollingWindow(span time.Duration, count int) *rollingWindow {
	return &rollingWindow{
		buckets: make([]bucket, count),
		width:   span / time.Duration(count),
	}
}

func (w *rollingWindow) epoch(now time.Time) int64 {
	return now.UnixNano() / int64(w.width)
}

func (w *rollingWindow) record(now time.Time, failed bool) {
	epoch := w.epoch(now)
	b := &w.buckets[epoch%int64(len(w.buckets))]

	if b.epoch != epoch {
		*b = bucket{epoch: epoch}
	}

	if failed {
		b.failures++
	} else {
		b.successes++
	}
}

func (w *rollingWindow) totals(now time.Time) (total, failed int) {
	current := w.epoch(now)
	size := int64(len(w.buckets))

	for _, b := range w.buckets {
		if age := current - b.epoch; age < 0 || age >= size {
			continue
		}
		total += b.successes + b.failures
		failed += b.failures
	}

	return total, failed
}

func (w *rollingWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}

func errorPercentage(total, failed int) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) * 100 / float64(total)
}
