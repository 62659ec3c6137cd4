package circuitbreaker

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FallbackFunc produces the payload served instead of a real response.
// cause is ErrShortCircuited, or the timeout/transport error of the call.
type FallbackFunc func(name string, cause error) []byte

// Config holds the tuning of a single breaker.
type Config struct {
	// Failure percentage (0-100] of the rolling window that opens the circuit.
	ErrorThresholdPercentage float64
	// Deadline of each call made through the breaker.
	RequestTimeout time.Duration
	// Time the circuit stays open before a probe is let through.
	ResetTimeout time.Duration
	// Outcomes the window must hold before the failure rate is evaluated.
	MinimumRequests int
	// Span of the rolling window, split into Buckets.
	Window  time.Duration
	Buckets int
	// Optional. DefaultFallback is used when nil.
	Fallback FallbackFunc
}

func DefaultConfig() Config {
	return Config{
		ErrorThresholdPercentage: 50,
		RequestTimeout:           3 * time.Second,
		ResetTimeout:             3 * time.Second,
		MinimumRequests:          5,
		Window:                   10 * time.Second,
		Buckets:                  10,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ErrorThresholdPercentage,
			validation.Required,
			validation.Min(0.0).Exclusive(),
			validation.Max(100.0),
		),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ResetTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MinimumRequests, validation.Required, validation.Min(1)),
		validation.Field(&c.Buckets, validation.Required, validation.Min(1)),
		validation.Field(&c.Window,
			validation.Required,
			validation.By(func(value interface{}) error {
				window, _ := value.(time.Duration)
				if c.Buckets > 0 && window/time.Duration(c.Buckets) <= 0 {
					return validation.NewError("validation_window_too_small", "window must be longer than one nanosecond per bucket")
				}
				return nil
			}),
		),
	)
}

// DefaultFallback renders {"error":"<Name> service temporarily unavailable"}.
func DefaultFallback(name string, _ error) []byte {
	// Casers keep state and must not be shared between goroutines.
	title := cases.Title(language.English).String(name)

	payload, err := json.Marshal(map[string]string{
		"error": title + " service temporarily unavailable",
	})
	if err != nil {
		return []byte(`{"error":"service temporarily unavailable"}`)
	}

	return payload
}
