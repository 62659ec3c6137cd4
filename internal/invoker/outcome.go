package invoker

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Kind int

const (
	KindSuccess Kind = iota
	KindExpectedFailure
	KindTimeout
	KindTransportError
	KindCanceled
)

var (
	ErrTimeout   = errors.New("dependency call timed out")
	ErrTransport = errors.New("dependency transport error")
	ErrCanceled  = errors.New("dependency call canceled")
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindExpectedFailure:
		return "expected_failure"
	case KindTimeout:
		return "timeout"
	case KindTransportError:
		return "transport_error"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Request is a single call to a dependency, relative to its base address.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Outcome is the classified result of one invocation.
type Outcome struct {
	Kind        Kind
	StatusCode  int
	Body        []byte
	ContentType string
	Duration    time.Duration
	Err         error
}

// Failed reports whether the outcome counts against a breaker.
func (o Outcome) Failed() bool {
	return o.Kind == KindTimeout || o.Kind == KindTransportError
}

// Invoker performs one call. Implementations must honour ctx cancellation.
type Invoker interface {
	Invoke(ctx context.Context, req Request) Outcome
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, req Request) Outcome

func (f Func) Invoke(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// TimeoutOutcome is the outcome recorded for a call abandoned at its deadline.
func TimeoutOutcome(elapsed time.Duration) Outcome {
	return Outcome{Kind: KindTimeout, Duration: elapsed, Err: ErrTimeout}
}

// CanceledOutcome is the outcome recorded when the caller's context ends first.
func CanceledOutcome(cause error, elapsed time.Duration) Outcome {
	return Outcome{Kind: KindCanceled, Duration: elapsed, Err: errors.Join(ErrCanceled, cause)}
}
