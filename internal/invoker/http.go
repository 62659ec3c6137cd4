package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/angeloszaimis/api-gateway/internal/dependency"
)

const maxResponseBytes = 10 << 20

// HTTPInvoker calls a dependency over HTTP. The deadline comes from the
// context passed to Invoke.
type HTTPInvoker struct {
	dependency *dependency.Dependency
	client     *http.Client
}

// NewHTTPInvoker creates an invoker for dep. A nil client uses a client
// without its own timeout.
func NewHTTPInvoker(dep *dependency.Dependency, client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPInvoker{
		dependency: dep,
		client:     client,
	}
}

// Dependency returns the target of this invoker.
func (h *HTTPInvoker) Dependency() *dependency.Dependency {
	return h.dependency
}

func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) Outcome {
	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	target := h.dependency.Resolve(req.Path)
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Outcome{
			Kind: KindTransportError,
			Err:  fmt.Errorf("%w: building request for %s: %v", ErrTransport, h.dependency.Name(), err),
		}
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	res, err := h.client.Do(httpReq)
	if err != nil {
		return h.classifyError(ctx, err, time.Since(start))
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return h.classifyError(ctx, err, time.Since(start))
	}
	if len(payload) > maxResponseBytes {
		return Outcome{
			Kind:       KindTransportError,
			StatusCode: res.StatusCode,
			Duration:   time.Since(start),
			Err:        fmt.Errorf("%w: response from %s exceeds %d bytes", ErrTransport, h.dependency.Name(), maxResponseBytes),
		}
	}

	duration := time.Since(start)
	h.dependency.RecordResponse(duration)

	outcome := Outcome{
		StatusCode:  res.StatusCode,
		Body:        payload,
		ContentType: res.Header.Get("Content-Type"),
		Duration:    duration,
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		outcome.Kind = KindSuccess
	case res.StatusCode == http.StatusNotFound && h.dependency.NotFoundAsData():
		outcome.Kind = KindExpectedFailure
	default:
		outcome.Kind = KindTransportError
		outcome.Err = fmt.Errorf("%w: unexpected status %d from %s", ErrTransport, res.StatusCode, h.dependency.Name())
	}

	return outcome
}

func (h *HTTPInvoker) classifyError(ctx context.Context, err error, elapsed time.Duration) Outcome {
	var netErr net.Error

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return Outcome{
			Kind:     KindTimeout,
			Duration: elapsed,
			Err:      fmt.Errorf("%w: %s: %v", ErrTimeout, h.dependency.Name(), err),
		}
	case errors.Is(ctx.Err(), context.Canceled):
		return CanceledOutcome(err, elapsed)
	default:
		return Outcome{
			Kind:     KindTransportError,
			Duration: elapsed,
			Err:      fmt.Errorf("%w: %s: %v", ErrTransport, h.dependency.Name(), err),
		}
	}
}
