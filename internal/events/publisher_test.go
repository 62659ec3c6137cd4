package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/api-gateway/internal/events"
	"github.com/angeloszaimis/api-gateway/internal/invoker"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mutex    sync.Mutex
	messages []message
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{subject: subject, data: data})
	return nil
}

func (f *fakeConn) published() []message {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]message(nil), f.messages...)
}

var _ = Describe("Publisher", func() {
	var (
		conn      *fakeConn
		publisher *events.Publisher
	)

	BeforeEach(func() {
		conn = &fakeConn{}
		publisher = events.NewPublisher(conn, "", nil)
	})

	It("should publish a transition on the dependency subject", func() {
		publisher.OnStateChange("orders", circuitbreaker.StateClosed, circuitbreaker.StateOpen)

		msgs := conn.published()
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].subject).To(Equal("gateway.circuit.orders"))

		var event map[string]any
		Expect(json.Unmarshal(msgs[0].data, &event)).To(Succeed())
		Expect(event["dependency"]).To(Equal("orders"))
		Expect(event["from"]).To(Equal("CLOSED"))
		Expect(event["to"]).To(Equal("OPEN"))
		Expect(event["id"]).To(HaveLen(36))
		Expect(event).To(HaveKey("timestamp"))
	})

	It("should use a custom subject prefix", func() {
		publisher = events.NewPublisher(conn, "prod.breakers", nil)
		Expect(publisher.Subject("users")).To(Equal("prod.breakers.users"))
	})

	It("should wrap connection errors", func() {
		conn.err = errors.New("nats: connection closed")

		err := publisher.Publish(events.StateChangeEvent{Dependency: "users"})
		Expect(err).To(MatchError(ContainSubstring("gateway.circuit.users")))
		Expect(errors.Unwrap(err)).To(MatchError("nats: connection closed"))
	})

	It("should not disturb the breaker when publishing fails", func() {
		conn.err = errors.New("nats: connection closed")
		failing := invoker.Func(func(context.Context, invoker.Request) invoker.Outcome {
			return invoker.Outcome{Kind: invoker.KindTransportError, Err: invoker.ErrTransport}
		})

		cfg := circuitbreaker.DefaultConfig()
		cfg.MinimumRequests = 1
		cfg.ResetTimeout = time.Minute
		cb, err := circuitbreaker.NewCircuitBreaker("users", failing, cfg, circuitbreaker.WithListener(publisher))
		Expect(err).NotTo(HaveOccurred())

		result := cb.Fire(context.Background(), invoker.Request{Method: http.MethodGet, Path: "/users/1"})
		Expect(result.Degraded).To(BeTrue())
		Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
	})

	It("should publish every transition of a breaker", func() {
		failing := invoker.Func(func(context.Context, invoker.Request) invoker.Outcome {
			return invoker.Outcome{Kind: invoker.KindTransportError, Err: invoker.ErrTransport}
		})

		cfg := circuitbreaker.DefaultConfig()
		cfg.MinimumRequests = 1
		cb, err := circuitbreaker.NewCircuitBreaker("orders", failing, cfg, circuitbreaker.WithListener(publisher))
		Expect(err).NotTo(HaveOccurred())

		cb.Fire(context.Background(), invoker.Request{Path: "/orders"})

		Expect(conn.published()).To(HaveLen(1))
	})

	It("should close without a connection of its own", func() {
		Expect(publisher.Close()).To(Succeed())
	})
})
