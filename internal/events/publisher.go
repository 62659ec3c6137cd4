package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
)

const DefaultSubject = "gateway.circuit"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type StateChangeEvent struct {
	ID         string               `json:"id"`
	Dependency string               `json:"dependency"`
	From       circuitbreaker.State `json:"from"`
	To         circuitbreaker.State `json:"to"`
	Timestamp  time.Time            `json:"timestamp"`
}

type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
	clock   func() time.Time
	close   func() error
}

func NewPublisher(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
		clock:   time.Now,
		close:   func() error { return nil },
	}
}

// Connect dials the NATS server at url. The client keeps reconnecting in
// the background, so a broker outage never blocks the gateway.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("api-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if logger != nil && err != nil {
				logger.Warn("NATS disconnected", slog.Any("err", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if logger != nil {
				logger.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	p := NewPublisher(nc, subject, logger)
	p.close = nc.Drain

	return p, nil
}

// Subject returns the subject used for dependency name.
func (p *Publisher) Subject(name string) string {
	return p.subject + "." + name
}

// OnStateChange publishes the transition. Failures are logged and dropped.
func (p *Publisher) OnStateChange(name string, from, to circuitbreaker.State) {
	event := StateChangeEvent{
		ID:         uuid.NewString(),
		Dependency: name,
		From:       from,
		To:         to,
		Timestamp:  p.clock().UTC(),
	}

	if err := p.Publish(event); err != nil {
		p.logger.Error("Failed to publish circuit state change",
			slog.String("dependency", name),
			slog.Any("err", err))
	}
}

func (p *Publisher) Publish(event StateChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}

	if err := p.conn.Publish(p.Subject(event.Dependency), data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Subject(event.Dependency), err)
	}

	return nil
}

// Close drains the underlying connection, if the publisher owns one.
func (p *Publisher) Close() error {
	return p.close()
}
