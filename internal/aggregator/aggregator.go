package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/api-gateway/internal/invoker"
)

var ErrMalformedOrders = errors.New("orders payload is not a JSON array")

type Status int

const (
	StatusComplete Status = iota
	StatusPartial
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the composed answer for one user. On StatusNotFound, User holds
// the users service body and Orders is empty.
type Result struct {
	Status   Status
	User     json.RawMessage
	Orders   json.RawMessage
	Degraded []string
}

// UserDegraded reports whether the primary resource was replaced by its fallback.
func (r Result) UserDegraded(users string) bool {
	for _, name := range r.Degraded {
		if name == users {
			return true
		}
	}
	return false
}

type Aggregator struct {
	users  *circuitbreaker.CircuitBreaker
	orders *circuitbreaker.CircuitBreaker
	logger *slog.Logger
}

// New looks both breakers up once. It fails with circuitbreaker.ErrNotFound
// when either dependency was never registered.
func New(registry *circuitbreaker.Registry, usersName, ordersName string, logger *slog.Logger) (*Aggregator, error) {
	users, err := registry.Get(usersName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	orders, err := registry.Get(ordersName)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Aggregator{
		users:  users,
		orders: orders,
		logger: logger,
	}, nil
}

func (a *Aggregator) Users() string {
	return a.users.Name()
}

func (a *Aggregator) Orders() string {
	return a.orders.Name()
}

// GetUserWithOrders fetches user userID and every order whose userId matches.
// The orders call is detached from ctx: when the user turns out missing it
// finishes in the background and its result is dropped.
func (a *Aggregator) GetUserWithOrders(ctx context.Context, userID int) Result {
	userCh := make(chan circuitbreaker.Result, 1)
	ordersCh := make(chan circuitbreaker.Result, 1)

	go func() {
		userCh <- a.users.Fire(ctx, invoker.Request{
			Method: http.MethodGet,
			Path:   "/users/" + strconv.Itoa(userID),
		})
	}()

	go func() {
		ordersCh <- a.orders.Fire(context.WithoutCancel(ctx), invoker.Request{
			Method: http.MethodGet,
			Path:   "/orders",
		})
	}()

	user := <-userCh
	if user.NotFound {
		return Result{Status: StatusNotFound, User: user.Payload}
	}

	orders := a.filterOrders(<-ordersCh, userID)

	result := Result{
		Status: StatusComplete,
		User:   user.Payload,
		Orders: orders.Payload,
	}

	if user.Degraded {
		result.Degraded = append(result.Degraded, a.users.Name())
	}
	if orders.Degraded {
		result.Degraded = append(result.Degraded, a.orders.Name())
	}

	if len(result.Degraded) > 0 {
		result.Status = StatusPartial
		a.logger.Warn("Serving partial user details",
			slog.Int("user_id", userID),
			slog.Any("degraded", result.Degraded))
	}

	return result
}

// filterOrders keeps the orders belonging to userID. A payload that is not
// a JSON array is swapped for the orders fallback.
func (a *Aggregator) filterOrders(orders circuitbreaker.Result, userID int) circuitbreaker.Result {
	if orders.Degraded {
		return orders
	}

	var items []json.RawMessage
	if err := json.Unmarshal(orders.Payload, &items); err != nil || items == nil {
		a.logger.Error("Discarding orders payload", slog.Any("error", err))
		return a.orders.Fallback(fmt.Errorf("%w: %s", ErrMalformedOrders, a.orders.Name()))
	}

	want := strconv.Itoa(userID)
	owned := make([]json.RawMessage, 0, len(items))

	for _, item := range items {
		if ownerOf(item) == want {
			owned = append(owned, item)
		}
	}

	payload, err := json.Marshal(owned)
	if err != nil {
		return a.orders.Fallback(fmt.Errorf("%w: %v", ErrMalformedOrders, err))
	}

	orders.Payload = payload
	return orders
}

// ownerOf returns the decimal text of an order's userId, which may be a
// JSON number or a string. Numeric forms of the same value (42, 42.0, 4.2e1)
// all map to the same text.
func ownerOf(item json.RawMessage) string {
	var order struct {
		UserID json.RawMessage `json:"userId"`
	}
	if err := json.Unmarshal(item, &order); err != nil {
		return ""
	}

	raw := bytes.TrimSpace(order.UserID)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return ""
		}
		return canonicalID(strings.TrimSpace(text))
	}

	return canonicalID(string(raw))
}

func canonicalID(text string) string {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return text
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
