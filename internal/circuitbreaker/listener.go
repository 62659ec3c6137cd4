package circuitbreaker

// StateChangeListener is notified after a breaker changes state. Calls are
// made synchronously on the request goroutine, outside the breaker lock, so
// implementations must not block. Notifications are advisory: a panicking
// listener is recovered and the breaker carries on.
type StateChangeListener interface {
	OnStateChange(name string, from State, to State)
}

// StateChangeFunc adapts a function to StateChangeListener.
type StateChangeFunc func(name string, from State, to State)

func (f StateChangeFunc) OnStateChange(name string, from State, to State) {
	f(name, from, to)
}
