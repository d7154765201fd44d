// Package resilience guards calls into external tools with circuit breakers.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Defaults applied by DefaultCircuitBreakerConfig.
const (
	DefaultOpenTimeout         = 60 * time.Second
	DefaultConsecutiveFailures = 5
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and on /ops/status.
	Name string

	// MaxRequests is the number of trial calls let through while half-open.
	MaxRequests uint32

	// Interval clears the counts while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ReadyToTrip decides when a closed breaker opens.
	// If nil, DefaultReadyToTrip is used.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// IsFailure reports whether an error counts against the breaker.
	// If nil, every non-nil error counts.
	IsFailure func(err error) bool

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns a config that opens after
// DefaultConsecutiveFailures failures in a row.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     DefaultOpenTimeout,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker after DefaultConsecutiveFailures
// consecutive failures.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= DefaultConsecutiveFailures
}

// Settings converts the config to gobreaker settings.
func (c CircuitBreakerConfig) Settings() gobreaker.Settings {
	settings := gobreaker.Settings{
		Name:          c.Name,
		MaxRequests:   c.MaxRequests,
		Interval:      c.Interval,
		Timeout:       c.Timeout,
		ReadyToTrip:   c.ReadyToTrip,
		OnStateChange: c.OnStateChange,
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = DefaultReadyToTrip
	}
	if isFailure := c.IsFailure; isFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}
	return settings
}

// NewCircuitBreaker creates a typed gobreaker circuit breaker.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](cfg.Settings())
}
