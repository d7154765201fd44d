package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Health represents the health status of a guarded dependency.
type Health struct {
	// Name is the dependency identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful call.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed call.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the circuit is closed.
func (h *Health) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the circuit is half-open.
func (h *Health) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the circuit is open.
func (h *Health) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Breaker wraps a circuit breaker and remembers the outcome of recent calls.
type Breaker struct {
	name      string
	cb        *gobreaker.CircuitBreaker[struct{}]
	isFailure func(error) bool

	mu            sync.RWMutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewBreaker creates a Breaker.
func NewBreaker(cfg CircuitBreakerConfig) *Breaker {
	isFailure := cfg.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{
		name:      cfg.Name,
		cb:        NewCircuitBreaker[struct{}](cfg),
		isFailure: isFailure,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn through the circuit breaker.
// Returns ErrCircuitOpen without calling fn when the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.record(ErrCircuitOpen)
		return ErrCircuitOpen
	}
	b.record(err)
	return err
}

func (b *Breaker) record(err error) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil || !b.isFailure(err) {
		b.lastSuccessAt = &now
		return
	}
	b.lastFailureAt = &now
	b.lastError = err.Error()
}

// Health returns the current health snapshot.
func (b *Breaker) Health() *Health {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Health{
		Name:          b.name,
		CircuitState:  b.cb.State(),
		Counts:        b.cb.Counts(),
		LastSuccessAt: b.lastSuccessAt,
		LastFailureAt: b.lastFailureAt,
		LastError:     b.lastError,
	}
}
