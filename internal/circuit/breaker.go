package circuit

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects an operation because the
// guarded tier is considered unavailable.
var ErrOpen = errors.New("circuit breaker open")

// State represents the breaker state
type State int

const (
	// StateClosed - operations pass through, failures are counted
	StateClosed State = iota
	// StateOpen - operations are rejected until the cooldown elapses
	StateOpen
	// StateHalfOpen - a single probe operation is allowed through
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config contains breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens and the tier is skipped.
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before allowing a probe.
	Cooldown time.Duration `yaml:"cooldown"`

	// OnStateChange is called when the breaker transitions between states.
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

// Breaker guards one storage tier: after FailureThreshold consecutive
// failures the tier is treated as unavailable and operations short-circuit
// with ErrOpen, letting the caller's fallback chain proceed without paying
// the tier's timeout on every request. After Cooldown a single probe is let
// through; its outcome decides whether the breaker closes again.
type Breaker struct {
	name   string
	config Config
	clock  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a breaker with the given name and configuration.
func New(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}

	return &Breaker{
		name:   name,
		config: config,
		clock:  time.Now,
		state:  StateClosed,
	}
}

// Do runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	b.record(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Available reports whether the guarded tier is currently usable.
func (b *Breaker) Available() bool {
	return b.State() != StateOpen
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		b.probing = false
		return
	}

	b.failures++
	b.probing = false

	if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
		if b.state != StateOpen {
			b.transition(StateOpen)
		}
		b.openedAt = b.clock()
	}
}

// refresh moves an expired open state to half-open. Callers hold the lock.
func (b *Breaker) refresh() {
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.config.Cooldown {
		b.transition(StateHalfOpen)
		b.probing = false
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, from, to)
	}
}
