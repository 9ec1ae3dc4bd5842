package artifact

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a fetch is rejected because the upstream
// circuit is open.
var ErrCircuitOpen = eris.New("artifact: upstream circuit open")

// BreakerState is the state of the upstream circuit.
type BreakerState int

const (
	// BreakerClosed is the normal state. Fetches flow through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects fetches immediately after repeated failures.
	BreakerOpen
	// BreakerHalfOpen lets a single probe fetch test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a circuit breaker guarding a single artifact upstream.
// Consecutive fetch failures open the circuit; while open, fetches fail
// fast with ErrCircuitOpen instead of hammering a sick upstream. After
// the cooldown one probe is allowed through, and its outcome decides
// whether the circuit closes again.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a Breaker that opens after threshold consecutive
// failures and stays open for cooldown before probing.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Allow reports whether a fetch may proceed. It returns ErrCircuitOpen
// while the circuit is open and the cooldown has not elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		zap.L().Info("artifact: circuit half-open, probing upstream")
	}
	return nil
}

// Success records a definitive upstream response. A half-open probe that
// succeeds closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		zap.L().Info("artifact: circuit closed, upstream recovered")
	}
	b.state = BreakerClosed
	b.failures = 0
}

// Failure records an upstream failure. Crossing the threshold, or any
// failed half-open probe, opens the circuit.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		if b.state != BreakerOpen {
			zap.L().Warn("artifact: circuit open, rejecting fetches",
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
			)
		}
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// State returns the current circuit state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}
