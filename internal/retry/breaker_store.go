package retry

import (
	"sync"
	"time"

	"github.com/ferro-labs/agentrouter/internal/circuitbreaker"
)

// BreakerStore lazily creates and retrieves one CircuitBreaker per target
// name (agent or provider). It is the sole owner of each breaker's state;
// every other component observes state through read-only queries. A
// per-store mutex serializes creation; the breakers themselves serialize
// their own transitions.
type BreakerStore struct {
	mu               sync.Mutex
	breakers         map[string]*circuitbreaker.CircuitBreaker
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

// NewBreakerStore creates a BreakerStore that builds new breakers with the
// given thresholds and cooldown.
func NewBreakerStore(failureThreshold, successThreshold int, cooldown time.Duration) *BreakerStore {
	return &BreakerStore{
		breakers:         make(map[string]*circuitbreaker.CircuitBreaker),
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
	}
}

// Get returns the breaker for target, creating one on first use.
func (s *BreakerStore) Get(target string) *circuitbreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[target]
	if !ok {
		cb = circuitbreaker.New(s.failureThreshold, s.successThreshold, s.cooldown)
		s.breakers[target] = cb
	}
	return cb
}

// Snapshot returns the current State of every breaker created so far,
// keyed by target name — used by admin/metrics read paths.
func (s *BreakerStore) Snapshot() map[string]circuitbreaker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]circuitbreaker.State, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.State()
	}
	return out
}
