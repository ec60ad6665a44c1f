package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing dependency until it has had time to recover.
type CircuitBreaker interface {
	Call(func() error) error
	State() CircuitState
	Metrics() Metrics
	Reset()
}

type Config struct {
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // wait before probing in HalfOpen
	SuccessThreshold int           // HalfOpen successes needed to close
	// IsFailure decides which errors count against the breaker. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is invoked outside the lock after each transition.
	OnStateChange func(from, to CircuitState)
}

func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	}
}

type Metrics struct {
	State        CircuitState
	FailureCount int
	SuccessCount int
	LastFailure  time.Time
	NextAttempt  time.Time
}

type circuitBreaker struct {
	config      *Config
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	nextAttempt time.Time
	now         func() time.Time
	mutex       sync.RWMutex
}

func NewCircuitBreaker(config *Config) CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &circuitBreaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mutex.Lock()
	from := cb.state
	if cb.state == Open && cb.now().After(cb.nextAttempt) {
		cb.state = HalfOpen
		cb.successes = 0
	}
	allowed := cb.state != Open
	to := cb.state
	cb.mutex.Unlock()
	cb.notify(from, to)

	if !allowed {
		return ErrCircuitOpen
	}

	// Never call user code while holding locks.
	err := fn()

	cb.mutex.Lock()
	from = cb.state
	if err != nil && (cb.config.IsFailure == nil || cb.config.IsFailure(err)) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	to = cb.state
	cb.mutex.Unlock()
	cb.notify(from, to)

	return err
}

func (cb *circuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

func (cb *circuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.state = Closed
	cb.failures = 0
	cb.successes = 0
}

func (cb *circuitBreaker) recordFailure() {
	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case Closed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = Open
			cb.nextAttempt = cb.now().Add(cb.config.RecoveryTimeout)
		}
	case HalfOpen:
		cb.state = Open
		cb.nextAttempt = cb.now().Add(cb.config.RecoveryTimeout)
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.failures = 0

	if cb.state == HalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = Closed
			cb.successes = 0
		}
	}
}

func (cb *circuitBreaker) Metrics() Metrics {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return Metrics{
		State:        cb.state,
		FailureCount: cb.failures,
		SuccessCount: cb.successes,
		LastFailure:  cb.lastFailure,
		NextAttempt:  cb.nextAttempt,
	}
}
