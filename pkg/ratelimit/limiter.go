package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrWouldBlock is returned by Acquire when no permit is available right now
	ErrWouldBlock = errors.New("rate limit: would block")
	// ErrTimedOut is returned by AwaitAcquire when no permit arrived in time
	ErrTimedOut = errors.New("rate limit: timed out waiting for permit")
	// ErrUnknownBackend is returned for backend ids that were never registered
	ErrUnknownBackend = errors.New("rate limit: unknown backend")
)

const (
	defaultCooldownBase = 2 * time.Second
	defaultCooldownCap  = 5 * time.Minute
)

// BackendLimit configures the token bucket for one backend
type BackendLimit struct {
	RPM   int // requests per minute, continuous refill
	Burst int // bucket capacity
}

// Status is a point-in-time view of one backend's bucket, for monitoring
type Status struct {
	Used    int           `json:"used"`  // permits currently consumed out of Limit
	Limit   int           `json:"limit"` // burst capacity
	ResetIn time.Duration `json:"reset_in"`
}

// Limiter is per-backend token-bucket admission control with cooldown on
// repeated upstream failures. It is the only shared mutable state in the
// pipeline and is safe for concurrent use. Construct one per process (or per
// test); there is no package-level instance.
type Limiter struct {
	backends     map[string]*backendState
	cooldownBase time.Duration
	cooldownCap  time.Duration
	now          func() time.Time
}

type backendState struct {
	mu       sync.Mutex
	bucket   *rate.Limiter
	rpm      int
	burst    int
	failures int       // consecutive TimedOut/429-class failures
	coolsOff time.Time // no permits before this instant
}

// Option customizes a Limiter
type Option func(*Limiter)

// WithCooldown overrides the exponential cooldown base delay and cap
func WithCooldown(base, cap time.Duration) Option {
	return func(l *Limiter) {
		l.cooldownBase = base
		l.cooldownCap = cap
	}
}

// WithClock injects a clock for cooldown bookkeeping in tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter with one token bucket per backend id
func New(limits map[string]BackendLimit, opts ...Option) *Limiter {
	l := &Limiter{
		backends:     make(map[string]*backendState, len(limits)),
		cooldownBase: defaultCooldownBase,
		cooldownCap:  defaultCooldownCap,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	for id, lim := range limits {
		burst := lim.Burst
		if burst < 1 {
			burst = 1
		}
		l.backends[id] = &backendState{
			bucket: rate.NewLimiter(rate.Limit(float64(lim.RPM)/60.0), burst),
			rpm:    lim.RPM,
			burst:  burst,
		}
	}
	return l
}

// Acquire takes one permit for the backend without blocking. Callers decide
// whether to queue or fail fast on ErrWouldBlock.
func (l *Limiter) Acquire(backend string) error {
	st, ok := l.backends[backend]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	st.mu.Lock()
	cooling := l.now().Before(st.coolsOff)
	st.mu.Unlock()
	if cooling {
		return ErrWouldBlock
	}
	if !st.bucket.Allow() {
		return ErrWouldBlock
	}
	return nil
}

// AwaitAcquire blocks until a permit is available, the timeout elapses, or
// ctx is cancelled. Cooldown windows count against the timeout.
func (l *Limiter) AwaitAcquire(ctx context.Context, backend string, timeout time.Duration) error {
	st, ok := l.backends[backend]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		st.mu.Lock()
		wait := st.coolsOff.Sub(l.now())
		st.mu.Unlock()
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrTimedOut
		case <-timer.C:
		}
	}

	if err := st.bucket.Wait(ctx); err != nil {
		return ErrTimedOut
	}
	return nil
}

// ReportFailure records a TimedOut/429-class upstream failure. Each
// consecutive failure doubles the cooldown window, up to the cap.
func (l *Limiter) ReportFailure(backend string) {
	st, ok := l.backends[backend]
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failures++
	delay := l.cooldownBase << (st.failures - 1)
	if st.failures > 30 || delay > l.cooldownCap || delay <= 0 {
		delay = l.cooldownCap
	}
	st.coolsOff = l.now().Add(delay)
}

// ReportSuccess resets the backend's cooldown state on the first success
func (l *Limiter) ReportSuccess(backend string) {
	st, ok := l.backends[backend]
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failures = 0
	st.coolsOff = time.Time{}
}

// Snapshot returns the current usage of every backend bucket
func (l *Limiter) Snapshot() map[string]Status {
	out := make(map[string]Status, len(l.backends))
	for id, st := range l.backends {
		tokens := st.bucket.Tokens()
		if tokens < 0 {
			tokens = 0
		}
		if tokens > float64(st.burst) {
			tokens = float64(st.burst)
		}
		used := st.burst - int(math.Floor(tokens))

		var resetIn time.Duration
		if st.rpm > 0 {
			missing := float64(st.burst) - tokens
			resetIn = time.Duration(missing / (float64(st.rpm) / 60.0) * float64(time.Second))
		}
		st.mu.Lock()
		if cool := st.coolsOff.Sub(l.now()); cool > resetIn {
			resetIn = cool
		}
		st.mu.Unlock()

		out[id] = Status{Used: used, Limit: st.burst, ResetIn: resetIn}
	}
	return out
}
