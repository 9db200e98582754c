package reversynclib

import (
	"context"
	"sync"
	"time"

	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/base/utils"
	"github.com/reversync/reversync/reversynclib/types"
	"go.uber.org/atomic"
)

const limiterIdleTimeout = 5 * time.Minute

// ExecutionLimiters hands out per-sync limiters keyed by the content of the
// sync plan. This is the single piece of in-process coordination state the
// runtime holds: it lives only for the duration of a sync's execution and is
// evicted once the orchestrator stops sending batches for that plan. It is
// never persisted.
type ExecutionLimiters struct {
	appbase.Service
	mu       sync.Mutex
	limiters map[uint64]*PlanLimiter
}

func NewExecutionLimiters() *ExecutionLimiters {
	return &ExecutionLimiters{
		Service:  appbase.NewServiceBase("limiters"),
		limiters: make(map[uint64]*PlanLimiter),
	}
}

// ForPlan returns the limiter shared by all in-flight sync_batch calls of the
// same sync plan, creating it on first use. A changed triad for the same plan
// replaces the limiter.
func (e *ExecutionLimiters) ForPlan(plan *types.SyncPlan, limits types.SpeedLimits) (*PlanLimiter, error) {
	key, err := utils.HashAny(plan)
	if err != nil {
		return nil, ErrConfiguration.Wrap(err, "sync plan is not hashable")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictIdle()
	limiter, ok := e.limiters[key]
	if !ok || limiter.limits != limits {
		limiter = newPlanLimiter(limits)
		e.limiters[key] = limiter
	}
	limiter.touch()
	return limiter, nil
}

// evictIdle drops limiters of syncs that finished. Callers must hold e.mu.
func (e *ExecutionLimiters) evictIdle() {
	deadline := time.Now().Add(-limiterIdleTimeout).UnixNano()
	for key, limiter := range e.limiters {
		if limiter.lastUsed.Load() < deadline && len(limiter.slots) == 0 {
			delete(e.limiters, key)
		}
	}
}

// PlanLimiter enforces the governor triad for one sync: a semaphore bounding
// parallel in-flight batches and a token bucket bounding aggregate
// records/second across them.
type PlanLimiter struct {
	limits types.SpeedLimits
	burst  float64
	slots  chan struct{}

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	lastUsed *atomic.Int64
}

func newPlanLimiter(limits types.SpeedLimits) *PlanLimiter {
	// the bucket holds one second's worth of tokens but never less than one,
	// so rates below 1 record/second still admit the first record immediately
	burst := limits.MaximumRecordsPerSecond
	if burst < 1 {
		burst = 1
	}
	return &PlanLimiter{
		limits:     limits,
		burst:      burst,
		slots:      make(chan struct{}, limits.MaximumParallelBatches),
		tokens:     burst,
		lastRefill: time.Now(),
		lastUsed:   atomic.NewInt64(time.Now().UnixNano()),
	}
}

func (l *PlanLimiter) touch() {
	l.lastUsed.Store(time.Now().UnixNano())
}

// AcquireSlot blocks until a parallel-batch slot is free or ctx expires.
func (l *PlanLimiter) AcquireSlot(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *PlanLimiter) ReleaseSlot() {
	l.touch()
	<-l.slots
}

// WaitRecord takes one token from the records/second bucket, blocking until a
// token is available or ctx expires.
func (l *PlanLimiter) WaitRecord(ctx context.Context) error {
	for {
		wait := l.takeToken()
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// takeToken consumes a token if one is available, otherwise returns how long
// to wait before retrying. The bucket refills at the records/second rate and
// caps at the burst size.
func (l *PlanLimiter) takeToken() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.limits.MaximumRecordsPerSecond
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	missing := 1 - l.tokens
	return time.Duration(missing / l.limits.MaximumRecordsPerSecond * float64(time.Second))
}
