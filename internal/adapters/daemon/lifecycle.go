package daemon

import (
	"sync"
	"time"
)

// Lifecycle tracks daemon activity and arms the idle shutdown. A
// timeout of zero or less disables automatic shutdown; Shutdown still
// works.
type Lifecycle struct {
	mu       sync.Mutex
	idle     *time.Timer
	started  time.Time
	touched  time.Time
	timeout  time.Duration
	done     chan struct{}
	doneOnce sync.Once
}

// NewLifecycle creates a lifecycle manager and arms the idle timer.
func NewLifecycle(timeout time.Duration) *Lifecycle {
	now := time.Now()
	l := &Lifecycle{
		started: now,
		touched: now,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	if timeout > 0 {
		l.idle = time.AfterFunc(timeout, l.expire)
	}
	return l
}

// ResetTimer re-arms the idle timer. Called on every accepted connection.
func (l *Lifecycle) ResetTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touched = time.Now()
	if l.idle != nil {
		l.idle.Reset(l.timeout)
	}
}

// IdleRemaining returns the duration until auto-shutdown, zero when it
// is already due, and the full timeout when shutdown is disabled.
func (l *Lifecycle) IdleRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idle == nil {
		return l.timeout
	}
	remaining := l.timeout - time.Since(l.touched)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Uptime returns how long the daemon has been running.
func (l *Lifecycle) Uptime() time.Duration {
	return time.Since(l.started)
}

// LastActivity returns the timestamp of the last accepted connection.
func (l *Lifecycle) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.touched
}

// ShutdownChan returns a channel that closes when shutdown is triggered.
func (l *Lifecycle) ShutdownChan() <-chan struct{} {
	return l.done
}

func (l *Lifecycle) expire() {
	l.doneOnce.Do(func() {
		close(l.done)
	})
}

// Shutdown disarms the timer and triggers shutdown. Idempotent.
func (l *Lifecycle) Shutdown() {
	l.mu.Lock()
	if l.idle != nil {
		l.idle.Stop()
	}
	l.mu.Unlock()
	l.expire()
}
