package rate

import (
	"context"
	"sync"
	"time"
)

// Config defines rate limiting parameters for one backend endpoint.
// RequestsPerSecond <= 0 disables limiting.
type Config struct {
	RequestsPerSecond int
	Burst             int
	Cooldown          time.Duration
}

// Limiter implements a token bucket rate limiter.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	last       time.Time
	rate       float64
	burst      float64
	cooldown   time.Duration
	blockUntil time.Time
	now        func() time.Time
}

// New creates a new limiter with a full bucket.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:   float64(burst),
		last:     time.Now(),
		rate:     float64(cfg.RequestsPerSecond),
		burst:    float64(burst),
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
}

// Disabled reports whether the limiter lets everything through.
func (l *Limiter) Disabled() bool { return l.rate <= 0 }

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	if l.Disabled() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockUntil) {
		return false
	}

	elapsed := now.Sub(l.last).Seconds()
	l.last = now

	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	// an empty bucket pauses the caller for the cooldown on top of refill time
	if l.cooldown > 0 {
		l.blockUntil = now.Add(l.cooldown)
	}
	return false
}

// Wait blocks until a token becomes available or context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-time.After(l.retryAfter()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Limiter) retryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.blockUntil.Sub(l.now()); d > 0 {
		return d
	}
	if l.rate <= 0 {
		return 0
	}
	d := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	if d < 5*time.Millisecond {
		d = 5 * time.Millisecond
	}
	return d
}

// Manager holds one limiter per endpoint key ("create", "result").
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

func (m *Manager) GetLimiter(key string) *Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim := New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait ensures rate limit compliance for a given key.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
