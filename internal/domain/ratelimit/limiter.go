package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

// Config defines limiter configuration
type Config struct {
	Limit         int
	Window        time.Duration
	SweepInterval time.Duration
	TTL           time.Duration
	// Clock overrides time.Now in tests
	Clock func() time.Time
	// Metrics is optional
	Metrics *monitoring.Metrics
}

// DefaultConfig returns 10 calls per second, swept every 5 minutes
func DefaultConfig() Config {
	return Config{
		Limit:         10,
		Window:        time.Second,
		SweepInterval: 5 * time.Minute,
		TTL:           time.Minute,
	}
}

// Entry is the counter state for one (widget, capability) pair
type Entry struct {
	Count       int
	WindowStart time.Time
	LastSeen    time.Time
}

type key struct {
	widget     string
	capability string
}

// Limiter enforces per-widget, per-capability call budgets
type Limiter struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	entries map[key]*Entry

	stop    chan struct{}
	done    chan struct{}
	destroy sync.Once
}

// New creates a limiter and starts its sweep
func New(cfg Config, logger *zap.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	l := &Limiter{
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		entries: make(map[key]*Entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Check consumes one call for the pair. Over budget it returns false, plus
// a RateLimitExceeded error when strict. Rejected calls are not counted.
func (l *Limiter) Check(widgetID, capability string, strict bool) (bool, error) {
	now := l.cfg.Clock()
	k := key{widgetID, capability}

	l.mu.Lock()
	e, ok := l.entries[k]
	if !ok {
		e = &Entry{WindowStart: now}
		l.entries[k] = e
	}
	e.LastSeen = now
	if now.Sub(e.WindowStart) >= l.cfg.Window {
		e.Count = 0
		e.WindowStart = now
	}
	allowed := e.Count < l.cfg.Limit
	if allowed {
		e.Count++
	}
	size := len(l.entries)
	l.mu.Unlock()

	if !ok {
		l.cfg.Metrics.SetRateLimitEntries(size)
	}
	if allowed {
		return true, nil
	}

	l.cfg.Metrics.RecordRateLimited(capability)
	l.logger.Debug("Capability rate limited",
		logging.Widget(widgetID), logging.Capability(capability))
	if strict {
		return false, errs.New(errs.KindRateLimitExceeded,
			"%s exceeded %d calls per %s for %s", widgetID, l.cfg.Limit, l.cfg.Window, capability)
	}
	return false, nil
}

// Peek returns a copy of the entry for the pair without consuming a call
func (l *Limiter) Peek(widgetID, capability string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key{widgetID, capability}]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Reset drops all counters for a widget
func (l *Limiter) Reset(widgetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k := range l.entries {
		if k.widget == widgetID {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of live entries
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep removes entries idle longer than the TTL and returns how many went
func (l *Limiter) Sweep() int {
	cutoff := l.cfg.Clock().Add(-l.cfg.TTL)

	l.mu.Lock()
	removed := 0
	for k, e := range l.entries {
		if e.LastSeen.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	size := len(l.entries)
	l.mu.Unlock()

	l.cfg.Metrics.SetRateLimitEntries(size)
	if removed > 0 {
		l.logger.Debug("Swept idle rate limit entries", zap.Int("removed", removed), zap.Int("live", size))
	}
	return removed
}

// Destroy stops the sweep. It is safe to call more than once.
func (l *Limiter) Destroy() {
	l.destroy.Do(func() {
		close(l.stop)
	})
	<-l.done
}

func (l *Limiter) sweepLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
