package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, clock *fakeClock) *Limiter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Clock = clock.Now
	l := New(cfg, nil)
	t.Cleanup(l.Destroy)
	return l
}

func TestTenPerSecondThenReject(t *testing.T) {
	clock := newClock()
	l := newLimiter(t, clock)

	for i := 0; i < 10; i++ {
		ok, err := l.Check("monitor", "system.getCPU", true)
		require.NoError(t, err, "call %d", i+1)
		require.True(t, ok)
		clock.Advance(10 * time.Millisecond)
	}

	ok, err := l.Check("monitor", "system.getCPU", true)
	assert.False(t, ok)
	assert.True(t, errs.Is(err, errs.KindRateLimitExceeded))

	ok, err = l.Check("monitor", "system.getCPU", false)
	assert.False(t, ok)
	assert.NoError(t, err)

	// rejected calls do not extend the count
	e, found := l.Peek("monitor", "system.getCPU")
	require.True(t, found)
	assert.Equal(t, 10, e.Count)
}

func TestWindowResets(t *testing.T) {
	clock := newClock()
	l := newLimiter(t, clock)

	for i := 0; i < 10; i++ {
		ok, _ := l.Check("clock", "storage.get", false)
		require.True(t, ok)
	}
	ok, _ := l.Check("clock", "storage.get", false)
	require.False(t, ok)

	clock.Advance(time.Second)
	ok, err := l.Check("clock", "storage.get", true)
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestPairsAreIndependent(t *testing.T) {
	clock := newClock()
	l := newLimiter(t, clock)

	for i := 0; i < 10; i++ {
		ok, _ := l.Check("a", "system.getCPU", false)
		require.True(t, ok)
	}

	ok, _ := l.Check("a", "system.getMemory", false)
	assert.True(t, ok, "other capability of same widget")
	ok, _ = l.Check("b", "system.getCPU", false)
	assert.True(t, ok, "same capability of other widget")
}

func TestConcurrentChecksNeverExceedLimit(t *testing.T) {
	clock := newClock()
	l := newLimiter(t, clock)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Check("w", "network.fetch", false); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), allowed.Load())
}

func TestSweepRemovesIdleEntries(t *testing.T) {
	clock := newClock()
	l := newLimiter(t, clock)

	l.Check("old", "system.getCPU", false)
	clock.Advance(45 * time.Second)
	l.Check("fresh", "system.getCPU", false)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	_, found := l.Peek("old", "system.getCPU")
	assert.False(t, found)
	_, found = l.Peek("fresh", "system.getCPU")
	assert.True(t, found)
	assert.Equal(t, 1, l.Len())
}

func TestSweepRunsPeriodically(t *testing.T) {
	clock := newClock()
	l := New(Config{SweepInterval: 5 * time.Millisecond, TTL: time.Minute, Clock: clock.Now}, nil)
	defer l.Destroy()

	l.Check("w", "system.getCPU", false)
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestReset(t *testing.T) {
	l := newLimiter(t, newClock())
	l.Check("a", "x", false)
	l.Check("a", "y", false)
	l.Check("b", "x", false)

	l.Reset("a")
	assert.Equal(t, 1, l.Len())
}

func TestDestroyIsIdempotent(t *testing.T) {
	l := New(DefaultConfig(), nil)
	l.Destroy()
	assert.NotPanics(t, l.Destroy)

	// checks still work after the sweep stopped
	ok, err := l.Check("w", "system.getCPU", true)
	assert.True(t, ok)
	assert.NoError(t, err)
}
