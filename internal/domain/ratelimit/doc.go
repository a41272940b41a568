// Package ratelimit bounds how often each widget may invoke each capability.
//
// Counting is per (widget, capability) over fixed windows: at most Limit
// calls per Window, with the window restarting on the first call after it
// elapses. A periodic sweep drops entries idle longer than TTL so widgets
// that stop calling do not pin memory.
//
// Example Usage:
//
//	lim := ratelimit.New(ratelimit.DefaultConfig(), logger)
//	defer lim.Destroy()
//
//	if _, err := lim.Check("clock", "system.getCPU", true); err != nil {
//	    return err // RateLimitExceeded
//	}
package ratelimit
