package notify

import (
	"sync"
	"time"
)

// Cooldown suppresses repeat notifications to the same subscriber within
// a window, regardless of which destination failed. It keeps state in
// memory, so a restart may re-notify once.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldown creates a cooldown tracker. A non-positive window disables
// suppression.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether a notification to the subscriber may be sent
// now, and records the send when it may.
func (c *Cooldown) Allow(subscriber string) bool {
	if c.window <= 0 {
		return true
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if sent, ok := c.last[subscriber]; ok && now.Sub(sent) < c.window {
		return false
	}
	c.last[subscriber] = now

	// Opportunistic cleanup keeps the map from growing unbounded.
	if len(c.last) > 4096 {
		for k, sent := range c.last {
			if now.Sub(sent) >= c.window {
				delete(c.last, k)
			}
		}
	}
	return true
}
