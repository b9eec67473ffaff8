package ledger

import (
	"sync"
	"time"
)

// entryClock stamps ledger entries with UTC instants that never decrease
// within one process, even if the wall clock steps backwards.
type entryClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *entryClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}
