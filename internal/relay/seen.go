// ABOUTME: Bounded cache of recently seen message IDs
// ABOUTME: WhatsApp redelivers on reconnect; replies must not be duplicated

package relay

import "sync"

// seenCache remembers the most recent message IDs in arrival order. At
// capacity the oldest ID is forgotten first.
type seenCache struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	max   int
}

func newSeenCache(max int) *seenCache {
	if max <= 0 {
		max = 512
	}
	return &seenCache{ids: make(map[string]struct{}, max), max: max}
}

// checkAndMark reports whether the ID was already seen, marking it if not.
// Empty IDs are never deduplicated.
func (c *seenCache) checkAndMark(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return true
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.ids, oldest)
	}
	c.ids[id] = struct{}{}
	c.order = append(c.order, id)
	return false
}
