package roster

import "sync"

// courseLocks provides a course-scoped advisory lock. Correctness of a
// sync pass relies on idempotent writes, not exclusivity; the lock only
// prevents lost updates when two passes for the same course interleave
// their list fetches.
type courseLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCourseLocks() *courseLocks {
	return &courseLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the course lock is held and returns the release
// function. Lock entries are never removed; the set of courses is small
// and bounded by actual usage.
func (c *courseLocks) acquire(courseID string) func() {
	c.mu.Lock()

	l, ok := c.locks[courseID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[courseID] = l
	}

	c.mu.Unlock()

	l.Lock()

	return l.Unlock
}
