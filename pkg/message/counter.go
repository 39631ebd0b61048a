package message

import "sync"

// ActionCounter hands out action ids for one session.
//
// Ids are strictly increasing modulo MaxActionID. The first id handed out is
// initialActionID+1. It is safe for concurrent use, although the protocol
// only ever has one command in flight per session.
type ActionCounter struct {
	next uint32
	mu   sync.Mutex
}

// NewActionCounter creates a counter for a session whose challenge carried
// initialActionID.
func NewActionCounter(initialActionID uint32) *ActionCounter {
	return &ActionCounter{
		next: advanceActionID(initialActionID),
	}
}

// Next returns the id for the next command and advances the counter.
func (c *ActionCounter) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.next
	c.next = advanceActionID(current)
	return current
}

// Current returns the id the next command will use, without advancing.
func (c *ActionCounter) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// ValidateActionID reports whether a response id matches the id of the
// command it answers. A mismatch means the response is stale or out of
// order; callers treat it as a warning.
func ValidateActionID(responseID, expectedID uint32) bool {
	return responseID == expectedID
}

func advanceActionID(id uint32) uint32 {
	return uint32((uint64(id) + 1) % uint64(MaxActionID))
}
