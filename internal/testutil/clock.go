package testutil

import "sync"

// ScriptedClock is a logical clock for tests that hands out chosen times.
// Next returns the scripted times in order, then keeps counting up by one
// from the last of them. It satisfies rete.Clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedClock struct {
	mu     sync.Mutex
	script []int64
	pos    int
	last   int64
	issued []int64
}

// NewScriptedClock creates a clock that returns times first. With no
// times it behaves like a counter starting at 1.
func NewScriptedClock(times ...int64) *ScriptedClock {
	return &ScriptedClock{script: times}
}

// Next returns the next scripted time, or one past the last time issued.
func (c *ScriptedClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos < len(c.script) {
		c.last = c.script[c.pos]
		c.pos++
	} else {
		c.last++
	}
	c.issued = append(c.issued, c.last)
	return c.last
}

// Issued returns every time handed out so far, in order.
func (c *ScriptedClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.issued...)
}

// Reset rewinds the script. After Reset the clock repeats the times it
// was created with.
func (c *ScriptedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = 0
	c.last = 0
	c.issued = nil
}
