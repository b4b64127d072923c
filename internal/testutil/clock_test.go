package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptedClock_ScriptThenCount(t *testing.T) {
	c := NewScriptedClock(10, 5)

	assert.Equal(t, int64(10), c.Next())
	assert.Equal(t, int64(5), c.Next())
	assert.Equal(t, int64(6), c.Next())
	assert.Equal(t, []int64{10, 5, 6}, c.Issued())
}

func TestScriptedClock_EmptyScriptCounts(t *testing.T) {
	c := NewScriptedClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
}

func TestScriptedClock_Reset(t *testing.T) {
	c := NewScriptedClock(7)
	c.Next()
	c.Next()

	c.Reset()
	assert.Empty(t, c.Issued())
	assert.Equal(t, int64(7), c.Next())
	assert.Equal(t, int64(8), c.Next())
}

func TestScriptedClock_Concurrent(t *testing.T) {
	c := NewScriptedClock()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Next()
		}()
	}
	wg.Wait()

	issued := c.Issued()
	assert.Len(t, issued, 50)
	for i, v := range issued {
		assert.Equal(t, int64(i+1), v)
	}
}
