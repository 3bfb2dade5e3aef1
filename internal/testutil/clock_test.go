package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_DoesNotAdvance(t *testing.T) {
	c := At(2024, time.January, 5)
	first := c.Now()
	time.Sleep(time.Millisecond)
	assert.Equal(t, first, c.Now())
}

func TestFixedClock_AddDays(t *testing.T) {
	c := At(2024, time.January, 31)
	c.AddDays(1)
	assert.Equal(t, "2024-02-01", c.Now().Format("2006-01-02"))
}

func TestFixedClock_SetAndAdvance(t *testing.T) {
	c := NewFixedClock(time.Time{})
	target := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	c.Set(target)
	c.Advance(time.Hour)
	assert.Equal(t, target.Add(time.Hour), c.Now())
}

func TestSequentialIDs_Concurrent(t *testing.T) {
	g := NewSequentialIDs("evt")
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(g.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, "evt-51", g.Generate())
}
