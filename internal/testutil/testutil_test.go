package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_StartsAtGivenTime(t *testing.T) {
	clock := NewManualClock(7)
	assert.Equal(t, 7.0, clock.Now())
	assert.Zero(t, clock.Pending())
}

func TestManualClock_FiresInTargetOrder(t *testing.T) {
	clock := NewManualClock(0)
	var order []string
	var at []float64
	record := func(name string) func() {
		return func() {
			order = append(order, name)
			at = append(at, clock.Now())
		}
	}

	clock.AfterFunc(3, record("c"))
	clock.AfterFunc(1, record("a"))
	clock.AfterFunc(1, record("b"))
	clock.AfterFunc(10, record("late"))

	clock.Advance(5)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []float64{1, 1, 3}, at)
	assert.Equal(t, 5.0, clock.Now())
	assert.Equal(t, 1, clock.Pending())
}

func TestManualClock_NeverFiresInsideAfterFunc(t *testing.T) {
	clock := NewManualClock(0)
	fired := false
	clock.AfterFunc(-1, func() { fired = true })
	assert.False(t, fired)

	clock.Advance(0)
	assert.True(t, fired)
}

func TestManualClock_TimersCreatedDuringAdvance(t *testing.T) {
	clock := NewManualClock(0)
	var at []float64
	clock.AfterFunc(1, func() {
		at = append(at, clock.Now())
		clock.AfterFunc(1, func() { at = append(at, clock.Now()) })
	})

	clock.Advance(3)
	assert.Equal(t, []float64{1, 2}, at)
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock(0)
	fired := false
	timer := clock.AfterFunc(1, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(2)
	assert.False(t, fired)
	assert.Zero(t, clock.Pending())
}

func TestManualClock_FireEarly(t *testing.T) {
	clock := NewManualClock(0)
	var seen float64 = -1
	clock.AfterFunc(4, func() { seen = clock.Now() })

	next, ok := clock.NextAt()
	require.True(t, ok)
	assert.Equal(t, 4.0, next)

	require.True(t, clock.FireEarly())
	assert.Equal(t, 0.0, seen)
	assert.False(t, clock.FireEarly())

	_, ok = clock.NextAt()
	assert.False(t, ok)
}

func TestManualClock_SetBackwards(t *testing.T) {
	clock := NewManualClock(10)
	fired := false
	clock.AfterFunc(1, func() { fired = true })

	clock.Set(5)
	assert.Equal(t, 5.0, clock.Now())
	assert.False(t, fired)
}

func TestManualClock_ConcurrentAfterFunc(t *testing.T) {
	clock := NewManualClock(0)
	const goroutines = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			clock.AfterFunc(1, func() {})
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, clock.Pending())
	clock.Advance(1)
	assert.Zero(t, clock.Pending())
}

func TestFixedIDGenerator_Fixed(t *testing.T) {
	gen := NewFixedIDGenerator("run-a")
	assert.Equal(t, "run-a", gen.Generate())
	assert.Equal(t, "run-a", gen.Generate())
}

func TestFixedIDGenerator_Counting(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, "session-1", gen.Generate())
	assert.Equal(t, "session-2", gen.Generate())
}
