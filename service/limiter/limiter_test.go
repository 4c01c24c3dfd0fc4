package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_UnderLimit(t *testing.T) {
	sw := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, sw.Allow(), "request %d should be admitted", i+1)
	}
	assert.Equal(t, 5, sw.InWindow())
}

func TestAllow_DeniesOverLimit(t *testing.T) {
	sw := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, sw.Allow())
	}
	for i := 0; i < 5; i++ {
		assert.False(t, sw.Allow(), "request %d should be denied", i+6)
	}

	// Denied requests leave no trace in the window
	assert.Equal(t, 5, sw.InWindow())
}

func TestAllow_RecoversAfterWindow(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	sw := NewWithClock(5, time.Second, clock)

	for i := 0; i < 5; i++ {
		assert.True(t, sw.Allow())
	}
	assert.False(t, sw.Allow())

	// Advance past the window; capacity is fully restored
	now = now.Add(time.Second + time.Millisecond)
	for i := 0; i < 5; i++ {
		assert.True(t, sw.Allow(), "request %d after expiry should be admitted", i+1)
	}
	assert.False(t, sw.Allow())
}

func TestAllow_SlidingPartialExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	sw := NewWithClock(3, time.Second, clock)

	assert.True(t, sw.Allow()) // t=0
	now = now.Add(400 * time.Millisecond)
	assert.True(t, sw.Allow()) // t=400ms
	assert.True(t, sw.Allow()) // t=400ms
	assert.False(t, sw.Allow())

	// At t=1.1s only the first admission has expired
	now = now.Add(700 * time.Millisecond)
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
}

func TestAllow_ZeroLimitDeniesEverything(t *testing.T) {
	sw := New(0, time.Second)
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.InWindow())
}

func TestAllow_BoundedMemory(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	sw := NewWithClock(10, time.Second, clock)

	// Hammer the limiter over many windows; the log must stay bounded
	for i := 0; i < 100; i++ {
		for j := 0; j < 50; j++ {
			sw.Allow()
		}
		now = now.Add(time.Second + time.Millisecond)
	}

	sw.mu.Lock()
	logLen := len(sw.log)
	sw.mu.Unlock()
	assert.LessOrEqual(t, logLen, 10)
}

func TestAllow_Concurrent(t *testing.T) {
	sw := New(50, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sw.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly the window capacity is admitted, never more
	assert.Equal(t, 50, admitted)
	assert.Equal(t, 50, sw.InWindow())
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 7, New(7, time.Second).Limit())
}
