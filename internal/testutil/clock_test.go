package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrozenClock_StaysPut(t *testing.T) {
	clock := NewFrozenClock(Epoch)
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch, clock.Now())
}

func TestFrozenClock_AdvanceAndSet(t *testing.T) {
	clock := NewFrozenClock(Epoch)

	clock.Advance(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())

	later := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFrozenClock_ConcurrentAdvance(t *testing.T) {
	clock := NewFrozenClock(Epoch)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(50*time.Second), clock.Now())
}
