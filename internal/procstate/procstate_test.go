package procstate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/freezewatch/internal/watch"
)

func TestRegistry_Transitions(t *testing.T) {
	r := New()

	assert.Equal(t, watch.ForegroundUnknown, r.ForegroundState(100))
	assert.Equal(t, int64(0), r.LastForegroundTimestamp(100))

	assert.True(t, r.Observe("AAFWK", "ABILITY_ONFOREGROUND", 100, 1000))
	assert.Equal(t, watch.ForegroundYes, r.ForegroundState(100))
	assert.Equal(t, int64(1000), r.LastForegroundTimestamp(100))

	assert.True(t, r.Observe("AAFWK", "ABILITY_ONBACKGROUND", 100, 2000))
	assert.Equal(t, watch.ForegroundNo, r.ForegroundState(100))
	assert.Equal(t, int64(1000), r.LastForegroundTimestamp(100), "background keeps the last foreground time")
}

func TestRegistry_IgnoresUnrelatedEvents(t *testing.T) {
	r := New()

	assert.False(t, r.Observe("ACE", "ABILITY_ONFOREGROUND", 100, 1000), "wrong domain")
	assert.False(t, r.Observe("AAFWK", "LIFECYCLE_TIMEOUT", 100, 1000), "not a lifecycle event")
	assert.False(t, r.Observe("AAFWK", "ABILITY_ONFOREGROUND", 0, 1000), "no pid")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_OutOfOrder(t *testing.T) {
	r := New()

	r.Observe("AAFWK", "ABILITY_ONBACKGROUND", 100, 5000)
	assert.False(t, r.Observe("AAFWK", "ABILITY_ONFOREGROUND", 100, 4000))
	assert.Equal(t, watch.ForegroundNo, r.ForegroundState(100))
}

func TestRegistry_CustomEvents(t *testing.T) {
	r := New(WithDomain("WINDOWMANAGER"), WithEvents("FOCUS_GAINED", ""))

	assert.True(t, r.Observe("WINDOWMANAGER", "FOCUS_GAINED", 1, 10))
	assert.True(t, r.Observe("WINDOWMANAGER", "ABILITY_ONBACKGROUND", 1, 20))
	assert.Equal(t, watch.ForegroundNo, r.ForegroundState(1))
}

func TestRegistry_Prune(t *testing.T) {
	r := New()
	r.Observe("AAFWK", "ABILITY_ONFOREGROUND", 1, 1000)
	r.Observe("AAFWK", "ABILITY_ONFOREGROUND", 2, 5000)

	assert.Equal(t, 1, r.Prune(2000))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, watch.ForegroundUnknown, r.ForegroundState(1))
	assert.Equal(t, watch.ForegroundYes, r.ForegroundState(2))
}

func TestRegistry_ThreadSafe(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(pid int64) {
			defer wg.Done()
			r.Observe("AAFWK", "ABILITY_ONFOREGROUND", pid, pid)
			_ = r.ForegroundState(pid)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
