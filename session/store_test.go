package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naparnik-ai/copilot/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type countingObserver struct {
	mu      sync.Mutex
	created int
	evicted int
	expired int
}

func (o *countingObserver) SessionCreated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *countingObserver) SessionEvicted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evicted++
}

func (o *countingObserver) SessionsExpired(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expired += count
}

func TestNewStoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		ttl     time.Duration
		wantErr bool
	}{
		{name: "valid", max: 10, ttl: time.Hour, wantErr: false},
		{name: "zero max", max: 0, ttl: time.Hour, wantErr: true},
		{name: "negative max", max: -1, ttl: time.Hour, wantErr: true},
		{name: "zero ttl", max: 10, ttl: 0, wantErr: true},
		{name: "negative ttl", max: 10, ttl: -time.Second, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.max, tt.ttl)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfig(err), "expected configuration error, got %v", err)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
		})
	}
}

func TestAcquireEmptyStore(t *testing.T) {
	store, err := NewStore(5, time.Hour)
	require.NoError(t, err)

	id, ok := store.Acquire(false)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestAcquireReturnsMostRecentlyUsed(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")
	clk.Advance(5 * time.Minute)
	store.Touch("conv-b")

	id, ok := store.Acquire(false)
	require.True(t, ok)
	assert.Equal(t, "conv-b", id)
}

func TestAcquireRecencyTieBreak(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	// Same instant, so the lexicographically smallest id wins.
	store.Touch("conv-b")
	store.Touch("conv-a")
	store.Touch("conv-c")

	id, ok := store.Acquire(false)
	require.True(t, ok)
	assert.Equal(t, "conv-a", id)
}

func TestAcquireAtCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(2, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")
	clk.Advance(5 * time.Minute)
	store.Touch("conv-b")

	id, ok := store.Acquire(false)
	require.True(t, ok)
	assert.Equal(t, "conv-b", id)

	// The stalest entry made way for the id the next send may register.
	ids := make(map[string]bool)
	for _, sess := range store.Snapshot() {
		ids[sess.ID] = true
	}
	assert.False(t, ids["conv-a"])
	assert.True(t, ids["conv-b"])
}

func TestAcquireAtCapacityOfOneCreatesFresh(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(1, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")

	// Evicting the only entry leaves nothing to reuse.
	id, ok := store.Acquire(false)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, 0, store.Len())
}

func TestAcquireForceNewBypassesLiveSessions(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")

	id, ok := store.Acquire(true)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, 1, store.Len(), "force new must not drop live sessions")
}

func TestAcquireSweepsExpiredEntries(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")
	clk.Advance(time.Hour + time.Second)

	id, ok := store.Acquire(false)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, 0, store.Len())
}

func TestSweepRespectsTTLBoundary(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-exact")
	clk.Advance(time.Hour)

	// Idle age equal to the TTL is still live.
	assert.Equal(t, 0, store.Sweep())
	assert.Equal(t, 1, store.Len())

	clk.Advance(time.Nanosecond)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestTouchInsertsUnknownID(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-healed")

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "conv-healed", snap[0].ID)
	assert.Equal(t, clk.Now(), snap[0].CreatedAt)
	assert.Equal(t, clk.Now(), snap[0].LastUsedAt)
}

func TestTouchBumpsRecencyOnly(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(5, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")
	created := clk.Now()
	clk.Advance(10 * time.Minute)
	store.Touch("conv-a")

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, created, snap[0].CreatedAt, "created timestamp must stay immutable")
	assert.Equal(t, created.Add(10*time.Minute), snap[0].LastUsedAt)
}

func TestTouchEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(2, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	store.Touch("conv-a")
	clk.Advance(time.Minute)
	store.Touch("conv-b")
	clk.Advance(time.Minute)
	store.Touch("conv-c")

	assert.Equal(t, 2, store.Len())
	ids := make(map[string]bool)
	for _, sess := range store.Snapshot() {
		ids[sess.ID] = true
	}
	assert.False(t, ids["conv-a"], "oldest session should have been evicted")
	assert.True(t, ids["conv-b"])
	assert.True(t, ids["conv-c"])
}

func TestEvictionTieBreak(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(2, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	// Both at the same instant, so conv-a is the deterministic victim.
	store.Touch("conv-b")
	store.Touch("conv-a")
	clk.Advance(time.Minute)
	store.Touch("conv-c")

	ids := make(map[string]bool)
	for _, sess := range store.Snapshot() {
		ids[sess.ID] = true
	}
	assert.False(t, ids["conv-a"])
	assert.True(t, ids["conv-b"])
	assert.True(t, ids["conv-c"])
}

func TestPopulationNeverExceedsBound(t *testing.T) {
	clk := newFakeClock()
	store, err := NewStore(3, time.Hour, WithClock(clk.Now))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		store.Touch(fmt.Sprintf("conv-%02d", i))
		clk.Advance(time.Second)
		require.LessOrEqual(t, store.Len(), 3)
	}
}

func TestForgetUnknownIDIsNoop(t *testing.T) {
	store, err := NewStore(3, time.Hour)
	require.NoError(t, err)

	store.Forget("conv-missing")
	store.Touch("conv-a")
	store.Forget("conv-a")
	assert.Equal(t, 0, store.Len())
}

func TestObserverCounts(t *testing.T) {
	clk := newFakeClock()
	obs := &countingObserver{}
	store, err := NewStore(2, time.Hour, WithClock(clk.Now), WithObserver(obs))
	require.NoError(t, err)

	store.Touch("conv-a")
	clk.Advance(time.Minute)
	store.Touch("conv-b")
	clk.Advance(time.Minute)
	store.Touch("conv-c") // evicts conv-a

	clk.Advance(2 * time.Hour)
	store.Sweep()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 3, obs.created)
	assert.Equal(t, 1, obs.evicted)
	assert.Equal(t, 2, obs.expired)
}

func TestStats(t *testing.T) {
	store, err := NewStore(7, 90*time.Minute)
	require.NoError(t, err)

	store.Touch("conv-a")
	stats := store.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 7, stats.Capacity)
	assert.Equal(t, 90*time.Minute, stats.TTL)
}

func TestConcurrentTouchHoldsBound(t *testing.T) {
	store, err := NewStore(4, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Touch(fmt.Sprintf("conv-%d-%d", n, j))
				store.Acquire(false)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 4)
}
