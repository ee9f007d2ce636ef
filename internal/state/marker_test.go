package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testMarkerStore(t *testing.T, ms RaidMarkerStore) {
	assert := assert.New(t)
	ctx := context.Background()

	_, ok, err := ms.Get(ctx, "g1")
	assert.NoError(err)
	assert.False(ok)

	started, err := ms.TryStart(ctx, "g1", "raid-a", time.Minute)
	assert.NoError(err)
	assert.True(started)

	started, err = ms.TryStart(ctx, "g1", "raid-b", time.Minute)
	assert.NoError(err)
	assert.False(started)

	id, ok, err := ms.Get(ctx, "g1")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("raid-a", id)

	// other guilds are independent
	started, err = ms.TryStart(ctx, "g2", "raid-c", time.Minute)
	assert.NoError(err)
	assert.True(started)

	cleared, err := ms.Clear(ctx, "g1", "raid-b")
	assert.NoError(err)
	assert.False(cleared)

	cleared, err = ms.Clear(ctx, "g1", "raid-a")
	assert.NoError(err)
	assert.True(cleared)

	_, ok, err = ms.Get(ctx, "g1")
	assert.NoError(err)
	assert.False(ok)

	_, err = ms.Clear(ctx, "g2", "raid-c")
	assert.NoError(err)
}

func TestMemMarkerStoreBasics(t *testing.T) {
	testMarkerStore(t, NewMemMarkerStore())
}

func TestMemMarkerStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Now()
	ms := NewMemMarkerStore()
	ms.SetClock(func() time.Time { return now })

	started, _ := ms.TryStart(ctx, "g1", "raid-a", time.Minute)
	assert.True(started)

	now = now.Add(2 * time.Minute)
	_, ok, _ := ms.Get(ctx, "g1")
	assert.False(ok)

	started, _ = ms.TryStart(ctx, "g1", "raid-b", time.Minute)
	assert.True(started)
}

func TestMemMarkerStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ms := NewMemMarkerStore()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := ms.TryStart(ctx, "g1", "raid", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(int32(1), wins.Load())
}

func TestRedisMarkerStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")

	ms, err := NewRedisMarkerStore("redis://localhost:6379/0", "antiraid-test/")
	if err != nil {
		t.Fail()
	}
	defer ms.Close()
	testMarkerStore(t, ms)
}

func TestGuildStateCounters(t *testing.T) {
	assert := assert.New(t)
	gs := NewGuildState()

	at := time.Unix(1700000000, 0)
	gs.RecordRaid("g1", at)
	gs.Counters("g1").MembersBanned.Add(3)

	snap := gs.Snapshot("g1")
	assert.Equal(uint32(1), snap.RaidsDetected)
	assert.Equal(uint32(3), snap.MembersBanned)
	assert.True(snap.LastRaidAt.Equal(at))

	assert.True(gs.Snapshot("g2").LastRaidAt.IsZero())

	gs.Reset("g1")
	assert.Equal(uint32(0), gs.Snapshot("g1").RaidsDetected)
	assert.Equal("RAID_ACTIVE", PhaseRaidActive.String())
}
