package tracker

import (
	"testing"
	"time"

	"github.com/proxtrack/pt/internal/timeutil"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshotSortsWatchedFirst(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	dt := New(Config{Clock: clock})
	require.NoError(t, dt.Begin(8))
	defer dt.Stop()

	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -50, TSSec: 0})
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(2), RSSIDBm: -90, TSSec: 0})
	// give the consumer goroutine a moment to drain.
	for i := 0; i < 50 && dt.queue.Len() > 0; i++ {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: 2, Watching: true})

	snap := dt.BuildSnapshot(10, 0)
	require.NotEmpty(t, snap.Entities)
	// The watched entity (index 2, the weaker RSSI one) must sort first
	// despite its lower RSSI/score.
	require.True(t, snap.Entities[0].Watching)
	require.Equal(t, uint16(2), snap.Entities[0].Index)
}

func TestBuildSnapshotRespectsMaxOut(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	dt := New(Config{Clock: clock})
	require.NoError(t, dt.Begin(32))
	defer dt.Stop()

	for i := 0; i < 5; i++ {
		dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(byte(i)), RSSIDBm: -60, TSSec: 0})
	}
	for i := 0; i < 50 && dt.queue.Len() > 0; i++ {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	snap := dt.BuildSnapshot(2, 0)
	require.Len(t, snap.Entities, 2)
}

func TestScorePercentilesIgnoresAnchorsAndEmptyIsZero(t *testing.T) {
	p50, p90 := ScorePercentiles(Snapshot{})
	require.Equal(t, 0.0, p50)
	require.Equal(t, 0.0, p90)

	snap := Snapshot{Entities: []EntityView{
		{Kind: EntityWifiAp, Score: 999},
		{Kind: EntityWifiClient, Score: 10},
		{Kind: EntityWifiClient, Score: 50},
		{Kind: EntityWifiClient, Score: 90},
	}}
	p50, p90 = ScorePercentiles(snap)
	require.Equal(t, 50.0, p50)
	require.Equal(t, 90.0, p90)
}
