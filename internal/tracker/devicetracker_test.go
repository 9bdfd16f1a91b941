package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/proxtrack/pt/internal/fsutil"
	"github.com/proxtrack/pt/internal/timeutil"
	"github.com/stretchr/testify/require"
)

// fakeEventRecorder is a minimal EventRecorder for asserting which
// diagnostics events DeviceTracker emits, without a real diagstore.Store.
type fakeEventRecorder struct {
	mu     sync.Mutex
	events []fakeEvent
}

type fakeEvent struct {
	TSUnix int64
	Kind   string
	Detail string
}

func (f *fakeEventRecorder) InsertEvent(tsUnix int64, kind, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEvent{TSUnix: tsUnix, Kind: kind, Detail: detail})
	return nil
}

func (f *fakeEventRecorder) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []string
	for _, e := range f.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func newTestTracker(t *testing.T) *DeviceTracker {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	fs := fsutil.NewMemoryFileSystem()
	dt := New(Config{
		Clock:         clock,
		FS:            fs,
		WatchlistDir:  "/wl",
		WatchlistPath: "/wl/watchlist.json",
		KMLPath:       "/wl/watchlist.kml",
	})
	require.NoError(t, dt.Begin(16))
	t.Cleanup(dt.Stop)
	return dt
}

func TestBeginRejectsNegativeQueueCapacity(t *testing.T) {
	dt := New(Config{})
	require.Error(t, dt.Begin(-1))
}

func TestEnqueueBeforeBeginIsRejected(t *testing.T) {
	dt := New(Config{})
	ok := dt.Enqueue(Observation{})
	require.False(t, ok)
}

func TestUpdateEntityTogglesWatchingByIndex(t *testing.T) {
	dt := newTestTracker(t)
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -60, TSSec: 0})
	waitForQueueDrain(dt)

	snap := dt.BuildSnapshot(10, 0)
	require.Len(t, snap.Entities, 1)
	idx := snap.Entities[0].Index

	ok := dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: idx, Watching: true})
	require.True(t, ok)

	snap = dt.BuildSnapshot(10, 0)
	require.True(t, snap.Entities[0].Watching)

	ok = dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: idx, Watching: false})
	require.True(t, ok)
	snap = dt.BuildSnapshot(10, 0)
	require.False(t, snap.Entities[0].Watching)
}

func TestUpdateEntityUnknownIndexReturnsFalse(t *testing.T) {
	dt := newTestTracker(t)
	ok := dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: 999, Watching: true})
	require.False(t, ok)
}

func TestResetClearsNonWatchedButKeepsWatched(t *testing.T) {
	dt := newTestTracker(t)
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -60, TSSec: 0})
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(2), RSSIDBm: -60, TSSec: 0})
	waitForQueueDrain(dt)

	snap := dt.BuildSnapshot(10, 0)
	require.Len(t, snap.Entities, 2)
	watchedIdx := snap.Entities[0].Index
	dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: watchedIdx, Watching: true})

	dt.Reset()

	snap = dt.BuildSnapshot(10, 0)
	require.Len(t, snap.Entities, 1)
	require.Equal(t, watchedIdx, snap.Entities[0].Index)
	require.True(t, snap.Entities[0].Watching)
}

func TestWatchlistRoundTrip(t *testing.T) {
	dt := newTestTracker(t)

	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -60, TSSec: 0})
	waitForQueueDrain(dt)

	snap := dt.BuildSnapshot(10, 0)
	require.Len(t, snap.Entities, 1)
	idx := snap.Entities[0].Index
	dt.UpdateEntity(EntityView{Kind: EntityWifiClient, Index: idx, Watching: true})

	require.NoError(t, dt.WriteWatchlist())

	fresh := New(Config{
		Clock:         timeutil.NewMockClock(time.Unix(0, 0)),
		FS:            dt.fs,
		WatchlistDir:  dt.watchlistDir,
		WatchlistPath: dt.watchlistPath,
	})
	require.NoError(t, fresh.Begin(16))
	defer fresh.Stop()

	snap2 := fresh.BuildSnapshot(10, 0)
	require.Len(t, snap2.Entities, 1)
	require.True(t, snap2.Entities[0].Watching)
	require.Equal(t, addrN(1), snap2.Entities[0].Addr)
}

func TestWriteWatchlistKMLProducesOneGeoTaggedPlacemark(t *testing.T) {
	dt := newTestTracker(t)
	dt.Enqueue(Observation{Kind: WifiApBeacon, Addr: addrN(1), RSSIDBm: -60, TSSec: 0})
	waitForQueueDrain(dt)
	dt.SetGPSFix(true, 2.0, 1.0)
	dt.Enqueue(Observation{Kind: WifiApBeacon, Addr: addrN(1), RSSIDBm: -60, TSSec: 1})
	waitForQueueDrain(dt)

	snap := dt.BuildSnapshot(10, 0)
	require.Len(t, snap.Entities, 1)
	dt.UpdateEntity(EntityView{Kind: EntityWifiAp, Index: snap.Entities[0].Index, Watching: true})

	require.NoError(t, dt.WriteWatchlistKML())

	data, err := dt.fs.ReadFile(dt.kmlPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "<Placemark>")
	require.Contains(t, string(data), "1.00000000,2.00000000,0")
}

func TestSegmentIDAndMoveSegmentsAccessors(t *testing.T) {
	dt := newTestTracker(t)
	require.EqualValues(t, 0, dt.SegmentID())
	require.EqualValues(t, 0, dt.MoveSegments())
	require.EqualValues(t, 0, dt.LastEnvTickS())
}

func TestSetGPSFixInvalidClearsGNSSAnchor(t *testing.T) {
	dt := newTestTracker(t)
	dt.SetGPSFix(true, 1.0, 1.0)
	dt.SetGPSFix(false, 0, 0)
	require.False(t, dt.seg.gnssAnchorValid)
}

func TestWatchlistLoadAndSaveRecordDiagnosticsEvents(t *testing.T) {
	rec := &fakeEventRecorder{}
	dt := New(Config{
		Clock:         timeutil.NewMockClock(time.Unix(0, 0)),
		FS:            fsutil.NewMemoryFileSystem(),
		WatchlistDir:  "/wl",
		WatchlistPath: "/wl/watchlist.json",
		Events:        rec,
	})
	require.NoError(t, dt.Begin(16))
	defer dt.Stop()

	require.NoError(t, dt.WriteWatchlist())
	require.NoError(t, dt.ReadWatchlist())

	require.Contains(t, rec.kinds(), "watchlist_save")
	require.Contains(t, rec.kinds(), "watchlist_load")
}

func TestSegmentAdvanceRecordsDiagnosticsEvent(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := &fakeEventRecorder{}
	dt := New(Config{Clock: clock, Events: rec})
	require.NoError(t, dt.Begin(16))
	defer dt.Stop()

	dt.SetGPSFix(true, 37.7749, -122.4194)
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -60, TSSec: 0})
	waitForQueueDrain(dt)
	require.NotContains(t, rec.kinds(), "segment_advance", "first fix only seeds the GNSS anchor")

	clock.Set(time.Unix(20, 0))
	dt.SetGPSFix(true, 37.7749, -122.4200) // ~53m east: past the 50m/10s threshold
	dt.Enqueue(Observation{Kind: WifiProbeReq, Addr: addrN(1), RSSIDBm: -60, TSSec: 20})
	waitForQueueDrain(dt)

	require.Contains(t, rec.kinds(), "segment_advance")
	require.EqualValues(t, 1, dt.SegmentID())
}
