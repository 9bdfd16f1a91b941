package tracker

import (
	"testing"

	"github.com/proxtrack/pt/internal/beacon"
	"github.com/stretchr/testify/require"
)

func addrN(n byte) [6]byte { return [6]byte{0, 0, 0, 0, 0, n} }

func TestFindOrAllocTrackAndAnchorPopulateVendorFromOUI(t *testing.T) {
	tb := NewTables()
	appleAddr := [6]byte{0xAC, 0xDE, 0x48, 1, 2, 3}

	tr, ok := tb.FindOrAllocTrack(WifiClient, appleAddr, 0, 0)
	require.True(t, ok)
	require.Equal(t, beacon.VendorApple, tr.Vendor)

	a, ok := tb.FindOrAllocAnchor(appleAddr, 0)
	require.True(t, ok)
	require.Equal(t, beacon.VendorApple, a.Vendor)
}

func TestFindOrAllocTrackLeavesVendorUnknownForLocallyAdministeredAddr(t *testing.T) {
	tb := NewTables()
	// 0x02 set on the first octet marks a locally-administered (randomized)
	// address; its OUI carries no manufacturer meaning even if it happens
	// to collide with a real vendor prefix in the lookup table.
	randomized := [6]byte{0xAE, 0xDE, 0x48, 1, 2, 3}

	tr, ok := tb.FindOrAllocTrack(BleAdvertiser, randomized, 0, 0)
	require.True(t, ok)
	require.Equal(t, beacon.VendorUnknown, tr.Vendor)
}

func TestFindOrAllocTrackReturnsExistingSlot(t *testing.T) {
	tb := NewTables()
	a := addrN(1)

	t1, ok := tb.FindOrAllocTrack(WifiClient, a, 100, 0)
	require.True(t, ok)

	t2, ok := tb.FindOrAllocTrack(WifiClient, a, 200, 0)
	require.True(t, ok)
	require.Same(t, t1, t2)
	require.Equal(t, int64(100), t2.FirstSeenS)
}

func TestFindOrAllocTrackDistinctKindsDoNotCollide(t *testing.T) {
	tb := NewTables()
	a := addrN(1)

	wifi, ok := tb.FindOrAllocTrack(WifiClient, a, 100, 0)
	require.True(t, ok)
	ble, ok := tb.FindOrAllocTrack(BleAdvertiser, a, 100, 0)
	require.True(t, ok)

	require.NotSame(t, wifi, ble)
	require.NotEqual(t, wifi.Index, ble.Index)
}

func TestFindOrAllocTrackEvictsOldestNonWatched(t *testing.T) {
	tb := NewTables()

	var last *Track
	for i := 0; i < MaxTracks; i++ {
		tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(byte(i)), int64(i), 0)
		require.True(t, ok)
		last = tr
	}
	_ = last

	// Table is now full. A new address must evict the oldest (LastSeenS==0).
	novel := [6]byte{0, 0, 0, 0, 1, 0}
	newTrack, ok := tb.FindOrAllocTrack(WifiClient, novel, 1000, 0)
	require.True(t, ok)
	require.Equal(t, novel, newTrack.Addr)

	// The slot for addrN(0) (LastSeenS=0, the oldest) should be gone.
	found := false
	for i := range tb.tracks {
		if tb.tracks[i].InUse && tb.tracks[i].Addr == addrN(0) {
			found = true
		}
	}
	require.False(t, found, "oldest track should have been evicted")
}

func TestFindOrAllocTrackFailsWhenAllWatched(t *testing.T) {
	tb := NewTables()

	for i := 0; i < MaxTracks; i++ {
		tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(byte(i)), int64(i), 0)
		require.True(t, ok)
		tr.Flags |= FlagWatching
	}

	_, ok := tb.FindOrAllocTrack(WifiClient, [6]byte{0, 0, 0, 0, 1, 0}, 9999, 0)
	require.False(t, ok, "table full of watched tracks must refuse a new allocation")
}

func TestFindOrAllocAnchorEvictsOldestNonWatched(t *testing.T) {
	tb := NewTables()

	for i := 0; i < MaxAnchors; i++ {
		_, ok := tb.FindOrAllocAnchor(addrN(byte(i)), int64(i))
		require.True(t, ok)
	}

	newAnchor, ok := tb.FindOrAllocAnchor(addrN(200), 1000)
	require.True(t, ok)
	require.Equal(t, addrN(200), newAnchor.Addr)
}

func TestAllocatedIndicesAreUniqueAndNonZero(t *testing.T) {
	tb := NewTables()
	seen := map[uint16]bool{}

	for i := 0; i < 50; i++ {
		tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(byte(i)), int64(i), 0)
		require.True(t, ok)
		require.NotZero(t, tr.Index)
		require.False(t, seen[tr.Index], "index %d reused", tr.Index)
		seen[tr.Index] = true
	}
	for i := 0; i < 50; i++ {
		a, ok := tb.FindOrAllocAnchor(addrN(byte(100+i)), int64(i))
		require.True(t, ok)
		require.NotZero(t, a.Index)
		require.False(t, seen[a.Index], "index %d reused", a.Index)
		seen[a.Index] = true
	}
}

func TestUpdateTrackFromObsWindowTransition(t *testing.T) {
	tb := NewTables()
	tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(1), 0, 0)
	require.True(t, ok)

	tb.UpdateTrackFromObs(tr, -60, 1, 0, 3)
	require.EqualValues(t, 1, tr.SeenWindows)
	require.EqualValues(t, 1, tr.NearWindows, "rssi -60 >= RSSINearDBm(-65) should count as near")

	// Same window (1/10==0) should not re-bump SeenWindows.
	tb.UpdateTrackFromObs(tr, -60, 5, 0, 3)
	require.EqualValues(t, 1, tr.SeenWindows)

	// New window.
	tb.UpdateTrackFromObs(tr, -90, 11, 0, 3)
	require.EqualValues(t, 2, tr.SeenWindows)
	require.EqualValues(t, 1, tr.NearWindows, "rssi -90 should not count as near")
}

func TestUpdateTrackFromObsEMARSSIAndAbsDev(t *testing.T) {
	tb := NewTables()
	tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(1), 0, 0)
	require.True(t, ok)
	require.EqualValues(t, initialEMARSSI, tr.EMARSSI, "fresh track seeds ema_rssi at -100")
	require.EqualValues(t, 0, tr.EMAAbsDev, "fresh track seeds ema_abs_dev at 0")

	// spec.md §4.3 worked example: ema_abs_dev is |rssi-prev| (the raw
	// observation against the pre-update ema), not |new_ema-prev| -
	// the latter is scaled down by emaRSSIAlpha and would give 1.6 here.
	tb.UpdateTrackFromObs(tr, -60, 0, 0, 1)
	require.InDelta(t, -92.0, tr.EMARSSI, 1e-6, "0.8*-100 + 0.2*-60 = -92")
	require.InDelta(t, 8.0, tr.EMAAbsDev, 1e-6, "0.2*|-60-(-100)| = 8")
}

func TestUpdateTrackFromObsEnvHitsOnSegmentChange(t *testing.T) {
	tb := NewTables()
	tr, ok := tb.FindOrAllocTrack(WifiClient, addrN(1), 0, 0)
	require.True(t, ok)
	require.EqualValues(t, 1, tr.EnvHits, "fresh track starts with EnvHits=1")

	tb.UpdateTrackFromObs(tr, -70, 1, 0, 1)
	require.EqualValues(t, 1, tr.EnvHits, "same segment id must not bump EnvHits")

	tb.UpdateTrackFromObs(tr, -70, 2, 1, 1)
	require.EqualValues(t, 2, tr.EnvHits, "segment id change must bump EnvHits")
}

func TestExpireTablesRemovesOnlyIdleNonWatched(t *testing.T) {
	tb := NewTables()

	wifiTrack, ok := tb.FindOrAllocTrack(WifiClient, addrN(1), 0, 0)
	require.True(t, ok)
	bleTrack, ok := tb.FindOrAllocTrack(BleAdvertiser, addrN(2), 0, 0)
	require.True(t, ok)
	watched, ok := tb.FindOrAllocTrack(WifiClient, addrN(3), 0, 0)
	require.True(t, ok)
	watched.Flags |= FlagWatching

	tb.ExpireTables(TrackIdleSecWifi + 1)
	require.False(t, wifiTrack.InUse, "wifi track past its idle threshold must expire")
	require.True(t, bleTrack.InUse, "ble track idle threshold is longer, must survive")
	require.True(t, watched.InUse, "watched track must never expire")

	tb.ExpireTables(TrackIdleSecBLE + 1)
	require.False(t, bleTrack.InUse, "ble track past its idle threshold must expire")
}

func TestClearNonWatchingPreservesWatchedAndRecomputesNextIndex(t *testing.T) {
	tb := NewTables()

	plain, ok := tb.FindOrAllocTrack(WifiClient, addrN(1), 0, 0)
	require.True(t, ok)
	watched, ok := tb.FindOrAllocTrack(WifiClient, addrN(2), 0, 0)
	require.True(t, ok)
	watched.Flags |= FlagWatching

	tb.clearNonWatching()

	require.False(t, plain.InUse)
	require.True(t, watched.InUse)
	require.Equal(t, watched.Index+1, tb.nextIndex)
}
