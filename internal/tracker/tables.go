package tracker

import (
	"github.com/proxtrack/pt/internal/beacon"
	"github.com/proxtrack/pt/internal/vendor"
)

// vendorForAddr applies the OUI map (spec.md §4.8) to a freshly allocated
// slot's address, except for locally-administered (randomized) addresses,
// whose top 24 bits carry no manufacturer meaning.
func vendorForAddr(addr [6]byte) beacon.Vendor {
	if vendor.IsLocallyAdministered(addr) {
		return beacon.VendorUnknown
	}
	return vendor.Lookup(addr)
}

// Flags bits stored on Track and Anchor slots.
const (
	FlagHasGeo   uint8 = 1 << 0
	FlagWatching uint8 = 1 << 1
)

// Track is a client-like radio: a Wi-Fi station or a BLE advertiser.
type Track struct {
	InUse bool
	Kind  TrackKind
	Addr  [6]byte
	Vendor beacon.Vendor
	Flags  uint8
	Index  uint16

	FirstSeenS int64
	LastSeenS  int64

	LastWindow  int64
	SeenWindows uint32
	NearWindows uint32

	EMARSSI   float32
	EMAAbsDev float32

	LastSegmentID uint32
	EnvHits       uint32

	CrowdEMA float32

	LastGeoS int64
	LastLat  float64
	LastLon  float64

	TrackerType           beacon.TrackerType
	TrackerGoogleMfr      beacon.GoogleMfr
	TrackerSamsungSubtype beacon.SamsungSubtype
	TrackerConfidence     uint8
}

func (t *Track) hasGeo() bool   { return t.Flags&FlagHasGeo != 0 }
func (t *Track) watching() bool { return t.Flags&FlagWatching != 0 }

// Anchor is a Wi-Fi access point, keyed by BSSID.
type Anchor struct {
	InUse  bool
	Addr   [6]byte
	Vendor beacon.Vendor
	Flags  uint8
	Index  uint16

	SSID    [maxSSIDLen]byte
	SSIDLen uint8

	LastRSSI  int8
	LastSeenS int64

	LastGeoS int64
	LastLat  float64
	LastLon  float64

	BestRSSI int8
	BestLat  float64
	BestLon  float64

	WSum float64
	WLat float64
	WLon float64
}

func (a *Anchor) hasGeo() bool   { return a.Flags&FlagHasGeo != 0 }
func (a *Anchor) watching() bool { return a.Flags&FlagWatching != 0 }

// SSIDString returns the anchor's SSID as a string.
func (a *Anchor) SSIDString() string {
	return string(a.SSID[:a.SSIDLen])
}

// Tables holds the fixed-capacity Track and Anchor slot arrays. All methods
// assume the caller already holds DeviceTracker's single lock; Tables does
// no locking of its own.
type Tables struct {
	tracks    [MaxTracks]Track
	anchors   [MaxAnchors]Anchor
	nextIndex uint16
}

// NewTables returns an empty Tables with index allocation starting at 1
// (0 is reserved as "no index").
func NewTables() *Tables {
	return &Tables{nextIndex: 1}
}

func (tb *Tables) allocIndex() uint16 {
	idx := tb.nextIndex
	tb.nextIndex++
	return idx
}

// FindOrAllocTrack returns the in-use slot matching (kind, addr), or
// allocates a free or evictable one. It returns ok=false only when the
// table is full of Watching slots and addr does not already have one.
func (tb *Tables) FindOrAllocTrack(kind TrackKind, addr [6]byte, tsSec int64, segmentID uint32) (*Track, bool) {
	var free *Track
	var evictCandidate *Track
	for i := range tb.tracks {
		t := &tb.tracks[i]
		if t.InUse && t.Kind == kind && t.Addr == addr {
			return t, true
		}
		if !t.InUse {
			if free == nil {
				free = t
			}
			continue
		}
		if t.watching() {
			continue
		}
		if evictCandidate == nil || t.LastSeenS < evictCandidate.LastSeenS {
			evictCandidate = t
		}
	}

	slot := free
	if slot == nil {
		slot = evictCandidate
	}
	if slot == nil {
		return nil, false
	}

	*slot = Track{
		InUse:         true,
		Kind:          kind,
		Addr:          addr,
		Vendor:        vendorForAddr(addr),
		Index:         tb.allocIndex(),
		FirstSeenS:    tsSec,
		LastSeenS:     tsSec,
		LastWindow:    -1,
		EMARSSI:       initialEMARSSI,
		LastSegmentID: segmentID,
		EnvHits:       1,
	}
	return slot, true
}

// FindOrAllocAnchor returns the in-use slot matching addr, or allocates a
// free or evictable one. Same eviction policy as FindOrAllocTrack.
func (tb *Tables) FindOrAllocAnchor(addr [6]byte, tsSec int64) (*Anchor, bool) {
	var free *Anchor
	var evictCandidate *Anchor
	for i := range tb.anchors {
		a := &tb.anchors[i]
		if a.InUse && a.Addr == addr {
			return a, true
		}
		if !a.InUse {
			if free == nil {
				free = a
			}
			continue
		}
		if a.watching() {
			continue
		}
		if evictCandidate == nil || a.LastSeenS < evictCandidate.LastSeenS {
			evictCandidate = a
		}
	}

	slot := free
	if slot == nil {
		slot = evictCandidate
	}
	if slot == nil {
		return nil, false
	}

	*slot = Anchor{
		InUse:     true,
		Addr:      addr,
		Vendor:    vendorForAddr(addr),
		Index:     tb.allocIndex(),
		LastSeenS: tsSec,
		BestRSSI:  initialBestRSSI,
	}
	return slot, true
}

// UpdateTrackFromObs applies one observation's RSSI to the windowed
// statistics, in the fixed order spec.md prescribes: window counters (on
// transition only), then ema_rssi (using the previous value), then
// ema_abs_dev, then segmentation env_hits. windowUniqueHits is the
// pipeline-level crowd window counter (spec.md §4.6 step 1), already
// advanced by the caller under the same lock.
func (tb *Tables) UpdateTrackFromObs(t *Track, rssi int8, tsSec int64, segmentID uint32, windowUniqueHits uint32) {
	t.LastSeenS = tsSec

	window := tsSec / WindowSec
	if window != t.LastWindow {
		t.LastWindow = window
		t.SeenWindows++
		if int32(rssi) >= RSSINearDBm {
			t.NearWindows++
		}
		t.CrowdEMA = (1-crowdEMAAlpha)*t.CrowdEMA + crowdEMAAlpha*float32(windowUniqueHits)
	}

	prev := t.EMARSSI
	t.EMARSSI = (1-emaRSSIAlpha)*t.EMARSSI + emaRSSIAlpha*float32(rssi)
	t.EMAAbsDev = (1-emaDevBeta)*t.EMAAbsDev + emaDevBeta*absF32(float32(rssi)-prev)

	if segmentID != t.LastSegmentID {
		t.EnvHits++
		t.LastSegmentID = segmentID
	}
}

func absF32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// ExpireTables frees every in-use, non-watching slot whose idle time
// exceeds its kind's threshold.
func (tb *Tables) ExpireTables(nowS int64) {
	for i := range tb.tracks {
		t := &tb.tracks[i]
		if !t.InUse || t.watching() {
			continue
		}
		threshold := int64(TrackIdleSecWifi)
		if t.Kind == BleAdvertiser {
			threshold = TrackIdleSecBLE
		}
		if nowS-t.LastSeenS > threshold {
			*t = Track{}
		}
	}
	for i := range tb.anchors {
		a := &tb.anchors[i]
		if !a.InUse || a.watching() {
			continue
		}
		if nowS-a.LastSeenS > AnchorIdleSec {
			*a = Anchor{}
		}
	}
}

// maxInUseIndex returns the largest Index among in-use slots, or 0 if none.
func (tb *Tables) maxInUseIndex() uint16 {
	var max uint16
	for i := range tb.tracks {
		if tb.tracks[i].InUse && tb.tracks[i].Index > max {
			max = tb.tracks[i].Index
		}
	}
	for i := range tb.anchors {
		if tb.anchors[i].InUse && tb.anchors[i].Index > max {
			max = tb.anchors[i].Index
		}
	}
	return max
}

// clearNonWatching frees every in-use, non-watching slot in both tables
// and recomputes nextIndex, used by Reset.
func (tb *Tables) clearNonWatching() {
	for i := range tb.tracks {
		if tb.tracks[i].InUse && !tb.tracks[i].watching() {
			tb.tracks[i] = Track{}
		}
	}
	for i := range tb.anchors {
		if tb.anchors[i].InUse && !tb.anchors[i].watching() {
			tb.anchors[i] = Anchor{}
		}
	}
	tb.nextIndex = tb.maxInUseIndex() + 1
}
