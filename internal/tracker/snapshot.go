package tracker

import (
	"math"
	"sort"

	"github.com/proxtrack/pt/internal/beacon"
	"gonum.org/v1/gonum/stat"
)

// EntityView is a read-only projection of a Track or Anchor for external
// consumers (UI, export, diagnostics).
type EntityView struct {
	Kind   EntityKind
	Index  uint16
	Addr   [6]byte
	Vendor beacon.Vendor
	SSID   string

	RSSI  int8
	Score float64

	FirstSeenS int64
	LastSeenS  int64

	Watching bool
	HasGeo   bool
	Lat      float64
	Lon      float64

	TrackerType           beacon.TrackerType
	TrackerGoogleMfr      beacon.GoogleMfr
	TrackerSamsungSubtype beacon.SamsungSubtype
	TrackerConfidence     uint8
}

// Snapshot is the output of BuildSnapshot: a sorted, stable set of entity
// rows plus the segmentation engine's public counters.
type Snapshot struct {
	Entities     []EntityView
	SegmentID    uint32
	MoveSegments uint32
	LastEnvTickS int64
}

// BuildSnapshot assembles every in-use Track and Anchor, up to maxOut, into
// a Snapshot. The table lock is held only while copying rows; sorting
// happens afterward, per spec.md §4.7.
func (dt *DeviceTracker) BuildSnapshot(maxOut int, stationaryRatio float64) Snapshot {
	dt.mu.Lock()
	moveSegments := dt.seg.MoveSegments
	segmentID := dt.seg.SegmentID
	lastEnvTickS := dt.seg.LastEnvTickS

	var rows []EntityView
	for i := range dt.tables.tracks {
		t := &dt.tables.tracks[i]
		if !t.InUse {
			continue
		}
		kind := EntityWifiClient
		if t.Kind == BleAdvertiser {
			kind = EntityBleAdv
		}
		rows = append(rows, EntityView{
			Kind:                  kind,
			Index:                 t.Index,
			Addr:                  t.Addr,
			Vendor:                t.Vendor,
			RSSI:                  int8(math.Round(float64(t.EMARSSI))),
			Score:                 Score(t, stationaryRatio, moveSegments),
			FirstSeenS:            t.FirstSeenS,
			LastSeenS:             t.LastSeenS,
			Watching:              t.watching(),
			HasGeo:                t.hasGeo(),
			Lat:                   t.LastLat,
			Lon:                   t.LastLon,
			TrackerType:           t.TrackerType,
			TrackerGoogleMfr:      t.TrackerGoogleMfr,
			TrackerSamsungSubtype: t.TrackerSamsungSubtype,
			TrackerConfidence:     t.TrackerConfidence,
		})
	}
	for i := range dt.tables.anchors {
		a := &dt.tables.anchors[i]
		if !a.InUse {
			continue
		}
		lat, lon := a.BestLat, a.BestLon
		if a.WSum >= 3 {
			lat, lon = a.WLat/a.WSum, a.WLon/a.WSum
		}
		rows = append(rows, EntityView{
			Kind:       EntityWifiAp,
			Index:      a.Index,
			Addr:       a.Addr,
			Vendor:     a.Vendor,
			SSID:       a.SSIDString(),
			RSSI:       a.LastRSSI,
			Score:      0,
			LastSeenS:  a.LastSeenS,
			Watching:   a.watching(),
			HasGeo:     a.hasGeo(),
			Lat:        lat,
			Lon:        lon,
		})
	}
	dt.mu.Unlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Watching != rows[j].Watching {
			return rows[i].Watching
		}
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].RSSI != rows[j].RSSI {
			return rows[i].RSSI > rows[j].RSSI
		}
		return rows[i].Index < rows[j].Index
	})

	if len(rows) > maxOut && maxOut > 0 {
		rows = rows[:maxOut]
	}

	return Snapshot{
		Entities:     rows,
		SegmentID:    segmentID,
		MoveSegments: moveSegments,
		LastEnvTickS: lastEnvTickS,
	}
}

// ScorePercentiles computes the p50/p90 of every Track's score in the
// given snapshot, skipping anchors; it returns 0, 0 when there are no
// Tracks. No route in internal/diagserver calls it.
func ScorePercentiles(snap Snapshot) (p50, p90 float64) {
	var scores []float64
	for _, e := range snap.Entities {
		if e.Kind == EntityWifiAp {
			continue
		}
		scores = append(scores, e.Score)
	}
	if len(scores) == 0 {
		return 0, 0
	}
	sort.Float64s(scores)
	return stat.Quantile(0.5, stat.Empirical, scores, nil),
		stat.Quantile(0.9, stat.Empirical, scores, nil)
}
