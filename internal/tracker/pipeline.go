package tracker

import "github.com/proxtrack/pt/internal/beacon"

// processObservation implements spec.md §4.6: advance the crowd window
// counter, then dispatch on kind under the table lock. Both happen while
// the lock is held here, since the crowd-window fields are otherwise only
// ever touched by this single consumer — the lock protects them against
// a concurrent Reset call, not against another producer of observations.
func (dt *DeviceTracker) processObservation(obs Observation) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	window := obs.TSSec / WindowSec
	if window != dt.crowdWindow {
		dt.crowdWindow = window
		dt.crowdWindowHits = 0
	}
	dt.crowdWindowHits++

	gnssValid, gnssLat, gnssLon := dt.gnssValid, dt.gnssLat, dt.gnssLon
	segmentID := dt.seg.SegmentID

	switch obs.Kind {
	case WifiProbeReq, BleAdv:
		dt.processTrackObservation(obs, gnssValid, gnssLat, gnssLon, segmentID)
	case WifiApBeacon, WifiApProbeResp:
		dt.processAnchorObservation(obs, gnssValid, gnssLat, gnssLon)
	}
}

func (dt *DeviceTracker) processTrackObservation(obs Observation, gnssValid bool, gnssLat, gnssLon float64, segmentID uint32) {
	kind := WifiClient
	if obs.Kind == BleAdv {
		kind = BleAdvertiser
	}

	t, ok := dt.tables.FindOrAllocTrack(kind, obs.Addr, obs.TSSec, segmentID)
	if !ok {
		dt.counters.AllocSaturations.Add(1)
		return
	}

	dt.tables.UpdateTrackFromObs(t, obs.RSSIDBm, obs.TSSec, segmentID, dt.crowdWindowHits)

	if gnssValid {
		t.Flags |= FlagHasGeo
		t.LastGeoS = obs.TSSec
		t.LastLat = gnssLat
		t.LastLon = gnssLon
	}

	if obs.Kind == BleAdv {
		mergeTrackerInfo(t, obs)
	}
}

// mergeTrackerInfo applies a BLE classifier result onto a Track following
// spec.md §4.6's merge rules: tracker_type is assigned whenever the
// observation classified to non-Unknown, vendor is derived once (only if
// still Unknown), mfr/subtype take the non-Unknown element, confidence is
// a running max.
func mergeTrackerInfo(t *Track, obs Observation) {
	if obs.TrackerType != beacon.Unknown {
		t.TrackerType = obs.TrackerType
		if t.Vendor == beacon.VendorUnknown {
			t.Vendor = beacon.VendorFromType(obs.TrackerType)
		}
	}
	if obs.TrackerGoogleMfr != beacon.GoogleMfrUnknown {
		t.TrackerGoogleMfr = obs.TrackerGoogleMfr
	}
	if obs.TrackerSamsungSubtype != beacon.SamsungSubtypeUnknown {
		t.TrackerSamsungSubtype = obs.TrackerSamsungSubtype
	}
	if obs.TrackerConfidence > t.TrackerConfidence {
		t.TrackerConfidence = obs.TrackerConfidence
	}
}

func (dt *DeviceTracker) processAnchorObservation(obs Observation, gnssValid bool, gnssLat, gnssLon float64) {
	a, ok := dt.tables.FindOrAllocAnchor(obs.Addr, obs.TSSec)
	if !ok {
		dt.counters.AllocSaturations.Add(1)
		return
	}

	a.LastSeenS = obs.TSSec
	a.LastRSSI = obs.RSSIDBm
	if obs.SSIDLen > 0 {
		a.SSID = obs.SSID
		a.SSIDLen = obs.SSIDLen
	}

	if !gnssValid {
		return
	}

	hadGeo := a.hasGeo()
	a.Flags |= FlagHasGeo
	a.LastGeoS = obs.TSSec
	a.LastLat = gnssLat
	a.LastLon = gnssLon

	if !hadGeo || int32(obs.RSSIDBm) > int32(a.BestRSSI) {
		a.BestRSSI = obs.RSSIDBm
		a.BestLat = gnssLat
		a.BestLon = gnssLon
	}

	w := 1 + 9*clamp01((float64(obs.RSSIDBm)+95)/60)
	a.WSum += w
	a.WLat += w * gnssLat
	a.WLon += w * gnssLon
}
