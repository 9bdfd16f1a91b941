package tracker

import "github.com/proxtrack/pt/internal/geo"

// fingerprintItem is one entry of an EnvFingerprint: an anchor address
// reduced to a coarse RSSI bucket.
type fingerprintItem struct {
	Addr   [6]byte
	Bucket uint8
}

// Segmentation advances a monotonically increasing segment id whenever the
// observer is judged to have moved, using GNSS distance when a fix is
// valid and falling back to AP-fingerprint similarity otherwise.
type Segmentation struct {
	SegmentID    uint32
	MoveSegments uint32
	LastEnvTickS int64

	gnssAnchorValid bool
	gnssAnchorLat   float64
	gnssAnchorLon   float64
	lastEvalS       int64

	fingerprint     []fingerprintItem
	haveFingerprint bool
}

// NewSegmentation returns a fresh Segmentation with segment_id = 0.
func NewSegmentation() *Segmentation {
	return &Segmentation{}
}

// Advance evaluates the current mode and advances segment_id if the
// observer has moved. tables supplies the anchor data the fingerprint
// fallback needs; it is read, not mutated. Callers must hold the same
// lock that guards tables.
func (s *Segmentation) Advance(nowS int64, gnssValid bool, lat, lon float64, tables *Tables) {
	if gnssValid {
		s.advanceGNSS(nowS, lat, lon)
		return
	}
	s.advanceFingerprint(nowS, tables)
}

func (s *Segmentation) advanceGNSS(nowS int64, lat, lon float64) {
	if !s.gnssAnchorValid {
		s.gnssAnchorValid = true
		s.gnssAnchorLat = lat
		s.gnssAnchorLon = lon
		s.lastEvalS = nowS
		return
	}
	if nowS-s.lastEvalS < GNSSSegmentMinPeriodS {
		return
	}
	dist := geo.HaversineMeters(lat, lon, s.gnssAnchorLat, s.gnssAnchorLon)
	s.lastEvalS = nowS
	if dist >= GNSSSegmentDistanceM {
		s.SegmentID++
		s.MoveSegments++
		s.gnssAnchorLat = lat
		s.gnssAnchorLon = lon
	}
}

// clearGNSSAnchor drops the stored GNSS reference point, used when the fix
// becomes invalid (SetGPSFix(false, ...)) so a future valid fix is treated
// as a fresh first fix rather than measured against a stale anchor.
func (s *Segmentation) clearGNSSAnchor() {
	s.gnssAnchorValid = false
}

func (s *Segmentation) advanceFingerprint(nowS int64, tables *Tables) {
	if s.haveFingerprint && nowS-s.LastEnvTickS < EnvWindowSec {
		return
	}
	s.LastEnvTickS = nowS

	next := tables.topAnchorsForFingerprint(nowS, FPTopN)

	if s.haveFingerprint {
		if fingerprintSimilarity(s.fingerprint, next) < FPSimilarityMin {
			s.SegmentID++
			s.MoveSegments++
		}
	}
	s.fingerprint = next
	s.haveFingerprint = true
}

// fingerprintSimilarity implements spec.md §4.4: Jaccard similarity over
// address sets, plus a 0.25 bonus per address shared by both fingerprints
// whose RSSI bucket also matches, normalized by the size of the union.
func fingerprintSimilarity(prev, next []fingerprintItem) float64 {
	prevBuckets := make(map[[6]byte]uint8, len(prev))
	for _, it := range prev {
		prevBuckets[it.Addr] = it.Bucket
	}
	nextBuckets := make(map[[6]byte]uint8, len(next))
	for _, it := range next {
		nextBuckets[it.Addr] = it.Bucket
	}

	union := map[[6]byte]struct{}{}
	for a := range prevBuckets {
		union[a] = struct{}{}
	}
	for a := range nextBuckets {
		union[a] = struct{}{}
	}
	if len(union) == 0 {
		return 1.0
	}

	intersection := 0
	bonus := 0.0
	for a, pb := range prevBuckets {
		if nb, ok := nextBuckets[a]; ok {
			intersection++
			if nb == pb {
				bonus += 0.25
			}
		}
	}

	j := float64(intersection) / float64(len(union))
	return j + bonus/float64(len(union))
}

// topAnchorsForFingerprint selects up to n in-use anchors last seen within
// the past 60 seconds, strongest RSSI first, reduced to fingerprint items.
func (tb *Tables) topAnchorsForFingerprint(nowS int64, n int) []fingerprintItem {
	type candidate struct {
		addr [6]byte
		rssi int8
	}
	var candidates []candidate
	for i := range tb.anchors {
		a := &tb.anchors[i]
		if !a.InUse {
			continue
		}
		if nowS-a.LastSeenS > 60 {
			continue
		}
		candidates = append(candidates, candidate{addr: a.Addr, rssi: a.LastRSSI})
	}

	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].rssi > candidates[j-1].rssi; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	items := make([]fingerprintItem, len(candidates))
	for i, c := range candidates {
		items[i] = fingerprintItem{Addr: c.addr, Bucket: rssiBucket(c.rssi)}
	}
	return items
}

func rssiBucket(rssi int8) uint8 {
	switch {
	case int32(rssi) >= RSSINearDBm:
		return 2
	case int32(rssi) >= RSSIMidDBm:
		return 1
	default:
		return 0
	}
}
