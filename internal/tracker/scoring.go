package tracker

import "math"

// Score computes a Track's interest score in [0,100] as the clamped sum of
// five closed-form terms: persistence, regularity, mobility coverage,
// crowd penalty, idle penalty. moveSegments is the segmentation engine's
// running move-segment count (used as the denominator for mobility
// coverage); stationaryRatio is supplied by the caller.
func Score(t *Track, stationaryRatio float64, moveSegments uint32) float64 {
	tMin := float64(t.LastSeenS-t.FirstSeenS) / 60.0
	persistence := 30 * clamp01(math.Log(1+tMin)/math.Log(1+TCapMin))

	fNear := 0.0
	if t.SeenWindows > 0 {
		fNear = float64(t.NearWindows) / float64(t.SeenWindows)
	}
	stability := clamp01(1 - float64(t.EMAAbsDev)/RSSIDevCap)
	regularity := 25 * clamp01(0.7*fNear+0.3*stability)

	denom := moveSegments
	if denom < 1 {
		denom = 1
	}
	mobility := 35 * clamp01(float64(t.EnvHits)/float64(denom))

	crowdPenalty := -25 * clamp01((float64(t.CrowdEMA)-CrowdLo)/(CrowdHi-CrowdLo))

	idlePenalty := -20 * clamp01(stationaryRatio)

	return clamp(persistence+regularity+mobility+crowdPenalty+idlePenalty, 0, 100)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
