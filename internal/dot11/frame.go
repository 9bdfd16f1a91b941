// Package dot11 decodes the 802.11 management frames the tracker cares
// about (probe request, probe response, beacon) into tracker.Observation
// values, using gopacket/layers for header framing.
package dot11

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/proxtrack/pt/internal/tracker"
)

const (
	subtypeProbeRequest  = 4
	subtypeProbeResponse = 5
	subtypeBeacon        = 8

	ieOffsetBeaconOrProbeResp = 36
	ieOffsetProbeRequest      = 24

	ieIDSSID = 0
)

// ErrMalformedFrame is returned for frames too short to contain a usable
// 802.11 management header, or IEs with an out-of-bounds length. Per
// spec.md §7 these are a transient, silently-dropped loss at the caller;
// DecodeManagementFrame still returns the error so the caller can bump a
// counter.
type ErrMalformedFrame struct{ Reason string }

func (e *ErrMalformedFrame) Error() string { return "dot11: malformed frame: " + e.Reason }

// DecodeManagementFrame parses a raw 802.11 management frame (including
// its header) into an Observation. rssi is the receive RSSI reported by
// the radio driver, out of band from the frame bytes. tsSec is the
// monotonic observation timestamp.
func DecodeManagementFrame(frame []byte, rssi int8, tsSec int64) (tracker.Observation, error) {
	if len(frame) < 24 {
		return tracker.Observation{}, &ErrMalformedFrame{Reason: fmt.Sprintf("frame too short: %d bytes", len(frame))}
	}

	var dot11 layers.Dot11
	if err := dot11.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return tracker.Observation{}, &ErrMalformedFrame{Reason: err.Error()}
	}

	// Frame control byte 0, bits 4-7, per 802.11 §8.2.4.1.3. gopacket's
	// Dot11Type already folds type+subtype together; re-deriving it
	// directly keeps the subtype switch below a plain, obvious constant
	// comparison.
	subtype := (frame[0] >> 4) & 0x0F

	var obs tracker.Observation
	obs.TSSec = tsSec
	obs.RSSIDBm = rssi

	switch subtype {
	case subtypeProbeRequest:
		obs.Kind = tracker.WifiProbeReq
		copy(obs.Addr[:], dot11.Address2)
		parseSSID(frame, ieOffsetProbeRequest, &obs)
	case subtypeBeacon:
		obs.Kind = tracker.WifiApBeacon
		copy(obs.Addr[:], dot11.Address3)
		parseSSID(frame, ieOffsetBeaconOrProbeResp, &obs)
	case subtypeProbeResponse:
		obs.Kind = tracker.WifiApProbeResp
		copy(obs.Addr[:], dot11.Address3)
		parseSSID(frame, ieOffsetBeaconOrProbeResp, &obs)
	default:
		return tracker.Observation{}, &ErrMalformedFrame{Reason: fmt.Sprintf("unhandled subtype %d", subtype)}
	}

	return obs, nil
}

// parseSSID reads the SSID information element (id=0) starting at
// offset, if present and well-formed. A zero-length SSID (hidden network)
// leaves obs.SSIDLen at 0, matching spec.md §4.1.
func parseSSID(frame []byte, offset int, obs *tracker.Observation) {
	if offset+2 > len(frame) {
		return
	}
	if frame[offset] != ieIDSSID {
		return
	}
	length := int(frame[offset+1])
	start := offset + 2
	if length == 0 || start+length > len(frame) {
		return
	}
	if length > 32 {
		length = 32
	}
	obs.SSIDLen = uint8(copy(obs.SSID[:], frame[start:start+length]))
}
