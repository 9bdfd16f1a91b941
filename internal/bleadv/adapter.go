// Package bleadv adapts tinygo.org/x/bluetooth scan results into
// beacon.Advertisement and tracker.Observation values, keeping both the
// classifier and the tracker core decoupled from the scanning stack.
package bleadv

import (
	"strconv"
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/proxtrack/pt/internal/beacon"
	"github.com/proxtrack/pt/internal/tracker"
)

// ToAdvertisement extracts the classifier-relevant fields from a scan
// result: 16-bit service UUIDs, manufacturer data, and local name.
func ToAdvertisement(result bluetooth.ScanResult) beacon.Advertisement {
	adv := beacon.Advertisement{}

	for _, uuid := range result.ServiceUUIDs() {
		if short, ok := uuid16(uuid); ok {
			adv.ServiceUUIDs16 = append(adv.ServiceUUIDs16, short)
		}
	}

	if mfg := result.ManufacturerData(); len(mfg) > 0 {
		// tinygo's ManufacturerData groups payload bytes by company ID;
		// the classifier only looks at the first entry, matching the
		// "company id in the first two little-endian bytes" contract
		// from spec.md §6.
		adv.HasMfgData = true
		adv.MfgCompanyID = mfg[0].CompanyID
		adv.MfgData = mfg[0].Data
	}

	if name := result.LocalName(); name != "" {
		adv.HasLocalName = true
		adv.LocalName = name
	}

	return adv
}

// ToObservation builds a BleAdv Observation from a scan result and its
// classifier output.
func ToObservation(result bluetooth.ScanResult, info beacon.TrackerInfo, tsSec int64) tracker.Observation {
	var obs tracker.Observation
	obs.Kind = tracker.BleAdv
	obs.RSSIDBm = int8(result.RSSI)
	obs.TSSec = tsSec
	obs.TrackerType = info.Type
	obs.TrackerGoogleMfr = info.GoogleMfr
	obs.TrackerSamsungSubtype = info.SamsungSubtype
	obs.TrackerConfidence = info.Confidence
	obs.Addr = parseMAC(result.Address.String())

	return obs
}

// parseMAC parses the colon-separated MAC string tinygo's Address.String()
// returns. Malformed input (shouldn't happen from a real adapter) yields
// the zero address.
func parseMAC(s string) [6]byte {
	var addr [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return [6]byte{}
		}
		addr[i] = byte(v)
	}
	return addr
}

// sigBaseSuffix is the lower 96 bits of the Bluetooth SIG base UUID,
// shared by every 16-bit assigned UUID (0000xxxx-0000-1000-8000-00805f9b34fb).
const sigBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// uuid16 extracts the 16-bit short form of a SIG-assigned Bluetooth UUID,
// reporting ok=false for vendor-specific 128-bit UUIDs.
func uuid16(u bluetooth.UUID) (uint16, bool) {
	s := strings.ToLower(u.String())
	if len(s) != 36 || !strings.HasSuffix(s, sigBaseSuffix) || s[0:4] != "0000" {
		return 0, false
	}
	v, err := strconv.ParseUint(s[4:8], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
