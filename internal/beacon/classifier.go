package beacon

import "strings"

// Service UUIDs recognized by the classifier. BLE advertises 16-bit
// service UUIDs as the short form; we match on that form here since the
// trackable-beacon services in question are all SIG-assigned 16-bit IDs.
const (
	uuidTile               = 0xFEED
	uuidSmartThingsTracker = 0xFD5A
	uuidSmartThingsFind    = 0xFD69
	uuidGoogleFindHub      = 0xFEAA
	uuidPebbleBee          = 0xFA25
	uuidFindMyNetwork      = 0xFE33
)

const appleCompanyID uint16 = 0x004C

// Advertisement is the classifier's input: the subset of a BLE
// advertising report relevant to trackable-beacon identification. It has
// no dependency on any particular BLE stack — adapters (internal/bleadv)
// populate it from whatever scanning API is in use.
type Advertisement struct {
	ServiceUUIDs16  []uint16 // 16-bit service UUIDs present in the advertisement
	MfgCompanyID    uint16   // manufacturer-specific data company identifier
	MfgData         []byte   // manufacturer-specific data payload (excludes company ID)
	HasMfgData      bool
	LocalName       string
	HasLocalName    bool
}

// Inspect classifies a BLE advertisement, returning the same TrackerInfo
// for the same input every time (spec.md's classifier-determinism
// property). Decision order is fixed: first match wins.
func Inspect(a Advertisement) TrackerInfo {
	name := strings.ToLower(a.LocalName)

	if hasService(a, uuidTile) {
		return TrackerInfo{Type: Tile, Confidence: 95}
	}

	if hasService(a, uuidSmartThingsTracker) {
		return TrackerInfo{
			Type:           SmartThingsTracker,
			SamsungSubtype: samsungSubtypeFromName(name),
			Confidence:     95,
		}
	}

	if hasService(a, uuidSmartThingsFind) {
		return TrackerInfo{Type: SmartThingsFind, Confidence: 90}
	}

	if hasService(a, uuidGoogleFindHub) {
		return TrackerInfo{
			Type:      GoogleFindHub,
			GoogleMfr: googleMfrFromName(name),
			Confidence: 90,
		}
	}

	if hasService(a, uuidPebbleBee) {
		return TrackerInfo{Type: PebbleBee, Confidence: 90}
	}

	// "byte3" below is the 3rd byte of the payload (0-indexed offset 2),
	// following spec.md's 1-indexed naming for the status byte.
	if a.HasMfgData && a.MfgCompanyID == appleCompanyID && isAppleHeader(a.MfgData) {
		byte3 := a.MfgData[2]
		switch {
		case byte3&0x18 == 0x18:
			return TrackerInfo{Type: AppleAirPods, Confidence: 85}
		case byte3&0x18 == 0x10 && hasService(a, uuidFindMyNetwork):
			return TrackerInfo{Type: AppleFindMy, Confidence: 80}
		case byte3&0x18 == 0x10:
			return TrackerInfo{Type: AppleAirTag, Confidence: 75}
		default:
			return TrackerInfo{Type: AppleFindMy, Confidence: 65}
		}
	}

	if hasService(a, uuidFindMyNetwork) {
		return TrackerInfo{Type: Chipolo, Confidence: 80}
	}

	return TrackerInfo{Type: Unknown, Confidence: 0}
}

func hasService(a Advertisement, uuid uint16) bool {
	for _, u := range a.ServiceUUIDs16 {
		if u == uuid {
			return true
		}
	}
	return false
}

// isAppleHeader reports whether the manufacturer payload starts with the
// 0x12 0x19 marker used by Apple's proximity-pairing / Find My formats,
// and has at least 3 bytes so byte index 2 ("byte3" in spec.md's
// 1-indexed description) can be inspected.
func isAppleHeader(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x12 && data[1] == 0x19
}

func samsungSubtypeFromName(lowerName string) SamsungSubtype {
	switch {
	case strings.Contains(lowerName, "smarttag2"), strings.Contains(lowerName, "smart tag 2"):
		return SamsungSmartTag2
	case strings.Contains(lowerName, "solum"):
		return SamsungSolum
	case strings.Contains(lowerName, "smarttag+"):
		return SamsungSmartTag1Plus
	case strings.Contains(lowerName, "smarttag"):
		return SamsungSmartTag1
	default:
		return SamsungSubtypeUnknown
	}
}

func googleMfrFromName(lowerName string) GoogleMfr {
	switch {
	case strings.Contains(lowerName, "motorola"), strings.Contains(lowerName, "moto"):
		return GoogleMfrMotorola
	case strings.Contains(lowerName, "jio"):
		return GoogleMfrJio
	default:
		return GoogleMfrUnknown
	}
}

// nameHint classifies a local name into a TrackerType when service UUIDs
// and manufacturer data give no signal. Not wired into the primary
// Inspect decision table (spec.md's table has no "name only" row), but
// exposed for adapters that want a best-effort label for advertisements
// the fixed decision order left as Unknown.
func nameHint(localName string) TrackerType {
	lowerName := strings.ToLower(localName)
	switch {
	case strings.Contains(lowerName, "pebblebee"):
		return PebbleBee
	case strings.Contains(lowerName, "chipolo"):
		return Chipolo
	case strings.Contains(lowerName, "eufy"):
		return Eufy
	case strings.Contains(lowerName, "motorola"), strings.Contains(lowerName, "moto"):
		return Motorola
	case strings.Contains(lowerName, "jio"):
		return Jio
	case strings.Contains(lowerName, "rolling square"):
		return RollingSquare
	case strings.Contains(lowerName, "smarttag2"), strings.Contains(lowerName, "smart tag 2"):
		return SmartTag2
	case strings.Contains(lowerName, "solum"):
		return Solum
	case strings.Contains(lowerName, "smarttag+"):
		return SmartTag1Plus
	case strings.Contains(lowerName, "smarttag"):
		return SmartTag1
	default:
		return Unknown
	}
}

// NameHint is the exported form of nameHint, used by adapters that want
// to label devices the service/manufacturer-data decision table could
// not classify.
func NameHint(localName string) TrackerType {
	return nameHint(localName)
}
