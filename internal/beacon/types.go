// Package beacon implements the passive BLE "trackable beacon" classifier:
// a pure function from advertisement contents (service UUIDs, manufacturer
// data, local name) to a TrackerInfo, with no side effects and no radio
// access of its own.
package beacon

// TrackerType identifies the kind of commercial lost-item tracker (or
// generic device) inferred from a BLE advertisement.
type TrackerType uint8

const (
	Unknown TrackerType = iota
	Tile
	SmartThingsTracker
	SmartThingsFind
	GoogleFindHub
	PebbleBee
	AppleAirPods
	AppleFindMy
	AppleAirTag
	Chipolo
	Eufy
	Motorola
	Jio
	RollingSquare
	SmartTag1
	SmartTag1Plus
	SmartTag2
	Solum
)

func (t TrackerType) String() string {
	switch t {
	case Tile:
		return "Tile"
	case SmartThingsTracker:
		return "SmartThingsTracker"
	case SmartThingsFind:
		return "SmartThingsFind"
	case GoogleFindHub:
		return "GoogleFindHub"
	case PebbleBee:
		return "PebbleBee"
	case AppleAirPods:
		return "AppleAirPods"
	case AppleFindMy:
		return "AppleFindMy"
	case AppleAirTag:
		return "AppleAirTag"
	case Chipolo:
		return "Chipolo"
	case Eufy:
		return "Eufy"
	case Motorola:
		return "Motorola"
	case Jio:
		return "Jio"
	case RollingSquare:
		return "RollingSquare"
	case SmartTag1:
		return "SmartTag1"
	case SmartTag1Plus:
		return "SmartTag1Plus"
	case SmartTag2:
		return "SmartTag2"
	case Solum:
		return "Solum"
	default:
		return "Unknown"
	}
}

// ParseTrackerType inverts String() for watchlist round-tripping. An
// unrecognized or empty string parses as Unknown.
func ParseTrackerType(s string) TrackerType {
	switch s {
	case "Tile":
		return Tile
	case "SmartThingsTracker":
		return SmartThingsTracker
	case "SmartThingsFind":
		return SmartThingsFind
	case "GoogleFindHub":
		return GoogleFindHub
	case "PebbleBee":
		return PebbleBee
	case "AppleAirPods":
		return AppleAirPods
	case "AppleFindMy":
		return AppleFindMy
	case "AppleAirTag":
		return AppleAirTag
	case "Chipolo":
		return Chipolo
	case "Eufy":
		return Eufy
	case "Motorola":
		return Motorola
	case "Jio":
		return Jio
	case "RollingSquare":
		return RollingSquare
	case "SmartTag1":
		return SmartTag1
	case "SmartTag1Plus":
		return SmartTag1Plus
	case "SmartTag2":
		return SmartTag2
	case "Solum":
		return Solum
	default:
		return Unknown
	}
}

// ParseGoogleMfr inverts GoogleMfr.String().
func ParseGoogleMfr(s string) GoogleMfr {
	switch s {
	case "Motorola":
		return GoogleMfrMotorola
	case "Jio":
		return GoogleMfrJio
	default:
		return GoogleMfrUnknown
	}
}

// ParseSamsungSubtype inverts SamsungSubtype.String().
func ParseSamsungSubtype(s string) SamsungSubtype {
	switch s {
	case "SmartTag1":
		return SamsungSmartTag1
	case "SmartTag1Plus":
		return SamsungSmartTag1Plus
	case "SmartTag2":
		return SamsungSmartTag2
	case "Solum":
		return SamsungSolum
	default:
		return SamsungSubtypeUnknown
	}
}

// GoogleMfr narrows a GoogleFindHub classification to the advertising
// manufacturer, when the local name gives a hint.
type GoogleMfr uint8

const (
	GoogleMfrUnknown GoogleMfr = iota
	GoogleMfrMotorola
	GoogleMfrJio
)

func (g GoogleMfr) String() string {
	switch g {
	case GoogleMfrMotorola:
		return "Motorola"
	case GoogleMfrJio:
		return "Jio"
	default:
		return "Unknown"
	}
}

// SamsungSubtype narrows a SmartThingsTracker classification to the
// specific SmartTag model, when the local name gives a hint.
type SamsungSubtype uint8

const (
	SamsungSubtypeUnknown SamsungSubtype = iota
	SamsungSmartTag1
	SamsungSmartTag1Plus
	SamsungSmartTag2
	SamsungSolum
)

func (s SamsungSubtype) String() string {
	switch s {
	case SamsungSmartTag1:
		return "SmartTag1"
	case SamsungSmartTag1Plus:
		return "SmartTag1Plus"
	case SamsungSmartTag2:
		return "SmartTag2"
	case SamsungSolum:
		return "Solum"
	default:
		return "Unknown"
	}
}

// Vendor tags a MAC address (or a trackable-beacon inference) with a
// coarse manufacturer attribution.
type Vendor uint8

const (
	VendorUnknown Vendor = iota
	VendorApple
	VendorChipolo
	VendorGoogle
	VendorPebblebee
	VendorSamsung
	VendorTile
)

func (v Vendor) String() string {
	switch v {
	case VendorApple:
		return "Apple"
	case VendorChipolo:
		return "Chipolo"
	case VendorGoogle:
		return "Google"
	case VendorPebblebee:
		return "Pebblebee"
	case VendorSamsung:
		return "Samsung"
	case VendorTile:
		return "Tile"
	default:
		return "Unknown"
	}
}

// VendorFromType derives the coarse Vendor for a classified TrackerType,
// per the table in spec.md section 4.9.
func VendorFromType(t TrackerType) Vendor {
	switch t {
	case AppleAirPods, AppleFindMy, AppleAirTag:
		return VendorApple
	case Chipolo:
		return VendorChipolo
	case GoogleFindHub:
		return VendorGoogle
	case PebbleBee:
		return VendorPebblebee
	case SmartThingsTracker, SmartThingsFind:
		return VendorSamsung
	case Tile:
		return VendorTile
	default:
		return VendorUnknown
	}
}

// TrackerInfo is the classifier's output: a type, type-specific narrowing
// fields, and a 0-100 confidence score.
type TrackerInfo struct {
	Type           TrackerType
	GoogleMfr      GoogleMfr
	SamsungSubtype SamsungSubtype
	Confidence     uint8
}
