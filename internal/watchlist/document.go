// Package watchlist implements the persistent watchlist document (JSON)
// and its KML export, decoupled from the tracker's entity tables: this
// package only knows about plain Items and Placemarks, never Tracks or
// Anchors.
package watchlist

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind strings used in the JSON document, matching spec.md §6 exactly.
const (
	KindWifiAp     = "WifiAp"
	KindWifiClient = "WifiClient"
	KindBleAdv     = "BleAdv"
)

const documentVersion = 2

// Coord is a latitude/longitude value that always marshals to exactly 8
// fractional digits, per spec.md §6's worked example and scenario 5's
// "rendered with 8 decimals" requirement — plain float64 JSON marshaling
// uses the shortest round-trippable form (e.g. "1" for 1.0) instead.
type Coord float64

// MarshalJSON renders c as a fixed-point literal with 8 fractional digits.
func (c Coord) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(c), 'f', 8, 64)), nil
}

// UnmarshalJSON accepts any JSON number.
func (c *Coord) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Coord(f)
	return nil
}

// Item is one watched entity, as persisted. Optional fields use pointers
// so "absent" and "zero value" are distinguishable on the wire, matching
// the teacher's TuningConfig idiom.
type Item struct {
	Kind string `json:"kind"`
	Mac  string `json:"mac"`

	SSID *string `json:"ssid,omitempty"`

	Lat *Coord `json:"lat,omitempty"`
	Lon *Coord `json:"lon,omitempty"`

	TrackerType           *string `json:"tracker_type,omitempty"`
	TrackerGoogleMfr      *string `json:"tracker_google_mfr,omitempty"`
	TrackerSamsungSubtype *string `json:"tracker_samsung_subtype,omitempty"`
	TrackerConfidence     *uint8  `json:"tracker_confidence,omitempty"`
}

// Document is the root JSON shape.
type Document struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// NewDocument wraps items at the current document version.
func NewDocument(items []Item) Document {
	return Document{Version: documentVersion, Items: items}
}

// Marshal renders the document as indented JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes a watchlist JSON document. A missing "items" array or
// invalid JSON is a load failure, per spec.md §7. Individual malformed
// items are skipped and counted in skipped, rather than failing the load.
func Parse(data []byte) (doc Document, skipped int, err error) {
	var raw struct {
		Version int                `json:"version"`
		Items   *[]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, 0, fmt.Errorf("parse watchlist document: %w", err)
	}
	if raw.Items == nil {
		return Document{}, 0, fmt.Errorf("parse watchlist document: missing items array")
	}

	doc = Document{Version: raw.Version}
	for _, item := range *raw.Items {
		var it Item
		if unmarshalErr := json.Unmarshal(item, &it); unmarshalErr != nil {
			skipped++
			continue
		}
		doc.Items = append(doc.Items, it)
	}
	return doc, skipped, nil
}

// StringPtr, Float64Ptr and Uint8Ptr are small helpers for constructing
// Items, mirroring the teacher's config-package pointer helpers.
func StringPtr(s string) *string  { return &s }
func Float64Ptr(f float64) *Coord { c := Coord(f); return &c }
func Uint8Ptr(u uint8) *uint8     { return &u }
