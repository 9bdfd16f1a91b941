package watchlist

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/proxtrack/pt/internal/fsutil"
	"github.com/proxtrack/pt/internal/security"
)

// Placemark is one Watching, geo-tagged entity as rendered to KML.
type Placemark struct {
	Kind        string // KindWifiAp, KindWifiClient, KindBleAdv
	Mac         string
	SSID        string
	HasSSID     bool
	TrackerType string
	HasTracker  bool
	Lat, Lon    float64
}

// name picks the Placemark's display name: tracker_type for tracks, SSID
// for anchors, falling back to the MAC address.
func (p Placemark) name() string {
	if p.Kind != KindWifiAp && p.HasTracker {
		return fmt.Sprintf("%s (%s)", p.TrackerType, p.Mac)
	}
	if p.Kind == KindWifiAp && p.HasSSID {
		return fmt.Sprintf("%s (%s)", p.SSID, p.Mac)
	}
	return p.Mac
}

func (p Placemark) description() string {
	var lines []string
	lines = append(lines, "Kind: "+p.Kind)
	lines = append(lines, "MAC: "+p.Mac)
	if p.HasSSID {
		lines = append(lines, "SSID: "+p.SSID)
	}
	if p.HasTracker {
		lines = append(lines, "Tracker: "+p.TrackerType)
	}
	return strings.Join(lines, "\n")
}

// RenderKML writes a KML Document containing one Placemark per input,
// with lon,lat,0 coordinates at 8 fractional digits and XML-escaped text.
func RenderKML(placemarks []Placemark) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>` + "\n")
	b.WriteString("  <name>PT Watchlist</name>\n")
	for _, p := range placemarks {
		b.WriteString("  <Placemark><name>")
		b.WriteString(escapeXML(p.name()))
		b.WriteString("</name>\n")
		b.WriteString("    <description>")
		b.WriteString(escapeXML(descriptionWithBreaks(p.description())))
		b.WriteString("</description>\n")
		b.WriteString(fmt.Sprintf("    <Point><coordinates>%.8f,%.8f,0</coordinates></Point></Placemark>\n", p.Lon, p.Lat))
	}
	b.WriteString("</Document></kml>\n")
	return []byte(b.String())
}

// descriptionWithBreaks replaces each newline with a NUL placeholder byte,
// which escapeXML renders as the KML-conventional &#10; line break.
func descriptionWithBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "\x00")
}

// escapeXML escapes the five XML special characters; the placeholder byte
// introduced by descriptionWithBreaks is rendered as &#10;.
func escapeXML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		case '\x00':
			b.WriteString("&#10;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SaveKML writes a rendered KML document to path, guarded against path
// traversal outside dir.
func SaveKML(fs fsutil.FileSystem, dir, path string, placemarks []Placemark) error {
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return fmt.Errorf("save kml: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save kml: %w", err)
	}
	if err := fs.WriteFile(path, RenderKML(placemarks), 0o644); err != nil {
		return fmt.Errorf("save kml: %w", err)
	}
	return nil
}
