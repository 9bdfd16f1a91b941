package dot11

import (
	"testing"

	"github.com/proxtrack/pt/internal/tracker"
	"github.com/stretchr/testify/require"
)

// buildHeader returns the fixed 24-byte 802.11 management frame header:
// frame control, duration, three addresses, sequence control.
func buildHeader(subtype byte, addr2, addr3 [6]byte) []byte {
	h := make([]byte, 24)
	h[0] = subtype << 4
	h[1] = 0x00
	// Duration/ID, Address1 (broadcast), left as zero.
	copy(h[10:16], addr2[:])
	copy(h[16:22], addr3[:])
	return h
}

func buildSSIDIE(ssid string) []byte {
	ie := make([]byte, 2+len(ssid))
	ie[0] = ieIDSSID
	ie[1] = byte(len(ssid))
	copy(ie[2:], ssid)
	return ie
}

func buildProbeRequest(addr2 [6]byte, ssid string) []byte {
	frame := buildHeader(subtypeProbeRequest, addr2, [6]byte{})
	frame = append(frame, buildSSIDIE(ssid)...)
	return frame
}

func buildBeacon(addr3 [6]byte, ssid string) []byte {
	frame := buildHeader(subtypeBeacon, [6]byte{}, addr3)
	fixed := make([]byte, 12) // timestamp(8) + beacon interval(2) + capability(2)
	frame = append(frame, fixed...)
	frame = append(frame, buildSSIDIE(ssid)...)
	return frame
}

func TestDecodeManagementFrameProbeRequestWithSSID(t *testing.T) {
	addr2 := [6]byte{1, 2, 3, 4, 5, 6}
	frame := buildProbeRequest(addr2, "home-network")

	obs, err := DecodeManagementFrame(frame, -55, 100)
	require.NoError(t, err)
	require.Equal(t, tracker.WifiProbeReq, obs.Kind)
	require.Equal(t, addr2, obs.Addr)
	require.EqualValues(t, -55, obs.RSSIDBm)
	require.EqualValues(t, 100, obs.TSSec)
	require.Equal(t, "home-network", obs.SSIDString())
}

func TestDecodeManagementFrameProbeRequestHiddenSSID(t *testing.T) {
	addr2 := [6]byte{1, 2, 3, 4, 5, 6}
	frame := buildProbeRequest(addr2, "")

	obs, err := DecodeManagementFrame(frame, -55, 100)
	require.NoError(t, err)
	require.EqualValues(t, 0, obs.SSIDLen, "zero-length SSID IE means hidden network")
}

func TestDecodeManagementFrameBeacon(t *testing.T) {
	addr3 := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := buildBeacon(addr3, "coffeeshop")

	obs, err := DecodeManagementFrame(frame, -70, 5)
	require.NoError(t, err)
	require.Equal(t, tracker.WifiApBeacon, obs.Kind)
	require.Equal(t, addr3, obs.Addr)
	require.Equal(t, "coffeeshop", obs.SSIDString())
}

func TestDecodeManagementFrameProbeResponse(t *testing.T) {
	addr3 := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := buildHeader(subtypeProbeResponse, [6]byte{}, addr3)
	frame = append(frame, make([]byte, 12)...)
	frame = append(frame, buildSSIDIE("resp-ap")...)

	obs, err := DecodeManagementFrame(frame, -70, 5)
	require.NoError(t, err)
	require.Equal(t, tracker.WifiApProbeResp, obs.Kind)
}

func TestDecodeManagementFrameTooShortIsMalformed(t *testing.T) {
	_, err := DecodeManagementFrame(make([]byte, 10), 0, 0)
	require.Error(t, err)
	var malformed *ErrMalformedFrame
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeManagementFrameUnhandledSubtype(t *testing.T) {
	frame := buildHeader(0x0A, [6]byte{}, [6]byte{}) // disassociation, not handled
	_, err := DecodeManagementFrame(frame, 0, 0)
	require.Error(t, err)
}

func TestDecodeManagementFrameTruncatedSSIDIEIsSkipped(t *testing.T) {
	addr2 := [6]byte{1, 2, 3, 4, 5, 6}
	frame := buildHeader(subtypeProbeRequest, addr2, [6]byte{})
	// Claims a 10-byte SSID but only provides 2.
	frame = append(frame, ieIDSSID, 10, 'a', 'b')

	obs, err := DecodeManagementFrame(frame, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, obs.SSIDLen)
}
