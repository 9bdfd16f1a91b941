package watchlist

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMac renders addr as uppercase colon-separated hex, exactly 17
// characters, per spec.md §6.
func FormatMac(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}

// ParseMac parses a 17-character colon-separated MAC address.
func ParseMac(s string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("invalid mac %q: expected 6 octets", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("invalid mac %q: %w", s, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}
