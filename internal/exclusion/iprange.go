package exclusion

import (
	"encoding/binary"
	"net/netip"
	"strings"
)

// IPRange is an inclusive IPv4 interval. A single address is stored with
// Low == High. Low > High is kept as configured and matches nothing.
type IPRange struct {
	Low  uint32
	High uint32
}

// Contains reports whether ip lies within the range
func (r IPRange) Contains(ip uint32) bool {
	return ip >= r.Low && ip <= r.High
}

// IPRanges is a parsed exclusion list
type IPRanges []IPRange

// ParseIPRanges parses entries of the form "A.B.C.D" or "A.B.C.D-A.B.C.D".
// Malformed entries are dropped; dropped reports how many.
func ParseIPRanges(entries []string) (ranges IPRanges, dropped int) {
	for _, entry := range entries {
		r, ok := parseIPRange(entry)
		if !ok {
			dropped++
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, dropped
}

func parseIPRange(entry string) (IPRange, bool) {
	entry = strings.TrimSpace(entry)

	if low, high, isRange := strings.Cut(entry, "-"); isRange {
		lo, ok := parseIPv4(low)
		if !ok {
			return IPRange{}, false
		}
		hi, ok := parseIPv4(high)
		if !ok {
			return IPRange{}, false
		}
		return IPRange{Low: lo, High: hi}, true
	}

	ip, ok := parseIPv4(entry)
	if !ok {
		return IPRange{}, false
	}
	return IPRange{Low: ip, High: ip}, true
}

// parseIPv4 accepts dotted-quad IPv4 only
func parseIPv4(s string) (uint32, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

// Contains reports whether candidate is one of the configured addresses or
// falls inside a configured range. Unparsable candidates are never excluded.
func (rs IPRanges) Contains(candidate string) bool {
	if len(rs) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}
	b := addr.As4()
	ip := binary.BigEndian.Uint32(b[:])

	for _, r := range rs {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}
