package exclusion

import (
	"net"
	"strings"
)

// ClientIP resolves the client address: the first entry of an
// X-Forwarded-For chain when present, otherwise the peer address without its
// port. The forwarded header is trusted as-is.
func ClientIP(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return stripPort(first)
		}
	}
	return stripPort(strings.TrimSpace(remoteAddr))
}

// stripPort handles "1.2.3.4:80", "[::1]:80" and bare addresses
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
