package exclusion

import (
	"net"
	"strings"
)

// DomainPattern is an exact host or, when Wildcard is set, a base domain
// covering itself and every subdomain.
type DomainPattern struct {
	Domain   string
	Wildcard bool
}

// Matches reports whether the normalized host matches the pattern
func (p DomainPattern) Matches(host string) bool {
	if host == p.Domain {
		return true
	}
	return p.Wildcard && strings.HasSuffix(host, "."+p.Domain)
}

// DomainPatterns is a parsed exclusion list
type DomainPatterns []DomainPattern

// ParseDomainPatterns parses "example.com", "*.example.com" and
// ".example.com". Empty entries are ignored.
func ParseDomainPatterns(patterns []string) DomainPatterns {
	var parsed DomainPatterns
	for _, raw := range patterns {
		pattern := normalizeHost(raw)

		var wildcard bool
		switch {
		case strings.HasPrefix(pattern, "*."):
			pattern, wildcard = pattern[2:], true
		case strings.HasPrefix(pattern, "."):
			pattern, wildcard = pattern[1:], true
		}

		if pattern == "" {
			continue
		}
		parsed = append(parsed, DomainPattern{Domain: pattern, Wildcard: wildcard})
	}
	return parsed
}

// Contains reports whether host, with any port removed, matches a pattern
func (ps DomainPatterns) Contains(host string) bool {
	if len(ps) == 0 {
		return false
	}

	host = normalizeHost(stripHostPort(host))
	if host == "" {
		return false
	}

	for _, p := range ps {
		if p.Matches(host) {
			return true
		}
	}
	return false
}

func stripHostPort(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
