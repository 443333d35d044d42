package exclusion

import (
	"regexp"
	"strings"
)

type pathPattern struct {
	raw string
	re  *regexp.Regexp
}

// PathMatcher matches request paths against reserved prefixes and
// configured patterns.
type PathMatcher struct {
	reserved []string
	patterns []pathPattern
	invalid  []string
}

// NewPathMatcher compiles patterns. Each pattern matches a path it is a
// literal prefix of, or whose beginning its regular expression matches.
// Patterns that do not compile keep only the literal prefix behaviour.
// Paths under any of reserved are always matched.
func NewPathMatcher(patterns []string, reserved ...string) *PathMatcher {
	m := &PathMatcher{}

	for _, r := range reserved {
		if r != "" {
			m.reserved = append(m.reserved, r)
		}
	}

	for _, raw := range patterns {
		if raw == "" {
			continue
		}
		p := pathPattern{raw: raw}
		re, err := regexp.Compile(`^(?:` + raw + `)`)
		if err != nil {
			m.invalid = append(m.invalid, raw)
		} else {
			p.re = re
		}
		m.patterns = append(m.patterns, p)
	}

	return m
}

// Contains reports whether path is excluded from the challenge
func (m *PathMatcher) Contains(path string) bool {
	for _, r := range m.reserved {
		if strings.HasPrefix(path, r) {
			return true
		}
	}

	for _, p := range m.patterns {
		if strings.HasPrefix(path, p.raw) {
			return true
		}
		if p.re != nil && p.re.MatchString(path) {
			return true
		}
	}
	return false
}

// Invalid returns the configured patterns that failed to compile
func (m *PathMatcher) Invalid() []string {
	return m.invalid
}
