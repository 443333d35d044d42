// Package redirect guards the post-challenge destination against open
// redirects.
package redirect

import (
	"net/url"
	"strings"
	"unicode"
)

// IsSafe reports whether candidate may be used as a redirect target for a
// request addressed to requestHost. Relative paths are safe. Absolute URLs
// are safe only for the request's own host over http or https.
func IsSafe(candidate, requestHost string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	// "///evil.com" is treated as scheme-relative by some browsers
	if strings.HasPrefix(candidate, "///") {
		return false
	}

	// Browsers read a backslash as a slash, so "/\evil.com" is "//evil.com"
	return isSafe(candidate, requestHost) &&
		isSafe(strings.ReplaceAll(candidate, `\`, "/"), requestHost)
}

func isSafe(candidate, requestHost string) bool {
	for _, r := range candidate {
		if unicode.IsControl(r) {
			return false
		}
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	// "javascript:alert(1)" and friends
	if u.Host == "" && u.Scheme != "" {
		return false
	}

	if u.Host != "" && !strings.EqualFold(u.Host, requestHost) {
		return false
	}

	return u.Scheme == "" || u.Scheme == "http" || u.Scheme == "https"
}
