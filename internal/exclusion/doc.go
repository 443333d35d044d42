// Package exclusion holds the rule sets that exempt a request from the
// challenge: source IPv4 addresses and ranges, host name patterns and path
// patterns. Every rule set is built once from configuration and is read-only
// afterwards, so a single instance may be shared by concurrent requests.
package exclusion
