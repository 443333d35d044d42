package gate

import "time"

// Metrics interface for monitoring and observability
type Metrics interface {
	// IncDecisions counts gate outcomes. reason is the rule that produced the
	// decision: "disabled", "path", "ip", "domain", "session", "unverified",
	// "verified", "rejected", "missing_token" or "method".
	IncDecisions(decision DecisionKind, reason string)

	// IncVerifications counts verification calls by result: "success",
	// "failure" or "error".
	IncVerifications(result string)

	ObserveVerificationDuration(duration time.Duration)

	IncSessionErrors(operation string)
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
	Port    string `yaml:"port" default:"9090"`
}
