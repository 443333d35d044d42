package gate

import "encoding/json"

// DecisionKind represents the outcome of a gate evaluation
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionRedirectToChallenge
	DecisionRedirectToDestination
)

// String returns the string representation of the decision kind
func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToChallenge:
		return "challenge"
	case DecisionRedirectToDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler interface
func (k DecisionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Decision is the result of Evaluate or HandleVerificationSubmission.
// Target is empty for DecisionAllow.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Target string       `json:"target,omitempty"`
}

// Allow lets the request continue to the application.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// RedirectToChallenge sends the client to the challenge page at target.
func RedirectToChallenge(target string) Decision {
	return Decision{Kind: DecisionRedirectToChallenge, Target: target}
}

// RedirectToDestination sends a cleared client on to target.
func RedirectToDestination(target string) Decision {
	return Decision{Kind: DecisionRedirectToDestination, Target: target}
}

// IsRedirect reports whether the decision ends the request with a redirect.
func (d Decision) IsRedirect() bool {
	return d.Kind == DecisionRedirectToChallenge || d.Kind == DecisionRedirectToDestination
}
