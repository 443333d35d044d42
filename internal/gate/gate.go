package gate

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"turnstileguard/internal/exclusion"
	"turnstileguard/internal/redirect"
)

const (
	// TokenField is the form field the Turnstile widget submits.
	TokenField = "cf-turnstile-response"
	// NextField carries the post-challenge destination.
	NextField = "next"
)

// Verifier checks a challenge token against the verification service.
// Implementations must report every failure, including transport errors, as
// false.
type Verifier interface {
	Verify(ctx context.Context, secret, token, remoteIP string) bool
}

// Request holds the facts the gate needs, abstracted from HTTP
type Request struct {
	Method       string     `json:"method,omitempty"`
	Path         string     `json:"path,omitempty"`
	Host         string     `json:"host,omitempty"`
	RemoteAddr   string     `json:"remote_addr,omitempty"`
	ForwardedFor string     `json:"forwarded_for,omitempty"`
	Form         url.Values `json:"-"`
}

// ClientIP returns the resolved client address for the request
func (r *Request) ClientIP() string {
	return exclusion.ClientIP(r.RemoteAddr, r.ForwardedFor)
}

// Gate is the decision engine. It is safe for concurrent use; nothing is
// mutated after New returns.
type Gate struct {
	config   TurnstileConfig
	paths    *exclusion.PathMatcher
	ips      exclusion.IPRanges
	domains  exclusion.DomainPatterns
	verifier Verifier
	metrics  Metrics
	logger   Logger
}

// New builds the gate and its matchers from config
func New(config TurnstileConfig, verifier Verifier, metrics Metrics, logger Logger) *Gate {
	if config.SessionKey == "" {
		config.SessionKey = DefaultSessionKey
	}
	if config.ChallengePath == "" {
		config.ChallengePath = DefaultChallengePath
	}
	if config.VerifyPath == "" {
		config.VerifyPath = DefaultVerifyPath
	}

	logger = logger.With("component", "gate")

	ips, dropped := exclusion.ParseIPRanges(config.ExcludedIPs)
	if dropped > 0 {
		logger.Warn("ignoring malformed excluded IP entries", "dropped", dropped)
	}

	paths := exclusion.NewPathMatcher(config.ExcludedPaths, config.ChallengePath, config.VerifyPath)
	if invalid := paths.Invalid(); len(invalid) > 0 {
		logger.Warn("excluded path patterns are not valid regular expressions, matching as prefixes only", "patterns", invalid)
	}

	g := &Gate{
		config:   config,
		paths:    paths,
		ips:      ips,
		domains:  exclusion.ParseDomainPatterns(config.ExcludedDomains),
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}

	logger.Info("gate configured",
		"enabled", config.Enabled,
		"challenge_path", config.ChallengePath,
		"verify_path", config.VerifyPath,
		"excluded_paths", len(config.ExcludedPaths),
		"excluded_ips", len(ips),
		"excluded_domains", len(g.domains))

	return g
}

// Config returns the configuration snapshot the gate was built with
func (g *Gate) Config() TurnstileConfig {
	return g.config
}

// Evaluate decides whether req may continue or must go through the challenge.
// Rules are consulted in order: enablement, path, client IP, host, session.
func (g *Gate) Evaluate(ctx context.Context, req *Request, session Session) Decision {
	decision, reason := g.evaluate(ctx, req, session)
	g.metrics.IncDecisions(decision.Kind, reason)

	if decision.Kind == DecisionAllow {
		g.logger.Debug("request allowed", "path", req.Path, "reason", reason)
	} else {
		g.logger.Debug("redirecting unverified client to challenge",
			"path", req.Path,
			"client_ip", req.ClientIP(),
			"target", decision.Target)
	}

	return decision
}

func (g *Gate) evaluate(ctx context.Context, req *Request, session Session) (Decision, string) {
	if !g.config.Enabled {
		return Allow(), "disabled"
	}
	if g.paths.Contains(req.Path) {
		return Allow(), "path"
	}
	if g.ips.Contains(req.ClientIP()) {
		return Allow(), "ip"
	}
	if g.domains.Contains(req.Host) {
		return Allow(), "domain"
	}
	if session != nil && session.Get(ctx, g.config.SessionKey) {
		return Allow(), "session"
	}

	return RedirectToChallenge(g.challengeURL(req.Path)), "unverified"
}

// HandleVerificationSubmission processes the challenge form. A successful
// verification marks session as passed and redirects to the requested
// destination when it is safe, otherwise to the site root. Every failure
// leads back to the challenge page.
func (g *Gate) HandleVerificationSubmission(ctx context.Context, req *Request, session Session) Decision {
	if req.Method != http.MethodPost {
		g.metrics.IncDecisions(DecisionRedirectToChallenge, "method")
		return RedirectToChallenge(g.config.ChallengePath)
	}

	token := req.Form.Get(TokenField)
	next := "/"
	if values, ok := req.Form[NextField]; ok && len(values) > 0 {
		next = strings.TrimSpace(values[0])
	}

	if token == "" {
		g.logger.Debug("verification submitted without token", "next", next)
		g.metrics.IncDecisions(DecisionRedirectToChallenge, "missing_token")
		return RedirectToChallenge(g.challengeURL(next))
	}

	clientIP := req.ClientIP()

	start := time.Now()
	passed := g.verify(ctx, token, clientIP)
	g.metrics.ObserveVerificationDuration(time.Since(start))

	if !passed {
		g.logger.Info("challenge verification failed", "client_ip", clientIP)
		g.metrics.IncDecisions(DecisionRedirectToChallenge, "rejected")
		return RedirectToChallenge(g.challengeURL(next))
	}

	if session != nil {
		if err := session.Set(ctx, g.config.SessionKey, true); err != nil {
			g.logger.Error("failed to mark session as verified", "client_ip", clientIP, "error", err)
			g.metrics.IncSessionErrors("set")
		}
	}

	destination := next
	if !redirect.IsSafe(next, req.Host) {
		g.logger.Warn("refusing unsafe redirect target", "next", next, "host", req.Host)
		destination = "/"
	}

	g.logger.Info("challenge passed", "client_ip", clientIP, "destination", destination)
	g.metrics.IncDecisions(DecisionRedirectToDestination, "verified")

	return RedirectToDestination(destination)
}

// verify calls the verifier, treating a panic as a failed verification
func (g *Gate) verify(ctx context.Context, token, clientIP string) (passed bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("verifier panicked", "client_ip", clientIP, "panic", r)
			passed = false
		}
	}()
	return g.verifier.Verify(ctx, g.config.SecretKey, token, clientIP)
}

func (g *Gate) challengeURL(next string) string {
	return g.config.ChallengePath + "?" + NextField + "=" + EscapeNext(next)
}

// EscapeNext query-escapes a destination while leaving path separators
// readable.
func EscapeNext(next string) string {
	return strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}
