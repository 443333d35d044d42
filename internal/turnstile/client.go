// Package turnstile talks to the Cloudflare Turnstile siteverify endpoint.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"turnstileguard/internal/gate"
)

// maxResponseBytes bounds how much of the siteverify body is read
const maxResponseBytes = 64 << 10

// Response is the siteverify result document
type Response struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	Action      string   `json:"action,omitempty"`
	CData       string   `json:"cdata,omitempty"`
}

// Client implements gate.Verifier against a siteverify endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     gate.Logger
	metrics    gate.Metrics
}

// NewClient creates a verification client. A non-positive timeout uses
// gate.DefaultVerifyTimeout.
func NewClient(endpoint string, timeout time.Duration, logger gate.Logger, metrics gate.Metrics) *Client {
	if endpoint == "" {
		endpoint = gate.DefaultVerificationURL
	}
	if timeout <= 0 {
		timeout = gate.DefaultVerifyTimeout
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "turnstile"),
		metrics:    metrics,
	}
}

// Verify reports whether token was accepted. Transport and protocol errors
// are logged and reported as false. A single attempt is made.
func (c *Client) Verify(ctx context.Context, secret, token, remoteIP string) bool {
	result, err := c.SiteVerify(ctx, secret, token, remoteIP)
	if err != nil {
		c.logger.Warn("turnstile verification error", "endpoint", c.endpoint, "error", err)
		c.metrics.IncVerifications("error")
		return false
	}

	if !result.Success {
		c.logger.Debug("turnstile rejected token", "error_codes", result.ErrorCodes, "remote_ip", remoteIP)
		c.metrics.IncVerifications("failure")
		return false
	}

	c.logger.Debug("turnstile accepted token", "hostname", result.Hostname, "remote_ip", remoteIP)
	c.metrics.IncVerifications("success")
	return true
}

// SiteVerify posts the token and returns the decoded result
func (c *Client) SiteVerify(ctx context.Context, secret, token, remoteIP string) (*Response, error) {
	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	form.Set("remoteip", remoteIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gate.ErrVerifierTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gate.ErrVerifierTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", gate.ErrVerifierProtocol, resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", gate.ErrVerifierProtocol, err)
	}

	return &result, nil
}
