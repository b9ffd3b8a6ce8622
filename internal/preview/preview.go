// Package preview decides whether a deployed site can be shown inside the
// dashboard iframe and, when it cannot, serves it through a proxy that
// strips the framing restrictions.
package preview

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErr "github.com/aether-os/engine/pkg/errors"
)

// Verdict is the framing decision for a set of response headers.
type Verdict struct {
	Blocked       bool
	XFrameOptions string
	CSP           string
}

// Classify reports whether headers forbid cross-origin framing: X-Frame-Options
// DENY or SAMEORIGIN, or a CSP frame-ancestors directive that is 'none' or
// 'self' without a wildcard.
func Classify(h http.Header) Verdict {
	v := Verdict{XFrameOptions: h.Get("X-Frame-Options"), CSP: h.Get("Content-Security-Policy")}

	xfo := strings.ToLower(v.XFrameOptions)
	if strings.Contains(xfo, "deny") || strings.Contains(xfo, "sameorigin") {
		v.Blocked = true
	}

	csp := strings.ToLower(v.CSP)
	if idx := strings.Index(csp, "frame-ancestors"); idx >= 0 {
		directive, _, _ := strings.Cut(csp[idx:], ";")
		if strings.Contains(directive, "'none'") {
			v.Blocked = true
		}
		if strings.Contains(directive, "'self'") && !strings.Contains(directive, "*") {
			v.Blocked = true
		}
	}
	return v
}

// ParseTarget accepts absolute http(s) URLs only.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Missing url")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, appErr.New(appErr.CodeInvalid, "Invalid url")
	}
	return u, nil
}

// CheckHeaders is the subset of headers reported back by a check.
type CheckHeaders struct {
	XFrameOptions *string `json:"xFrameOptions"`
	CSP           *string `json:"csp"`
}

// CheckResult is the outcome of probing a URL.
type CheckResult struct {
	OK      bool          `json:"ok"`
	Status  int           `json:"status,omitempty"`
	Blocked bool          `json:"blocked"`
	Headers *CheckHeaders `json:"headers,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Checker probes URLs. Check does not follow redirects; Reachable does.
type Checker struct {
	client *http.Client
	follow *http.Client
}

func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		follow: &http.Client{Timeout: timeout},
	}
}

// Reachable reports whether a HEAD request to raw ends in a 2xx response.
func (c *Checker) Reachable(ctx context.Context, raw string) bool {
	if raw == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return false
	}
	resp, err := c.follow.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Check never fails: transport errors are reported inside the result.
func (c *Checker) Check(ctx context.Context, target *url.URL) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return CheckResult{Error: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	v := Classify(resp.Header)
	return CheckResult{
		OK:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
		Blocked: v.Blocked,
		Headers: &CheckHeaders{XFrameOptions: nonEmpty(v.XFrameOptions), CSP: nonEmpty(v.CSP)},
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
