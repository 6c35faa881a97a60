// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package relay executes HTTP calls on behalf of a browser client,
// defeating cross-origin and certificate restrictions, and returns a
// normalized envelope the caller can branch on without re-sniffing the
// payload type.
package relay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// TrustPolicy selects how the relay validates the remote certificate
// chain. The vendor endpoint sometimes sits behind an untrusted chain;
// disabling verification is an explicit opt-in, never the default.
type TrustPolicy string

const (
	// TrustSystem verifies certificates against the system roots.
	TrustSystem TrustPolicy = "system"
	// TrustInsecure disables certificate verification. Development only.
	TrustInsecure TrustPolicy = "insecure"
)

const (
	// MaxBodyBytes caps request and response bodies ferried by the relay.
	MaxBodyBytes = 100 << 20
	// oversizedBytes is the threshold above which a response is still
	// returned inline but flagged in the logs.
	oversizedBytes = 50 << 20

	defaultTimeout  = 5 * time.Minute
	maxRedirectHops = 5
)

// ErrRelayTimeout marks a call that exceeded the relay deadline. It is
// distinct from TransportError: it means "retry later or reduce scope",
// not "the request was malformed".
var ErrRelayTimeout = errors.New("relay timeout")

// TransportError wraps network-level failures (DNS, connection refused)
// of the outbound call.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProxyRequest describes an arbitrary HTTP call for the relay to perform.
// Data may be any JSON value; a JSON string is sent verbatim as the body
// (form-encoded payloads travel this way), anything else is sent as its
// JSON serialization.
type ProxyRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// largeDownloadPattern matches pre-signed object-store URLs for files the
// relay refuses to ferry inline: the caller gets a redirect envelope and
// hands the browser a direct link instead.
var largeDownloadPattern = regexp.MustCompile(
	`^https://[^/]+\.(s3[.-][a-z0-9-]+\.amazonaws\.com|s3\.amazonaws\.com|storage\.googleapis\.com)/.+\.(gz|zip|parquet)(\?.*)?$`)

// Options configures an Executor. Zero values fall back to defaults.
type Options struct {
	Timeout time.Duration
	Trust   TrustPolicy
	Logger  *slog.Logger
	// LargeDownloadPattern overrides the pattern for pre-signed URLs that
	// must be redirected instead of fetched.
	LargeDownloadPattern *regexp.Regexp
}

// Executor performs the actual outbound calls. It is safe for concurrent
// use; all state is immutable after construction.
type Executor struct {
	client  *http.Client
	log     *slog.Logger
	timeout time.Duration
	largeRE *regexp.Regexp
}

func NewExecutor(opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LargeDownloadPattern == nil {
		opts.LargeDownloadPattern = largeDownloadPattern
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Trust == TrustInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		opts.Logger.Warn("certificate verification disabled", "trust", opts.Trust)
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirectHops {
				return fmt.Errorf("stopped after %d redirects", maxRedirectHops)
			}
			return nil
		},
	}

	return &Executor{
		client:  client,
		log:     opts.Logger,
		timeout: opts.Timeout,
		largeRE: opts.LargeDownloadPattern,
	}
}

// Execute performs the described call and normalizes the response.
// Non-2xx/3xx statuses below 500 pass through in the envelope with the
// real status; only transport failures and timeouts return an error.
func (e *Executor) Execute(ctx context.Context, req ProxyRequest) (*Envelope, error) {
	if req.URL == "" {
		return nil, errors.New("url is required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if e.largeRE.MatchString(req.URL) {
		e.log.Info("large download redirected", "url", req.URL)
		return &Envelope{
			Status:     http.StatusFound,
			StatusText: http.StatusText(http.StatusFound),
			Redirect:   req.URL,
		}, nil
	}

	target, err := buildTarget(req.URL, req.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}

	body, err := requestBody(req.Data)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %s %s", ErrRelayTimeout, method, req.URL)
		}
		return nil, &TransportError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: reading %s", ErrRelayTimeout, req.URL)
		}
		return nil, &TransportError{URL: req.URL, Err: err}
	}
	if len(raw) > MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodyBytes)
	}
	if len(raw) > oversizedBytes {
		e.log.Warn("oversized response returned inline",
			"url", req.URL, "bytes", len(raw))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Envelope{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    headers,
		Payload:    Classify(resp.Header.Get("Content-Type"), req.URL, raw),
	}, nil
}

// buildTarget appends query params to the request URL, preserving any
// already present.
func buildTarget(rawurl string, params map[string]string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// requestBody turns the wire `data` value into outbound body bytes.
func requestBody(data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("invalid data string: %w", err)
		}
		return []byte(s), nil
	}
	return []byte(data), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}
