// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
)

// CoreHTTP is the single gate every vendor call passes through. Both
// implementations return the relay's normalized envelope, so downstream
// code is identical whether calls go through a remote relay or in-process.
type CoreHTTP interface {
	BuildURL(params map[string]string, segments ...string) string
	Do(ctx context.Context, method, rawurl string, headers map[string]string, data []byte) (*relay.Envelope, error)
}

// NewHTTPCore selects the relay-mediated or in-process implementation
// based on the relay configuration.
func NewHTTPCore(httpClient *http.Client, conf Config) CoreHTTP {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if conf.Relay.URL != "" {
		return &relayHTTP{httpClient: httpClient, conf: conf}
	}
	return &directHTTP{
		ex: relay.NewExecutor(relay.Options{
			Timeout: conf.Core.Timeout,
			Trust:   conf.Relay.Trust,
		}),
		conf: conf,
	}
}

func buildURL(conf Config, params map[string]string, segments ...string) string {
	base := strings.TrimSuffix(conf.Core.BaseURL, "/") + "/dap"
	for _, s := range segments {
		if s == "" {
			continue
		}
		base += "/" + url.PathEscape(s)
	}
	if len(params) == 0 {
		return base
	}
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if enc := q.Encode(); enc != "" {
		base += "?" + enc
	}
	return base
}

// wrapData prepares the body for the proxy wire: valid JSON travels as-is,
// anything else (form-encoded strings) as a JSON string.
func wrapData(data []byte) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	if json.Valid(data) {
		return json.RawMessage(data), nil
	}
	raw, err := json.Marshal(string(data))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// relayHTTP posts proxy requests to a running relay endpoint.
type relayHTTP struct {
	httpClient *http.Client
	conf       Config
}

func (c *relayHTTP) BuildURL(params map[string]string, segments ...string) string {
	return buildURL(c.conf, params, segments...)
}

func (c *relayHTTP) Do(ctx context.Context, method, rawurl string, headers map[string]string, data []byte) (*relay.Envelope, error) {
	wrapped, err := wrapData(data)
	if err != nil {
		return nil, err
	}
	proxyReq := relay.ProxyRequest{
		URL:     rawurl,
		Method:  method,
		Headers: headers,
		Data:    wrapped,
	}
	body, err := json.Marshal(proxyReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.Relay.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &relay.TransportError{URL: rawurl, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &relay.TransportError{URL: rawurl, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error == "TIMEOUT" {
			return nil, fmt.Errorf("%w: %s %s", relay.ErrRelayTimeout, method, rawurl)
		}
		if e.Message != "" {
			return nil, fmt.Errorf("relay responded with %s: %s", resp.Status, e.Message)
		}
		return nil, fmt.Errorf("relay responded with %s", resp.Status)
	}

	var env relay.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("invalid relay envelope: %w", err)
	}
	return &env, nil
}

// directHTTP runs the relay executor in-process. Used by the CLI and by
// tests, where ferrying bytes through a second HTTP hop buys nothing.
type directHTTP struct {
	ex   *relay.Executor
	conf Config
}

func (c *directHTTP) BuildURL(params map[string]string, segments ...string) string {
	return buildURL(c.conf, params, segments...)
}

func (c *directHTTP) Do(ctx context.Context, method, rawurl string, headers map[string]string, data []byte) (*relay.Envelope, error) {
	wrapped, err := wrapData(data)
	if err != nil {
		return nil, err
	}
	return c.ex.Execute(ctx, relay.ProxyRequest{
		URL:     rawurl,
		Method:  method,
		Headers: headers,
		Data:    wrapped,
	})
}
