// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/config"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
)

const (
	// defaultExpiresIn applies when the token response omits expires_in.
	defaultExpiresIn = 3600 * time.Second

	tokenPath = "/ids/auth/login"
)

// TokenService holds the client credentials in memory, obtains a bearer
// token and refreshes it transparently on expiry. The mutex serializes
// EnsureAuthenticated so concurrent callers never trigger redundant
// re-authentication.
type TokenService struct {
	http     config.CoreHTTP
	tokenURL string
	creds    Credentials

	mu  sync.Mutex
	tok Token

	// now is swapped in tests to exercise expiry.
	now func() time.Time
}

func NewTokenService(conf config.Config, creds Credentials) (*TokenService, error) {
	if conf.Core.BaseURL == "" && conf.Core.TokenEndpoint == "" {
		return nil, errors.New("invalid core config")
	}
	tokenURL := conf.Core.TokenEndpoint
	if tokenURL == "" {
		tokenURL = strings.TrimSuffix(conf.Core.BaseURL, "/") + tokenPath
	}
	return &TokenService{
		http:     config.NewHTTPCore(nil, conf),
		tokenURL: tokenURL,
		creds:    creds,
		now:      time.Now,
	}, nil
}

// EnsureAuthenticated returns the cached token while it is still valid and
// re-authenticates otherwise. Every other operation of the SDK passes
// through here first.
func (s *TokenService) EnsureAuthenticated(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid(s.now()) {
		return s.tok.AccessToken, nil
	}
	return s.authenticate(ctx)
}

// Authenticate forces a fresh client-credentials exchange, replacing any
// cached token.
func (s *TokenService) Authenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticate(ctx)
}

// authenticate must be called with the mutex held.
func (s *TokenService) authenticate(ctx context.Context) (string, error) {
	if s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	basic := base64.StdEncoding.EncodeToString([]byte(s.creds.ClientID + ":" + s.creds.ClientSecret))
	headers := map[string]string{
		"Authorization": "Basic " + basic,
		"Content-Type":  "application/x-www-form-urlencoded",
	}

	env, err := s.http.Do(ctx, http.MethodPost, s.tokenURL, headers, []byte("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	if env.Status != http.StatusOK {
		return "", &AuthenticationFailedError{Status: env.Status, Message: relay.ErrorMessage(env)}
	}

	var body struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := env.Payload.AsJSON(&body); err != nil {
		return "", &AuthenticationFailedError{Status: env.Status, Message: "malformed token response"}
	}
	if body.AccessToken == "" {
		return "", &AuthenticationFailedError{Status: env.Status, Message: "token response missing access_token"}
	}

	expiresIn := defaultExpiresIn
	if body.ExpiresIn > 0 {
		expiresIn = time.Duration(body.ExpiresIn) * time.Second
	}

	s.tok = Token{AccessToken: body.AccessToken, Expiry: s.now().Add(expiresIn)}
	return s.tok.AccessToken, nil
}

// BearerHeaders returns the Authorization header for an authenticated call.
func (s *TokenService) BearerHeaders(ctx context.Context) (map[string]string, error) {
	tok, err := s.EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}
