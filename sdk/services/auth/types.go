// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"fmt"
	"time"
)

// Credentials live in process memory only; nothing here is ever persisted.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Token is replaced whole on every refresh, never partially updated.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token can still be used at the given instant.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.Expiry)
}

// ErrMissingCredentials is returned when client id or secret is unset.
var ErrMissingCredentials = errors.New("client id and client secret must both be set")

// AuthenticationFailedError carries the vendor's status and message for a
// rejected client-credentials exchange.
type AuthenticationFailedError struct {
	Status  int
	Message string
}

func (e *AuthenticationFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}
