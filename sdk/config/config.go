// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
)

// Config passed to the SDK as a whole (no viper/INI here).
type Config struct {
	Core  CoreConfig
	Relay RelayConfig
	S3    S3Config
}

// CoreConfig points at the vendor export API.
type CoreConfig struct {
	// BaseURL of the vendor API, e.g. https://api-gateway.instructure.com
	BaseURL string
	// TokenEndpoint is the OAuth2 client-credentials endpoint. Empty means
	// BaseURL + "/ids/auth/login".
	TokenEndpoint string
	// Timeout per call; zero means the relay default (5 minutes).
	Timeout time.Duration
}

// RelayConfig selects how outbound calls are performed. With URL set, every
// call is wrapped in a proxy request and posted to the relay endpoint; an
// empty URL means calls run through an in-process executor with the same
// normalization.
type RelayConfig struct {
	URL   string
	Trust relay.TrustPolicy
}

type S3Config struct {
	AccessKey   string
	SecretKey   string
	AccessToken string
	Region      string
	EndpointURL string
	Bucket      string
}
