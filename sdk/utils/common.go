// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/config"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
)

/* ------------ logging helpers (stderr) ------------ */

func Infof(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", a...)
}

func Warnf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", a...)
}

func UUIDv4NoDash() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// SDKConfig assembles the SDK configuration from the current Viper state
// (env vars merged over the INI environment file).
func SDKConfig() config.Config {
	timeout := time.Duration(viper.GetInt(DapTimeoutSeconds)) * time.Second

	trust := relay.TrustSystem
	if strings.EqualFold(viper.GetString(DapTrustPolicy), string(relay.TrustInsecure)) {
		trust = relay.TrustInsecure
	}

	return config.Config{
		Core: config.CoreConfig{
			BaseURL:       viper.GetString(DapEndpoint),
			TokenEndpoint: viper.GetString(DapTokenEndpoint),
			Timeout:       timeout,
		},
		Relay: config.RelayConfig{
			URL:   viper.GetString(DapRelayUrl),
			Trust: trust,
		},
		S3: config.S3Config{
			AccessKey:   viper.GetString(AwsAccessKeyID),
			SecretKey:   viper.GetString(AwsSecretAccessKey),
			AccessToken: viper.GetString(AwsSessionToken),
			Region:      viper.GetString(AwsRegion),
			EndpointURL: viper.GetString(AwsEndpointURL),
			Bucket:      viper.GetString(S3Bucket),
		},
	}
}
