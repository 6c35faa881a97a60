// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

const (
	IniName            = ".dapexport.ini"
	IniSource          = "ini_source"
	CurrentEnvironment = "current_environment"
	UpdatedEnvKey      = "updated_environment"

	DapEndpoint       = "dap_endpoint"
	DapTokenEndpoint  = "dap_token_endpoint"
	DapClientId       = "dap_client_id"
	DapClientSecret   = "dap_client_secret"
	DapNamespace      = "dap_namespace"
	DapRelayUrl       = "dap_relay_url"
	DapRelayListen    = "dap_relay_listen"
	DapRelayPath      = "dap_relay_path"
	DapTrustPolicy    = "dap_trust_policy"
	DapTimeoutSeconds = "dap_timeout_seconds"

	AwsAccessKeyID     = "aws_access_key_id"
	AwsSecretAccessKey = "aws_secret_access_key"
	AwsSessionToken    = "aws_session_token"
	AwsRegion          = "aws_region"
	AwsEndpointURL     = "aws_endpoint_url"
	S3Bucket           = "s3_bucket"

	// DefaultEndpoint is the public production gateway of the vendor API.
	DefaultEndpoint = "https://api-gateway.instructure.com"
	// DefaultNamespace is the vendor's primary data catalog.
	DefaultNamespace = "canvas"
	DefaultRelayPath = "/proxy"
)
