// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
)

// newLoginCmd verifies the configured client credentials by forcing a
// fresh token exchange. Nothing is written to disk: the token lives and
// dies with the process.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the configured client credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := auth.NewTokenService(sdkConfig(), credentials())
			if err != nil {
				return err
			}
			if _, err := tokens.Authenticate(cmd.Context()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful.")
			return nil
		},
	}
}
