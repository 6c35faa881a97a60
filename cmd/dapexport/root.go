// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/config"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/utils"
)

var envFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dapexport",
		Short:         "Export tables from the learning-platform data access API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return utils.RegisterIniCfgWithViper(envFlag)
		},
	}
	root.PersistentFlags().StringVar(&envFlag, "env", "", "configuration environment to use")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newDownloadCmd())
	return root
}

// Execute runs the root command and maps any error to an exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func sdkConfig() config.Config {
	return utils.SDKConfig()
}

func credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:     viper.GetString(utils.DapClientId),
		ClientSecret: viper.GetString(utils.DapClientSecret),
	}
}

func namespaceOrDefault(ns string) string {
	if ns != "" {
		return ns
	}
	if v := viper.GetString(utils.DapNamespace); v != "" {
		return v
	}
	return utils.DefaultNamespace
}
