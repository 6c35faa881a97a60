// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/catalog"
)

func newTablesCmd() *cobra.Command {
	var (
		namespace string
		scope     string
	)

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables available for export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := sdkConfig()
			tokens, err := auth.NewTokenService(conf, credentials())
			if err != nil {
				return err
			}
			svc, err := catalog.NewCatalogService(conf, tokens)
			if err != nil {
				return err
			}

			tables, err := svc.ListTables(cmd.Context(), catalog.ListTablesRequest{
				CatalogRequest: catalog.CatalogRequest{
					Namespace: namespaceOrDefault(namespace),
					Scope:     scope,
				},
			})
			if err != nil {
				return err
			}

			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "data namespace (defaults to the configured one)")
	cmd.Flags().StringVar(&scope, "scope", "", "optional scope filter")
	return cmd
}
