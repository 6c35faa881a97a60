// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/catalog"
)

func newSchemaCmd() *cobra.Command {
	var (
		namespace string
		scope     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "schema TABLE",
		Short: "Print the schema of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := sdkConfig()
			tokens, err := auth.NewTokenService(conf, credentials())
			if err != nil {
				return err
			}
			svc, err := catalog.NewCatalogService(conf, tokens)
			if err != nil {
				return err
			}

			schema, err := svc.GetTableSchema(cmd.Context(), catalog.SchemaRequest{
				CatalogRequest: catalog.CatalogRequest{
					Namespace: namespaceOrDefault(namespace),
					Scope:     scope,
				},
				Table: args[0],
			})
			if err != nil {
				return err
			}

			var out []byte
			if asJSON {
				out, err = json.MarshalIndent(schema, "", "  ")
			} else {
				out, err = yaml.Marshal(schema)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "data namespace (defaults to the configured one)")
	cmd.Flags().StringVar(&scope, "scope", "", "optional scope filter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}
