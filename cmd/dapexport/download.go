// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/export"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/utils"
)

func newDownloadCmd() *cobra.Command {
	var (
		namespace    string
		scope        string
		format       string
		mode         string
		since        string
		until        string
		destination  string
		mirrorBucket string
		mirrorPrefix string
		fetchLinks   bool
	)

	cmd := &cobra.Command{
		Use:   "download TABLE",
		Short: "Export a table and save the resulting files",
		Long: "Runs a snapshot export, or an incremental one when --since is given, " +
			"waits for the job and saves every produced file. Files the relay refuses " +
			"to ferry are printed as direct download links unless --fetch-links is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := buildQuery(format, mode, since, until)
			if err != nil {
				return err
			}

			conf := sdkConfig()
			tokens, err := auth.NewTokenService(conf, credentials())
			if err != nil {
				return err
			}
			svc, err := export.NewExportService(cmd.Context(), conf, tokens)
			if err != nil {
				return err
			}

			if mirrorBucket == "" {
				mirrorBucket = viper.GetString(utils.S3Bucket)
			}

			files, err := svc.DownloadAll(cmd.Context(), export.DownloadAllRequest{
				TableRequest: export.TableRequest{
					Namespace: namespaceOrDefault(namespace),
					Table:     args[0],
					Scope:     scope,
				},
				Query:        query,
				MirrorBucket: mirrorBucket,
				MirrorPrefix: mirrorPrefix,
			})
			if err != nil {
				return err
			}

			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No data produced for the requested window.")
				return nil
			}

			for _, f := range files {
				if f.Redirect != nil {
					if fetchLinks {
						target, terr := utils.ChooseLocalTarget(destination, f.Filename)
						if terr != nil {
							return terr
						}
						if derr := utils.DownloadHTTPFile(f.Redirect.URL, target); derr != nil {
							return fmt.Errorf("fetch of %s failed: %w", f.Filename, derr)
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s\n", target)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n  %s\n", f.Filename, f.Redirect.Message, f.Redirect.URL)
					continue
				}

				target, serr := utils.SaveBytes(destination, f.Filename, f.Content)
				if serr != nil {
					return serr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", target, len(f.Content))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "data namespace (defaults to the configured one)")
	cmd.Flags().StringVar(&scope, "scope", "", "optional scope filter")
	cmd.Flags().StringVar(&format, "format", string(export.FormatJSONL), "output format: jsonl, csv, tsv or parquet")
	cmd.Flags().StringVar(&mode, "mode", "", "optional export mode hint")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound; switches to an incremental export")
	cmd.Flags().StringVar(&until, "until", "", "RFC3339 upper bound, only valid with --since")
	cmd.Flags().StringVarP(&destination, "output", "o", "", "destination directory or file")
	cmd.Flags().StringVar(&mirrorBucket, "mirror", "", "S3 bucket to mirror the files into")
	cmd.Flags().StringVar(&mirrorPrefix, "mirror-prefix", "", "key prefix for mirrored files")
	cmd.Flags().BoolVar(&fetchLinks, "fetch-links", false, "fetch oversized files directly instead of printing links")
	return cmd
}

func buildQuery(format, mode, since, until string) (export.QueryDescriptor, error) {
	if since == "" {
		if until != "" {
			return export.QueryDescriptor{}, fmt.Errorf("--until requires --since")
		}
		return export.SnapshotQuery(export.Format(format), mode), nil
	}

	sinceTS, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return export.QueryDescriptor{}, fmt.Errorf("invalid --since: %w", err)
	}
	var untilTS *time.Time
	if until != "" {
		u, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return export.QueryDescriptor{}, fmt.Errorf("invalid --until: %w", err)
		}
		untilTS = &u
	}
	return export.IncrementalQuery(export.Format(format), sinceTS, untilTS, mode)
}
