// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Command dapexport is a small CLI over the export SDK: list tables,
// inspect schemas, run snapshot or incremental exports and save the
// resulting files locally or mirror them to S3.
package main

import "os"

func main() {
	os.Exit(Execute())
}
