// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"time"
)

// SnapshotQuery builds a full-table export query as of now. Snapshot
// queries never carry time bounds.
func SnapshotQuery(format Format, mode string) QueryDescriptor {
	return QueryDescriptor{Format: format, Mode: mode}
}

// IncrementalQuery builds an export of changes since the given instant,
// optionally bounded above. since is normalized to an absolute RFC3339
// UTC timestamp string.
func IncrementalQuery(format Format, since time.Time, until *time.Time, mode string) (QueryDescriptor, error) {
	if since.IsZero() {
		return QueryDescriptor{}, fmt.Errorf("%w: since is required for incremental queries", ErrInvalidQuery)
	}
	q := QueryDescriptor{
		Format: format,
		Since:  since.UTC().Format(time.RFC3339),
		Mode:   mode,
	}
	if until != nil {
		q.Until = until.UTC().Format(time.RFC3339)
	}
	return q, nil
}

// validate enforces the submission contract before anything reaches the
// vendor: until only with since.
func (q QueryDescriptor) validate() error {
	if q.Format == "" {
		return fmt.Errorf("%w: format is required", ErrInvalidQuery)
	}
	if q.Until != "" && q.Since == "" {
		return fmt.Errorf("%w: until may only be set together with since", ErrInvalidQuery)
	}
	return nil
}
