// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"errors"
	"fmt"
)

// Format of the exported table data.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
)

// QueryDescriptor is the query-submission body, exactly
// {format, since?, until?, mode?}: snapshot queries omit both bounds,
// incremental queries always carry since.
type QueryDescriptor struct {
	Format Format `json:"format"`
	Since  string `json:"since,omitempty"`
	Until  string `json:"until,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// JobStatus is the server-side state of an export job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is an asynchronous server-side export task. A failed job's Error
// field is authoritative.
type Job struct {
	ID      string      `json:"id"`
	Status  JobStatus   `json:"status"`
	Objects []ObjectRef `json:"objects,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ObjectRef references one output artifact of a completed job.
type ObjectRef struct {
	ID string `json:"id"`
}

// DownloadURLInfo is a short-lived signed URL for one object. Not kept
// beyond the current download pass.
type DownloadURLInfo struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// RedirectDescriptor is returned instead of bytes when the relay refuses
// to ferry an oversized file: the caller must present it as a manual
// download link.
type RedirectDescriptor struct {
	URL     string
	Message string
}

// FileResult is one downloaded artifact. Either Content or Redirect is
// set, never both.
type FileResult struct {
	Filename string
	Content  []byte
	Redirect *RedirectDescriptor
}

// Base for all operations addressing one table.
type TableRequest struct {
	Namespace string
	Table     string
	Scope     string // optional
}

type SubmitRequest struct {
	TableRequest

	Query QueryDescriptor
}

type DownloadAllRequest struct {
	TableRequest

	Query QueryDescriptor

	// MirrorBucket, when set together with an S3 configuration, mirrors
	// every decoded file into the bucket after download.
	MirrorBucket string
	// MirrorPrefix prepends a key prefix to mirrored files.
	MirrorPrefix string
}

// --- error taxonomy ---

// ErrInvalidQuery marks a query descriptor that violates the builder
// contract (incremental without since, until without since).
var ErrInvalidQuery = errors.New("invalid query descriptor")

// ErrJobTimedOut marks an AwaitCompletion deadline hit.
var ErrJobTimedOut = errors.New("job timed out")

// JobNotFoundError: the job expired or never existed.
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", e.JobID)
}

// JobFailedError carries the vendor-provided failure reason verbatim.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("job %s failed: %s", e.JobID, e.Reason)
	}
	return fmt.Sprintf("job %s failed", e.JobID)
}

// URLResolutionError reports a failed object-id to signed-URL exchange.
type URLResolutionError struct {
	Status  int
	Message string
}

func (e *URLResolutionError) Error() string {
	return fmt.Sprintf("url resolution failed (status %d): %s", e.Status, e.Message)
}

// DownloadFailedError is surfaced only after every decoding path for an
// object's bytes is exhausted, or the fetch itself failed on both the
// direct and the relay route.
type DownloadFailedError struct {
	URL string
	Err error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadFailedError) Unwrap() error { return e.Err }
