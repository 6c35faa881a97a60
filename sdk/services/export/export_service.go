// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/config"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
)

const (
	// DefaultJobTimeout is generous on purpose: exports can be large.
	DefaultJobTimeout = 10 * time.Minute
	// DefaultPollInterval is fixed, no backoff: jobs typically complete
	// in seconds to minutes and a constant interval keeps the loop
	// predictable.
	DefaultPollInterval = 5 * time.Second
)

// ExportService drives the asynchronous export lifecycle: submit a query,
// poll the job, resolve objects to signed URLs and download the bytes.
type ExportService struct {
	http   config.CoreHTTP
	tokens *auth.TokenService
	s3     *config.S3Client

	// httpClient serves direct (relay-bypassing) object fetches.
	httpClient *http.Client
}

func NewExportService(ctx context.Context, conf config.Config, tokens *auth.TokenService) (*ExportService, error) {
	if conf.Core.BaseURL == "" {
		return nil, errors.New("invalid core config")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}

	svc := &ExportService{
		http:       config.NewHTTPCore(nil, conf),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: conf.Core.Timeout},
	}

	// S3 is optional: only wired when mirroring is configured.
	if conf.S3.AccessKey != "" || conf.S3.EndpointURL != "" {
		s3c, err := config.NewS3Client(ctx, conf.S3)
		if err != nil {
			return nil, fmt.Errorf("S3 init failed: %w", err)
		}
		svc.s3 = s3c
	}

	return svc, nil
}

// Submit posts the query and returns the job handle. The returned job may
// already be terminal: trivial or cached results complete immediately.
func (s *ExportService) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if req.Namespace == "" {
		return nil, errors.New("namespace not specified")
	}
	if req.Table == "" {
		return nil, errors.New("table not specified")
	}
	if err := req.Query.validate(); err != nil {
		return nil, err
	}

	headers, err := s.tokens.BearerHeaders(ctx)
	if err != nil {
		return nil, err
	}
	headers["Content-Type"] = "application/json"

	body, err := marshalQuery(req.Query)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"scope": req.Scope}
	url := s.http.BuildURL(params, "query", req.Namespace, "table", req.Table, "data")
	env, err := s.http.Do(ctx, http.MethodPost, url, headers, body)
	if err != nil {
		return nil, fmt.Errorf("query submission failed: %w", err)
	}
	if env.Status != http.StatusOK && env.Status != http.StatusCreated {
		return nil, fmt.Errorf("query submission failed (status %d): %s", env.Status, envMessage(env))
	}

	var job Job
	if err := env.Payload.AsJSON(&job); err != nil {
		return nil, fmt.Errorf("invalid job response: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("job response missing id")
	}
	return &job, nil
}

// Poll performs a single status check: GET {base}/dap/job/{id}.
func (s *ExportService) Poll(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, errors.New("job id not specified")
	}

	headers, err := s.tokens.BearerHeaders(ctx)
	if err != nil {
		return nil, err
	}

	url := s.http.BuildURL(nil, "job", jobID)
	env, err := s.http.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("job poll failed: %w", err)
	}
	if env.Status == http.StatusNotFound {
		return nil, &JobNotFoundError{JobID: jobID}
	}
	if env.Status != http.StatusOK {
		return nil, fmt.Errorf("job poll failed (status %d): %s", env.Status, envMessage(env))
	}

	var job Job
	if err := env.Payload.AsJSON(&job); err != nil {
		return nil, fmt.Errorf("invalid job response: %w", err)
	}
	return &job, nil
}

// AwaitCompletion polls at a fixed interval until the job completes.
// A failed status raises JobFailedError immediately, without further
// polling; the deadline raises ErrJobTimedOut and is never exceeded by
// more than one poll interval.
func (s *ExportService) AwaitCompletion(ctx context.Context, jobID string, timeout, interval time.Duration) (*Job, error) {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		job, err := s.Poll(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case JobCompleted:
			return job, nil
		case JobFailed:
			return nil, &JobFailedError{JobID: jobID, Reason: job.Error}
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: job %s still %s after %s", ErrJobTimedOut, jobID, job.Status, timeout)
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// GetTableData is the orchestrator's primary contract: submit, then wait —
// skipping the wait entirely when the submission already came back
// terminal.
func (s *ExportService) GetTableData(ctx context.Context, req SubmitRequest, timeout, interval time.Duration) (*Job, error) {
	job, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		if job.Status == JobFailed {
			return nil, &JobFailedError{JobID: job.ID, Reason: job.Error}
		}
		return job, nil
	}
	return s.AwaitCompletion(ctx, job.ID, timeout, interval)
}
