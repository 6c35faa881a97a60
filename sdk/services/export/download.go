// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/utils"
)

// directAccessPattern matches the object store's direct-access URLs for
// which a relay round-trip only double-buffers the payload. Direct-path
// failures always fall back to the relay route.
var directAccessPattern = regexp.MustCompile(
	`^https://[^/]+\.(s3[.-][a-z0-9-]+\.amazonaws\.com|s3\.amazonaws\.com|storage\.googleapis\.com)/`)

var dataFileExtPattern = regexp.MustCompile(
	`\.(gz|csv|parquet|zip|json|jsonl|tsv|txt)$`)

// ResolveURLs exchanges object ids for short-lived signed URLs:
// POST {base}/dap/object/url with the id list. The relay is not
// payload-type-aware, so a response misclassified as binary is still
// accepted as long as its bytes decode to the urls document.
func (s *ExportService) ResolveURLs(ctx context.Context, objectIDs []string) (map[string]DownloadURLInfo, error) {
	if len(objectIDs) == 0 {
		return nil, errors.New("object id list must not be empty")
	}

	headers, err := s.tokens.BearerHeaders(ctx)
	if err != nil {
		return nil, err
	}
	headers["Content-Type"] = "application/json"

	body, err := json.Marshal(objectIDs)
	if err != nil {
		return nil, err
	}

	url := s.http.BuildURL(nil, "object", "url")
	env, err := s.http.Do(ctx, http.MethodPost, url, headers, body)
	if err != nil {
		return nil, fmt.Errorf("url resolution failed: %w", err)
	}
	if env.Status != http.StatusOK {
		return nil, &URLResolutionError{Status: env.Status, Message: envMessage(env)}
	}

	var resp struct {
		URLs map[string]DownloadURLInfo `json:"urls"`
	}
	if err := env.Payload.AsJSON(&resp); err != nil {
		return nil, &URLResolutionError{Status: env.Status, Message: "malformed urls response: " + err.Error()}
	}
	if resp.URLs == nil {
		return nil, &URLResolutionError{Status: env.Status, Message: "urls key missing from response"}
	}
	return resp.URLs, nil
}

// DownloadObject fetches one object's bytes. Object-store URLs with a
// data-file extension are fetched directly, bypassing the relay; any
// direct failure falls back to the relay route. A redirect envelope from
// the relay (oversized-file case) is surfaced as a RedirectDescriptor,
// never silently fetched.
func (s *ExportService) DownloadObject(ctx context.Context, info DownloadURLInfo) (*FileResult, error) {
	if info.URL == "" {
		return nil, errors.New("download url is empty")
	}
	filename := info.Filename
	if filename == "" {
		filename = filenameFromURL(info.URL)
	}

	if s.directEligible(info.URL) {
		if content, err := s.fetchDirect(ctx, info.URL); err == nil {
			return &FileResult{Filename: filename, Content: content}, nil
		}
		// fall through to the relay route
	}

	env, err := s.http.Do(ctx, http.MethodGet, info.URL, nil, nil)
	if err != nil {
		return nil, &DownloadFailedError{URL: info.URL, Err: err}
	}
	if env.Redirect != "" {
		return &FileResult{
			Filename: filename,
			Redirect: &RedirectDescriptor{
				URL:     env.Redirect,
				Message: "file too large for the relay, download it directly",
			},
		}, nil
	}
	if env.Status != http.StatusOK {
		return nil, &DownloadFailedError{
			URL: info.URL,
			Err: fmt.Errorf("status %d: %s", env.Status, envMessage(env)),
		}
	}

	content, err := env.Payload.AsBytes()
	if err != nil {
		return nil, &DownloadFailedError{URL: info.URL, Err: err}
	}
	return &FileResult{Filename: filename, Content: content}, nil
}

// DownloadAll is the end-to-end call: submit, await, resolve, download
// every object of the completed job, in that strict order. A job that
// completes with zero objects yields an empty file list, not an error:
// there was simply no data in the requested window.
func (s *ExportService) DownloadAll(ctx context.Context, req DownloadAllRequest) ([]FileResult, error) {
	job, err := s.GetTableData(ctx, SubmitRequest{TableRequest: req.TableRequest, Query: req.Query},
		DefaultJobTimeout, DefaultPollInterval)
	if err != nil {
		return nil, err
	}

	if len(job.Objects) == 0 {
		return []FileResult{}, nil
	}

	ids := make([]string, 0, len(job.Objects))
	for _, obj := range job.Objects {
		ids = append(ids, obj.ID)
	}

	urls, err := s.ResolveURLs(ctx, ids)
	if err != nil {
		return nil, err
	}

	files := make([]FileResult, 0, len(ids))
	for _, id := range ids {
		info, ok := urls[id]
		if !ok {
			return nil, &URLResolutionError{Status: http.StatusOK, Message: "no url for object " + id}
		}
		res, err := s.DownloadObject(ctx, info)
		if err != nil {
			return nil, err
		}
		files = append(files, *res)
	}

	if req.MirrorBucket != "" && s.s3 != nil {
		if err := s.mirrorFiles(ctx, req.MirrorBucket, req.MirrorPrefix, files); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// mirrorFiles uploads every decoded file into the mirror bucket. Redirect
// results are skipped: the relay never saw their bytes.
func (s *ExportService) mirrorFiles(ctx context.Context, bucket, prefix string, files []FileResult) error {
	for _, f := range files {
		if f.Redirect != nil {
			utils.Warnf("skipping mirror of %s: redirect-only result", f.Filename)
			continue
		}
		key := f.Filename
		if key == "" {
			key = utils.UUIDv4NoDash()
		}
		if prefix != "" {
			key = strings.TrimSuffix(prefix, "/") + "/" + key
		}
		if err := s.s3.UploadBytes(ctx, bucket, key, f.Content); err != nil {
			return fmt.Errorf("mirror of %s failed: %w", f.Filename, err)
		}
	}
	return nil
}

func (s *ExportService) directEligible(rawurl string) bool {
	stripped := rawurl
	if i := strings.IndexByte(stripped, '?'); i >= 0 {
		stripped = stripped[:i]
	}
	return directAccessPattern.MatchString(rawurl) &&
		dataFileExtPattern.MatchString(strings.ToLower(stripped))
}

func (s *ExportService) fetchDirect(ctx context.Context, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("direct fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func filenameFromURL(rawurl string) string {
	stripped := rawurl
	if i := strings.IndexByte(stripped, '?'); i >= 0 {
		stripped = stripped[:i]
	}
	name := path.Base(stripped)
	if name == "." || name == "/" || name == "" {
		return utils.UUIDv4NoDash()
	}
	return name
}

func marshalQuery(q QueryDescriptor) ([]byte, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}
	return body, nil
}

func envMessage(env *relay.Envelope) string {
	return relay.ErrorMessage(env)
}
