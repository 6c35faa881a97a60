// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// failingTransport makes every direct fetch fail, forcing the relay route.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("no direct route")
}

func TestResolveURLs(t *testing.T) {
	v := newFakeVendor(t)
	v.urls["o1"] = "users_o1.csv.gz"
	v.files["users_o1.csv.gz"] = []byte{0x1f, 0x8b, 0x01}
	svc := v.service(t)

	urls, err := svc.ResolveURLs(context.Background(), []string{"o1"})
	require.NoError(t, err)
	require.Contains(t, urls, "o1")
	assert.Equal(t, "users_o1.csv.gz", urls["o1"].Filename)
	assert.Contains(t, urls["o1"].URL, "/files/users_o1.csv.gz")
}

func TestResolveURLsRejectsEmptyList(t *testing.T) {
	v := newFakeVendor(t)
	svc := v.service(t)

	_, err := svc.ResolveURLs(context.Background(), nil)
	assert.Error(t, err)
}

func TestResolveURLsServerError(t *testing.T) {
	srv := newErrorVendor(t, http.StatusBadGateway, `{"message":"resolver down"}`)
	svc := srv.service(t)

	_, err := svc.ResolveURLs(context.Background(), []string{"o1"})
	require.Error(t, err)

	var rerr *URLResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadGateway, rerr.Status)
	assert.Equal(t, "resolver down", rerr.Message)
}

// newErrorVendor serves the token endpoint normally and the given error
// for everything else.
func newErrorVendor(t *testing.T, status int, body string) *fakeVendor {
	t.Helper()
	v := newFakeVendor(t)
	prev := v.srv.Config.Handler
	v.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ids/auth/login" {
			prev.ServeHTTP(w, r)
			return
		}
		v.writeJSON(w, status, body)
	})
	return v
}

func TestResolveURLsToleratesBinaryMisclassification(t *testing.T) {
	// the urls document served with a binary content type still resolves
	v := newFakeVendor(t)
	doc := `{"urls":{"o1":{"url":"https://signed.example.com/f.gz","filename":"f.gz"}}}`
	prev := v.srv.Config.Handler
	v.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dap/object/url" {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte(doc))
			return
		}
		prev.ServeHTTP(w, r)
	})
	svc := v.service(t)

	urls, err := svc.ResolveURLs(context.Background(), []string{"o1"})
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/f.gz", urls["o1"].URL)
}

func TestDownloadObject(t *testing.T) {
	content := []byte{0x1f, 0x8b, 0x08, 0x00, 0x42}
	v := newFakeVendor(t)
	v.files["users_o1.csv.gz"] = content
	svc := v.service(t)

	res, err := svc.DownloadObject(context.Background(), DownloadURLInfo{
		URL:      v.srv.URL + "/files/users_o1.csv.gz",
		Filename: "users_o1.csv.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, "users_o1.csv.gz", res.Filename)
	assert.Equal(t, content, res.Content)
	assert.Nil(t, res.Redirect)
}

func TestDownloadObjectFilenameFromURL(t *testing.T) {
	v := newFakeVendor(t)
	v.files["part-0001.jsonl"] = []byte("{}\n")
	svc := v.service(t)

	res, err := svc.DownloadObject(context.Background(), DownloadURLInfo{
		URL: v.srv.URL + "/files/part-0001.jsonl?sig=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "part-0001.jsonl", res.Filename)
}

func TestDownloadObjectOversizedRedirect(t *testing.T) {
	v := newFakeVendor(t)
	svc := v.service(t)
	// make the direct route fail fast so the relay route is exercised
	svc.httpClient = &http.Client{Transport: failingTransport{}}

	signed := "https://bucket.s3.us-east-1.amazonaws.com/exports/huge.csv.gz?sig=abc"
	res, err := svc.DownloadObject(context.Background(), DownloadURLInfo{URL: signed, Filename: "huge.csv.gz"})
	require.NoError(t, err)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, signed, res.Redirect.URL)
	assert.NotEmpty(t, res.Redirect.Message)
	assert.Nil(t, res.Content)
}

func TestDownloadObjectFailure(t *testing.T) {
	v := newFakeVendor(t)
	svc := v.service(t)

	_, err := svc.DownloadObject(context.Background(), DownloadURLInfo{
		URL: v.srv.URL + "/files/missing.gz",
	})
	require.Error(t, err)

	var derr *DownloadFailedError
	require.ErrorAs(t, err, &derr)
}

func TestDownloadAllZeroObjects(t *testing.T) {
	v := newFakeVendor(t)
	v.pollStatuses = []string{"completed"} // no objects configured
	svc := v.service(t)

	files, err := svc.DownloadAll(context.Background(), DownloadAllRequest{
		TableRequest: TableRequest{Namespace: "canvas", Table: "users"},
		Query:        SnapshotQuery(FormatJSONL, ""),
	})
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestDownloadAllEndToEnd(t *testing.T) {
	content := []byte{0x1f, 0x8b, 0x08, 0x00, 0x01, 0x02}
	v := newFakeVendor(t)
	v.pollStatuses = []string{"running", "completed"}
	v.objects = []string{"o1"}
	v.urls["o1"] = "users_o1.csv.gz"
	v.files["users_o1.csv.gz"] = content
	svc := v.service(t)

	q, err := IncrementalQuery(FormatCSV, mustParse(t, "2026-02-01T00:00:00Z"), nil, "")
	require.NoError(t, err)

	files, err := svc.DownloadAll(context.Background(), DownloadAllRequest{
		TableRequest: TableRequest{Namespace: "canvas", Table: "users"},
		Query:        q,
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "users_o1.csv.gz", files[0].Filename)
	assert.Equal(t, content, files[0].Content)
}

func TestDownloadAllMissingURLForObject(t *testing.T) {
	v := newFakeVendor(t)
	v.pollStatuses = []string{"completed"}
	v.objects = []string{"o1"} // no url registered for o1
	svc := v.service(t)

	_, err := svc.DownloadAll(context.Background(), DownloadAllRequest{
		TableRequest: TableRequest{Namespace: "canvas", Table: "users"},
		Query:        SnapshotQuery(FormatJSONL, ""),
	})
	require.Error(t, err)

	var rerr *URLResolutionError
	require.ErrorAs(t, err, &rerr)
}

func TestDirectEligible(t *testing.T) {
	v := newFakeVendor(t)
	svc := v.service(t)

	assert.True(t, svc.directEligible("https://b.s3.us-east-1.amazonaws.com/x/f.csv.gz?sig=a"))
	assert.True(t, svc.directEligible("https://b.storage.googleapis.com/x/f.parquet"))
	assert.False(t, svc.directEligible("https://api.example.com/dap/object/o1"))
	assert.False(t, svc.directEligible("https://b.s3.us-east-1.amazonaws.com/x/f.exe"))
}
