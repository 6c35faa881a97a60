// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewExecutor(opts)
}

func TestExecuteJSONPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tables":["users","courses"]}`))
	}))
	defer srv.Close()

	ex := testExecutor(t, Options{})
	env, err := ex.Execute(context.Background(), ProxyRequest{
		URL:     srv.URL + "/dap/query/canvas/table",
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Params:  map[string]string{"page": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.Status)
	require.Equal(t, PayloadJSON, env.Payload.Kind)

	var body struct {
		Tables []string `json:"tables"`
	}
	require.NoError(t, env.Payload.AsJSON(&body))
	assert.Equal(t, []string{"users", "courses"}, body.Tables)
}

func TestExecuteBinaryBody(t *testing.T) {
	content := []byte{0x1f, 0x8b, 0x08, 0x00, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	ex := testExecutor(t, Options{})
	env, err := ex.Execute(context.Background(), ProxyRequest{URL: srv.URL + "/exports/users.gz"})
	require.NoError(t, err)
	require.Equal(t, PayloadBinary, env.Payload.Kind)
	assert.Equal(t, content, env.Payload.Bytes)
}

func TestExecuteFormStringBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	}))
	defer srv.Close()

	data, _ := json.Marshal("grant_type=client_credentials")
	ex := testExecutor(t, Options{})
	env, err := ex.Execute(context.Background(), ProxyRequest{
		URL:    srv.URL + "/ids/auth/login",
		Method: http.MethodPost,
		Data:   data,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.Status)
	// a JSON string travels verbatim as the body, not re-quoted
	assert.Equal(t, "grant_type=client_credentials", gotBody)
}

func TestExecuteErrorStatusPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such job"}`))
	}))
	defer srv.Close()

	ex := testExecutor(t, Options{})
	env, err := ex.Execute(context.Background(), ProxyRequest{URL: srv.URL + "/dap/job/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Equal(t, "no such job", ErrorMessage(env))
}

func TestExecuteLargeDownloadRedirect(t *testing.T) {
	ex := testExecutor(t, Options{})

	// never fetched: no server behind the URL
	env, err := ex.Execute(context.Background(), ProxyRequest{
		URL: "https://bucket.s3.us-east-1.amazonaws.com/exports/users_o1.csv.gz?sig=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, env.Status)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/exports/users_o1.csv.gz?sig=abc", env.Redirect)
	assert.True(t, env.Payload.IsZero())
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ex := testExecutor(t, Options{Timeout: 50 * time.Millisecond})
	_, err := ex.Execute(context.Background(), ProxyRequest{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelayTimeout)

	var terr *TransportError
	assert.False(t, errors.As(err, &terr), "timeouts must not be reported as transport errors")
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from now on

	ex := testExecutor(t, Options{})
	_, err := ex.Execute(context.Background(), ProxyRequest{URL: srv.URL})
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.NotErrorIs(t, err, ErrRelayTimeout)
}

func TestExecuteRedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	ex := testExecutor(t, Options{})
	_, err := ex.Execute(context.Background(), ProxyRequest{URL: srv.URL + "/loop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestTrustPolicySelectsTLSVerification(t *testing.T) {
	ex := testExecutor(t, Options{Trust: TrustSystem})
	tr := ex.client.Transport.(*http.Transport)
	assert.True(t, tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify)

	ex = testExecutor(t, Options{Trust: TrustInsecure})
	tr = ex.client.Transport.(*http.Transport)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestExecuteRequiresURL(t *testing.T) {
	ex := testExecutor(t, Options{})
	_, err := ex.Execute(context.Background(), ProxyRequest{})
	assert.Error(t, err)
}
