// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseLocalTarget(t *testing.T) {
	dir := t.TempDir()

	// empty destination: filename in the cwd
	target, err := ChooseLocalTarget("", "f.gz")
	require.NoError(t, err)
	assert.Equal(t, "f.gz", target)

	// existing directory
	target, err = ChooseLocalTarget(dir, "f.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "f.gz"), target)

	// existing file wins over the filename
	existing := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))
	target, err = ChooseLocalTarget(existing, "f.gz")
	require.NoError(t, err)
	assert.Equal(t, existing, target)

	// missing path: created as a directory
	missing := filepath.Join(dir, "sub", "dir")
	target, err = ChooseLocalTarget(missing, "f.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(missing, "f.gz"), target)
	info, err := os.Stat(missing)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveBytes(t *testing.T) {
	dir := t.TempDir()
	content := []byte{0x1f, 0x8b, 0x00}

	target, err := SaveBytes(dir, "users_o1.csv.gz", content)
	require.NoError(t, err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadHTTPFile(t *testing.T) {
	content := []byte("col1,col2\n1,2\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, DownloadHTTPFile(srv.URL, target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadHTTPFileErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := DownloadHTTPFile(srv.URL, filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}
