// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package updater

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func manifestServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/version.json"
}

func TestCheckReportsNewerVersion(t *testing.T) {
	url := manifestServer(t, http.StatusOK, `{"version":"1.2.0","url":"https://example.org/signpdf-1.2.0.tar.gz","notes":"correcciones"}`)

	res, err := Check(context.Background(), nil, "1.0.0", url)
	require.NoError(t, err)
	require.True(t, res.HasUpdate)
	require.Equal(t, "1.2.0", res.LatestVersion)
	require.Equal(t, "https://example.org/signpdf-1.2.0.tar.gz", res.UpdateURL)
	require.Equal(t, "correcciones", res.Notes)
}

func TestCheckUpToDate(t *testing.T) {
	url := manifestServer(t, http.StatusOK, `{"version":"v1.0.0"}`)

	res, err := Check(context.Background(), nil, "1.0.0", url)
	require.NoError(t, err)
	require.False(t, res.HasUpdate)
}

func TestCheckErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		status int
		body   string
	}{
		"estado":      {http.StatusNotFound, `{}`},
		"json roto":   {http.StatusOK, `{"version":`},
		"sin version": {http.StatusOK, `{"url":"x"}`},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Check(context.Background(), nil, "1.0.0", manifestServer(t, tc.status, tc.body))
			require.Error(t, err)
		})
	}

	_, err := Check(context.Background(), nil, "1.0.0", "  ")
	require.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	require.Equal(t, 1, CompareVersions("1.10.0", "1.9.3"))
	require.Equal(t, 0, CompareVersions("v2.0", "2.0.0"))
	require.Equal(t, -1, CompareVersions("1.0.0-rc1", "1.0.1"))
	require.Equal(t, 0, CompareVersions("1.0.0+build7", "1.0.0"))
}
