// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package updater compares the running version of signpdf with the one
// published in a JSON release manifest.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 8 * time.Second

// Manifest is the published release descriptor:
//
//	{"version": "1.2.0", "url": "https://.../signpdf-1.2.0.tar.gz", "notes": "..."}
type Manifest struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Result struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	Notes          string
	HasUpdate      bool
}

// Check downloads the manifest at manifestURL. A nil client uses a plain
// client with an 8s timeout.
func Check(ctx context.Context, client *http.Client, currentVersion, manifestURL string) (*Result, error) {
	manifestURL = strings.TrimSpace(manifestURL)
	if manifestURL == "" {
		return nil, fmt.Errorf("URL del manifiesto de versiones vacia")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("no se pudo consultar el manifiesto: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("estado HTTP no valido al consultar versiones: %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifiesto de versiones invalido: %w", err)
	}
	latest := strings.TrimSpace(m.Version)
	if latest == "" {
		return nil, fmt.Errorf("manifiesto sin campo 'version'")
	}

	current := strings.TrimSpace(currentVersion)
	return &Result{
		CurrentVersion: current,
		LatestVersion:  latest,
		UpdateURL:      strings.TrimSpace(m.URL),
		Notes:          strings.TrimSpace(m.Notes),
		HasUpdate:      CompareVersions(latest, current) > 0,
	}, nil
}

// CompareVersions compares dotted versions numerically ("v" prefix and
// pre-release suffixes are ignored). It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	aa, bb := versionParts(a), versionParts(b)
	n := len(aa)
	if len(bb) > n {
		n = len(bb)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(aa) {
			av = aa[i]
		}
		if i < len(bb) {
			bv = bb[i]
		}
		switch {
		case av > bv:
			return 1
		case av < bv:
			return -1
		}
	}
	return 0
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}
