// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signpdf-cmd/pkg/signerr"
)

func TestOutcome(t *testing.T) {
	require.Equal(t, "success", Outcome(nil))
	require.Equal(t, "transport", Outcome(signerr.Transport("x", nil)))
	require.Equal(t, "rejected", Outcome(signerr.Rejected("x", "801", "", "", "")))
	require.Equal(t, "malformed", Outcome(signerr.Malformed("x", nil)))
	require.Equal(t, "cancelled", Outcome(signerr.Cancelled("otp", nil)))
	require.Equal(t, "error", Outcome(errors.New("disco")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveStep("CertificateFetched", 300*time.Millisecond)
	r.ObserveStep("DocumentAssembled", 2*time.Second)
	r.ObserveOutcome(nil, time.Unix(1714557600, 0))
	r.ObserveOutcome(signerr.Cancelled("otp", nil), time.Now())

	p := filepath.Join(t.TempDir(), "signpdf.prom")
	require.NoError(t, r.WriteTextfile(p))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	out := string(raw)
	require.Contains(t, out, `signpdf_sessions_total{outcome="success"} 1`)
	require.Contains(t, out, `signpdf_sessions_total{outcome="cancelled"} 1`)
	require.Contains(t, out, `signpdf_step_duration_seconds_count{step="CertificateFetched"} 1`)
	require.Regexp(t, `signpdf_last_success_timestamp_seconds 1\.7145576e\+09`, out)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveStep("x", time.Second)
	r.ObserveOutcome(nil, time.Now())
	require.NoError(t, r.WriteTextfile("/no/importa"))
}
