// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package signer

import (
	"strings"
	"time"

	"signpdf-cmd/pkg/protocol"
)

// ParameterDefaults are the configured signature settings applied to every
// session.
type ParameterDefaults struct {
	DigestAlgorithm            string
	EncryptionAlgorithm        string
	Level                      string
	Packaging                  string
	TrustAnchorBPPolicy        bool
	SignWithExpiredCertificate bool
}

// DefaultParameters is PAdES baseline B, enveloped, RSA with SHA-256.
func DefaultParameters() ParameterDefaults {
	return ParameterDefaults{
		DigestAlgorithm:     protocol.DigestSHA256,
		EncryptionAlgorithm: protocol.EncryptionRSA,
		Level:               protocol.LevelPAdESBaselineB,
		Packaging:           protocol.PackagingEnveloped,
		TrustAnchorBPPolicy: true,
	}
}

// BuildParameters freezes the parameter set of a session. Empty defaults fall
// back to DefaultParameters.
func BuildParameters(d ParameterDefaults, chain protocol.CertificateChain, signingTime time.Time) protocol.SignatureParameters {
	def := DefaultParameters()
	pick := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToUpper(v)
		}
		return fallback
	}
	return protocol.SignatureParameters{
		DigestAlgorithm:            pick(d.DigestAlgorithm, def.DigestAlgorithm),
		EncryptionAlgorithm:        pick(d.EncryptionAlgorithm, def.EncryptionAlgorithm),
		SignatureLevel:             orDefault(d.Level, def.Level),
		SignaturePackaging:         pick(d.Packaging, def.Packaging),
		SigningDate:                FormatSigningDate(signingTime),
		Chain:                      chain,
		TrustAnchorBPPolicy:        d.TrustAnchorBPPolicy,
		SignWithExpiredCertificate: d.SignWithExpiredCertificate,
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// FormatSigningDate renders t as local ISO-8601 without zone, to the second.
func FormatSigningDate(t time.Time) string {
	return t.Truncate(time.Second).Format(protocol.SigningDateISOLayout)
}
