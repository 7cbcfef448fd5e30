// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package certchain

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"signpdf-cmd/pkg/protocol"
	"signpdf-cmd/pkg/signerr"
)

// BundleSize is the number of certificates the CMD service returns.
const BundleSize = 3

// Parse splits the PEM bundle returned by GetCertificate into the signer
// chain. The provider emits {signer, root, CA}; roles are assigned by
// position only.
func Parse(bundle string) (*protocol.CertificateChain, error) {
	bodies, err := splitBlocks([]byte(bundle))
	if err != nil {
		return nil, signerr.Malformed("parse certificate bundle", fmt.Errorf("%w: %v", signerr.ErrMalformedCertificateBundle, err))
	}
	if len(bodies) != BundleSize {
		return nil, signerr.Malformed("parse certificate bundle",
			fmt.Errorf("%w: se esperaban %d certificados, recibidos %d", signerr.ErrMalformedCertificateBundle, BundleSize, len(bodies)))
	}
	return &protocol.CertificateChain{
		Signer:         bodies[0],
		Root:           bodies[1],
		IntermediateCA: bodies[2],
	}, nil
}

func splitBlocks(data []byte) ([]string, error) {
	var bodies []string
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("bloque PEM inesperado: %s", block.Type)
		}
		if len(block.Bytes) == 0 {
			return nil, fmt.Errorf("bloque CERTIFICATE vacio")
		}
		bodies = append(bodies, base64.StdEncoding.EncodeToString(block.Bytes))
	}
	if bytes.Contains(rest, []byte("-----BEGIN")) {
		return nil, fmt.Errorf("bloque PEM ilegible tras %d certificados", len(bodies))
	}
	return bodies, nil
}

// Info summarizes one certificate of the chain for logs and the CLI.
type Info struct {
	Role        string
	Subject     string
	Issuer      string
	Serial      string
	NotBefore   time.Time
	NotAfter    time.Time
	Fingerprint string
}

// Describe decodes the chain entries. It never changes the chain; entries
// that do not parse as X.509 are reported with the parse error as subject.
func Describe(chain *protocol.CertificateChain) []Info {
	if chain == nil {
		return nil
	}
	entries := []struct {
		role string
		body string
	}{
		{"signer", chain.Signer},
		{"ca", chain.IntermediateCA},
		{"root", chain.Root},
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, describeOne(e.role, e.body))
	}
	return out
}

func describeOne(role, body string) Info {
	info := Info{Role: role}
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		info.Subject = fmt.Sprintf("(base64 invalido: %v)", err)
		return info
	}
	sum := sha256.Sum256(der)
	info.Fingerprint = hex.EncodeToString(sum[:])
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		info.Subject = fmt.Sprintf("(certificado ilegible: %v)", err)
		return info
	}
	info.Subject = displayName(cert.Subject.CommonName, cert.Subject.String())
	info.Issuer = displayName(cert.Issuer.CommonName, cert.Issuer.String())
	info.Serial = strings.ToUpper(cert.SerialNumber.Text(16))
	info.NotBefore = cert.NotBefore
	info.NotAfter = cert.NotAfter
	return info
}

func displayName(cn, full string) string {
	if v := strings.TrimSpace(cn); v != "" {
		return v
	}
	return full
}

// Expired reports whether the certificate was not valid at t.
func (i Info) Expired(t time.Time) bool {
	if i.NotAfter.IsZero() {
		return false
	}
	return t.After(i.NotAfter) || t.Before(i.NotBefore)
}
