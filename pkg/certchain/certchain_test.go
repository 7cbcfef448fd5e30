// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package certchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signpdf-cmd/pkg/protocol"
	"signpdf-cmd/pkg/signerr"
)

func selfSignedDER(t *testing.T, cn string, serial int64) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func bundleOf(ders ...[]byte) string {
	var b strings.Builder
	for _, d := range ders {
		_ = pem.Encode(&b, &pem.Block{Type: "CERTIFICATE", Bytes: d})
	}
	return b.String()
}

func TestParseMapsRolesByPosition(t *testing.T) {
	signer := selfSignedDER(t, "JOSE MIRANDA", 1)
	root := selfSignedDER(t, "ECRaizEstado", 2)
	ca := selfSignedDER(t, "EC de Chave Movel Digital", 3)

	chain, err := Parse(bundleOf(signer, root, ca))
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(signer), chain.Signer)
	require.Equal(t, base64.StdEncoding.EncodeToString(root), chain.Root)
	require.Equal(t, base64.StdEncoding.EncodeToString(ca), chain.IntermediateCA)

	for _, body := range []string{chain.Signer, chain.Root, chain.IntermediateCA} {
		require.NotContains(t, body, "\n")
		require.NotContains(t, body, "-----")
	}
}

func TestParseStripsCRLFAndSurroundingText(t *testing.T) {
	a := selfSignedDER(t, "a", 1)
	b := selfSignedDER(t, "b", 2)
	c := selfSignedDER(t, "c", 3)
	bundle := "\r\n" + strings.ReplaceAll(bundleOf(a, b, c), "\n", "\r\n") + "  \r\n"

	chain, err := Parse(bundle)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(a), chain.Signer)
}

func TestParseRejectsWrongBlockCount(t *testing.T) {
	d := selfSignedDER(t, "x", 1)
	tests := []struct {
		name   string
		bundle string
	}{
		{name: "vacio", bundle: ""},
		{name: "uno", bundle: bundleOf(d)},
		{name: "dos", bundle: bundleOf(d, d)},
		{name: "cuatro", bundle: bundleOf(d, d, d, d)},
		{name: "texto", bundle: "no es un PEM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := Parse(tt.bundle)
			require.Nil(t, chain, "no debe devolver cadena parcial")
			require.Error(t, err)
			require.True(t, errors.Is(err, signerr.ErrMalformedCertificateBundle))
			require.True(t, errors.Is(err, signerr.ErrMalformedResponse))
		})
	}
}

func TestParseRejectsForeignBlock(t *testing.T) {
	d := selfSignedDER(t, "x", 1)
	bundle := bundleOf(d, d) + string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}}))
	_, err := Parse(bundle)
	require.ErrorIs(t, err, signerr.ErrMalformedCertificateBundle)
}

func TestDescribe(t *testing.T) {
	chain, err := Parse(bundleOf(selfSignedDER(t, "FIRMANTE", 10), selfSignedDER(t, "RAIZ", 11), selfSignedDER(t, "CA", 12)))
	require.NoError(t, err)

	infos := Describe(chain)
	require.Len(t, infos, 3)
	require.Equal(t, "signer", infos[0].Role)
	require.Equal(t, "FIRMANTE", infos[0].Subject)
	require.Equal(t, "ca", infos[1].Role)
	require.Equal(t, "CA", infos[1].Subject)
	require.Equal(t, "root", infos[2].Role)
	require.Equal(t, "RAIZ", infos[2].Subject)
	require.Equal(t, "A", infos[0].Serial)
	require.Len(t, infos[0].Fingerprint, 64)
	require.False(t, infos[0].Expired(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, infos[0].Expired(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDescribeToleratesGarbage(t *testing.T) {
	infos := Describe(&protocol.CertificateChain{Signer: "%%%", IntermediateCA: "AAAA", Root: ""})
	require.Len(t, infos, 3)
	require.Contains(t, infos[0].Subject, "base64")
	require.Contains(t, infos[1].Subject, "ilegible")
}
