// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package signer

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"
)

// digestInfoPrefix is the DER header of a PKCS#1 v1.5 DigestInfo for each
// hash; the raw digest follows it.
var digestInfoPrefix = map[crypto.Hash][]byte{
	crypto.SHA256: {0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20},
	crypto.SHA384: {0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30},
	crypto.SHA512: {0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40},
}

// ResolveDigest maps a DSS digest algorithm name (SHA256, sha-384,
// RSA_SHA512...) to its hash.
func ResolveDigest(name string) (crypto.Hash, error) {
	l := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	switch {
	case strings.Contains(l, "sha512"):
		return crypto.SHA512, nil
	case strings.Contains(l, "sha384"):
		return crypto.SHA384, nil
	case strings.Contains(l, "sha256"):
		return crypto.SHA256, nil
	default:
		return 0, fmt.Errorf("algoritmo de resumen no soportado: %q", name)
	}
}

// DigestInfo prepends the DigestInfo header of h to digest. The digest must
// have the size of h and must not already carry a header.
func DigestInfo(h crypto.Hash, digest []byte) ([]byte, error) {
	prefix, ok := digestInfoPrefix[h]
	if !ok {
		return nil, fmt.Errorf("sin cabecera DigestInfo para %v", h)
	}
	if len(digest) != h.Size() {
		return nil, fmt.Errorf("resumen de %d bytes, se esperaban %d", len(digest), h.Size())
	}
	out := make([]byte, 0, len(prefix)+len(digest))
	out = append(out, prefix...)
	return append(out, digest...), nil
}

// HashForSigning hashes the data to be signed and wraps the result in a
// DigestInfo, which is what the CMD service expects in CCMovelSign.
func HashForSigning(algorithm string, dtbs []byte) ([]byte, error) {
	h, err := ResolveDigest(algorithm)
	if err != nil {
		return nil, err
	}
	hh := h.New()
	hh.Write(dtbs)
	return DigestInfo(h, hh.Sum(nil))
}
