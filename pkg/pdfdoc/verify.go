// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package pdfdoc

import (
	"fmt"
	"os"
	"time"

	pdfverify "github.com/digitorus/pdfsign/verify"
)

// VerifyReport summarizes the signatures found in a PDF.
type VerifyReport struct {
	Valid         bool
	Signers       int
	SignerName    string
	TrustedIssuer bool
	SigningTime   time.Time
	Reason        string
}

// Verify checks the signatures of an in-memory PDF.
func Verify(data []byte) (*VerifyReport, error) {
	f, err := os.CreateTemp("", "signpdf-verify-*.pdf")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(data); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return verifyFile(f)
}

// VerifyFile checks the signatures of the PDF at path.
func VerifyFile(path string) (*VerifyReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return verifyFile(f)
}

func verifyFile(f *os.File) (rep *VerifyReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("verificacion PAdES abortada: %v", r)
		}
	}()

	resp, err := pdfverify.VerifyFileWithOptions(f, pdfverify.DefaultVerifyOptions())
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Signers) == 0 {
		return &VerifyReport{Reason: "No se encontraron firmantes en el PDF"}, nil
	}

	last := resp.Signers[len(resp.Signers)-1]
	out := &VerifyReport{
		Valid:         last.ValidSignature,
		Signers:       len(resp.Signers),
		SignerName:    last.Name,
		TrustedIssuer: last.TrustedIssuer,
		Reason:        last.Reason,
	}
	if last.SignatureTime != nil {
		out.SigningTime = *last.SignatureTime
	}
	if out.Valid && !last.TrustedIssuer {
		if out.Reason == "" {
			out.Reason = "Firma criptografica valida, emisor no confiable en este entorno"
		} else {
			out.Reason += " (emisor no confiable en este entorno)"
		}
	}
	return out, nil
}
