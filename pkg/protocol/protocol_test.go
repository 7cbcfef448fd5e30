// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func testParameters() *SignatureParameters {
	return &SignatureParameters{
		DigestAlgorithm:     DigestSHA256,
		EncryptionAlgorithm: EncryptionRSA,
		SignatureLevel:      LevelPAdESBaselineB,
		SignaturePackaging:  PackagingEnveloped,
		SigningDate:         "2020-01-01T00:00:00",
		Chain:               CertificateChain{Signer: "U0lHTkVS", IntermediateCA: "Q0E=", Root: "Uk9PVA=="},
		TrustAnchorBPPolicy: true,
	}
}

func TestRemoteParametersNullFieldsAlwaysSerialized(t *testing.T) {
	b, err := json.Marshal(NewRemoteSignatureParameters(testParameters()))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var obj map[string]any
	if err = json.Unmarshal(b, &obj); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"referenceDigestAlgorithm", "maskGenerationFunction", "detachedContents", "asicContainerType"} {
		v, ok := obj[key]
		if !ok {
			t.Fatalf("se esperaba el campo %q serializado", key)
		}
		if v != nil {
			t.Fatalf("se esperaba %q=null, obtenido %#v", key, v)
		}
	}
	blevel, ok := obj["blevelParams"].(map[string]any)
	if !ok {
		t.Fatalf("falta blevelParams")
	}
	if blevel["signingDate"] != "2020-01-01T00:00:00" {
		t.Fatalf("signingDate inesperado: %#v", blevel["signingDate"])
	}
	if blevel["trustAnchorBPPolicy"] != true {
		t.Fatalf("trustAnchorBPPolicy inesperado: %#v", blevel["trustAnchorBPPolicy"])
	}
}

func TestRemoteParametersChainOrder(t *testing.T) {
	rp := NewRemoteSignatureParameters(testParameters())
	if rp.SigningCertificate.EncodedCertificate != "U0lHTkVS" {
		t.Fatalf("certificado de firma inesperado: %q", rp.SigningCertificate.EncodedCertificate)
	}
	if len(rp.CertificateChain) != 2 {
		t.Fatalf("cadena inesperada: %d entradas", len(rp.CertificateChain))
	}
	if rp.CertificateChain[0].EncodedCertificate != "Uk9PVA==" || rp.CertificateChain[1].EncodedCertificate != "Q0E=" {
		t.Fatalf("orden de cadena inesperado: %+v", rp.CertificateChain)
	}
}

func TestRemoteParametersDeterministic(t *testing.T) {
	p := testParameters()
	a, err := json.Marshal(NewRemoteSignatureParameters(p))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	b, err := json.Marshal(NewRemoteSignatureParameters(p))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("parametros no deterministas:\n%s\n%s", a, b)
	}
}

func TestSignatureAlgorithmAndStatus(t *testing.T) {
	if got := testParameters().SignatureAlgorithm(); got != "RSA_SHA256" {
		t.Fatalf("algoritmo inesperado: %s", got)
	}
	if (&SignStatus{Code: "500"}).OK() {
		t.Fatalf("codigo 500 no debe ser OK")
	}
	var nilStatus *SignStatus
	if nilStatus.OK() {
		t.Fatalf("estado nil no debe ser OK")
	}
	if !(&SignStatus{Code: StatusOK}).OK() {
		t.Fatalf("codigo 200 debe ser OK")
	}
}
