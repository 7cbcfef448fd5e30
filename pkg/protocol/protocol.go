// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package protocol

// Status code used by the CMD service for a successful operation.
const StatusOK = "200"

// Parameter values understood by the DSS one-document REST API.
const (
	DigestSHA256 = "SHA256"
	DigestSHA384 = "SHA384"
	DigestSHA512 = "SHA512"

	EncryptionRSA = "RSA"

	LevelPAdESBaselineB  = "PAdES_BASELINE_B"
	LevelPAdESBaselineT  = "PAdES_BASELINE_T"
	PackagingEnveloped   = "ENVELOPED"
	SigningDateISOLayout = "2006-01-02T15:04:05"
)

// CertificateChain is the signer chain returned by the CMD service.
// Each entry is a base64 DER body with PEM framing and line breaks removed.
type CertificateChain struct {
	Signer         string
	IntermediateCA string
	Root           string
}

// Document to be signed.
type Document struct {
	Name  string
	Bytes []byte
}

// SignatureParameters is the parameter set shared by getDataToSign and
// signDocument. Both calls of one session must receive the same value.
type SignatureParameters struct {
	DigestAlgorithm            string
	EncryptionAlgorithm        string
	SignatureLevel             string
	SignaturePackaging         string
	SigningDate                string
	Chain                      CertificateChain
	TrustAnchorBPPolicy        bool
	SignWithExpiredCertificate bool
}

// SignatureAlgorithm returns the DSS signatureAlgorithm name, e.g. RSA_SHA256.
func (p *SignatureParameters) SignatureAlgorithm() string {
	return p.EncryptionAlgorithm + "_" + p.DigestAlgorithm
}

// RemoteCertificate (DSS remoteCertificate).
type RemoteCertificate struct {
	EncodedCertificate string `json:"encodedCertificate"`
}

// RemoteBLevelParameters (DSS remoteBLevelParameters). Nil slices serialize as null.
type RemoteBLevelParameters struct {
	TrustAnchorBPPolicy       bool     `json:"trustAnchorBPPolicy"`
	SigningDate               string   `json:"signingDate"`
	ClaimedSignerRoles        []string `json:"claimedSignerRoles"`
	CommitmentTypeIndications []string `json:"commitmentTypeIndications"`
}

// RemoteSignatureParameters (DSS remoteSignatureParameters).
type RemoteSignatureParameters struct {
	SignWithExpiredCertificate    bool                   `json:"signWithExpiredCertificate"`
	GenerateTBSWithoutCertificate bool                   `json:"generateTBSWithoutCertificate"`
	SignatureLevel                string                 `json:"signatureLevel"`
	SignaturePackaging            string                 `json:"signaturePackaging"`
	EncryptionAlgorithm           string                 `json:"encryptionAlgorithm"`
	DigestAlgorithm               string                 `json:"digestAlgorithm"`
	ReferenceDigestAlgorithm      *string                `json:"referenceDigestAlgorithm"`
	MaskGenerationFunction        *string                `json:"maskGenerationFunction"`
	SigningCertificate            RemoteCertificate      `json:"signingCertificate"`
	CertificateChain              []RemoteCertificate    `json:"certificateChain"`
	DetachedContents              []RemoteDocument       `json:"detachedContents"`
	AsicContainerType             *string                `json:"asicContainerType"`
	BLevelParams                  RemoteBLevelParameters `json:"blevelParams"`
}

// NewRemoteSignatureParameters renders the wire form of p. The output only
// depends on p, so the same parameter set always yields the same JSON.
// The chain is sent root first, then the intermediate CA, as the CMD
// certificates are laid out by the provider.
func NewRemoteSignatureParameters(p *SignatureParameters) RemoteSignatureParameters {
	return RemoteSignatureParameters{
		SignWithExpiredCertificate:    p.SignWithExpiredCertificate,
		GenerateTBSWithoutCertificate: false,
		SignatureLevel:                p.SignatureLevel,
		SignaturePackaging:            p.SignaturePackaging,
		EncryptionAlgorithm:           p.EncryptionAlgorithm,
		DigestAlgorithm:               p.DigestAlgorithm,
		SigningCertificate:            RemoteCertificate{EncodedCertificate: p.Chain.Signer},
		CertificateChain: []RemoteCertificate{
			{EncodedCertificate: p.Chain.Root},
			{EncodedCertificate: p.Chain.IntermediateCA},
		},
		BLevelParams: RemoteBLevelParameters{
			TrustAnchorBPPolicy: p.TrustAnchorBPPolicy,
			SigningDate:         p.SigningDate,
		},
	}
}

// RemoteDocument (DSS remoteDocument). Bytes is base64.
type RemoteDocument struct {
	Bytes           string  `json:"bytes"`
	DigestAlgorithm *string `json:"digestAlgorithm,omitempty"`
	Name            string  `json:"name,omitempty"`
}

// SignatureValue (DSS signatureValueDTO). Value is base64.
type SignatureValue struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// DataToSignRequest is the body of POST /getDataToSign.
type DataToSignRequest struct {
	Parameters     RemoteSignatureParameters `json:"parameters"`
	ToSignDocument RemoteDocument            `json:"toSignDocument"`
}

// SignDocumentRequest is the body of POST /signDocument.
type SignDocumentRequest struct {
	Parameters     RemoteSignatureParameters `json:"parameters"`
	SignatureValue SignatureValue            `json:"signatureValue"`
	ToSignDocument RemoteDocument            `json:"toSignDocument"`
}

// BytesResponse covers both toBeSignedDTO and the signed remoteDocument reply.
type BytesResponse struct {
	Bytes *string `json:"bytes"`
	Name  string  `json:"name,omitempty"`
}

// SignStatus is the CMD SignStatus structure.
type SignStatus struct {
	Code       string
	Message    string
	Field      string
	FieldValue string
	ProcessID  string
}

// OK reports whether the status carries the success code.
func (s *SignStatus) OK() bool {
	return s != nil && s.Code == StatusOK
}

// SignResponse is the CMD ValidateOtp result.
type SignResponse struct {
	Signature []byte
	Status    SignStatus
}
