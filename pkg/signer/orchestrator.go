// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package signer drives one remote PAdES signing session: it fetches the CMD
// certificate chain, obtains the data to be signed from DSS, has the CMD
// service sign its hash after OTP confirmation and asks DSS to assemble the
// signed PDF.
package signer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/certchain"
	"signpdf-cmd/pkg/protocol"
	"signpdf-cmd/pkg/signerr"
)

// CertificateProvider returns the PEM bundle of a user's signing chain.
type CertificateProvider interface {
	GetCertificate(ctx context.Context, applicationID, userID string) (string, error)
}

// MobileSigner is the CMD signature service.
type MobileSigner interface {
	RequestSignature(ctx context.Context, applicationID, userID, pin, docName string, digestInfo []byte) (*protocol.SignStatus, error)
	ValidateOtp(ctx context.Context, applicationID, processID, otp string) (*protocol.SignResponse, error)
}

// ComputationService is the DSS server.
type ComputationService interface {
	GetDataToSign(ctx context.Context, params *protocol.SignatureParameters, doc protocol.Document) ([]byte, error)
	SignDocument(ctx context.Context, params *protocol.SignatureParameters, doc protocol.Document, signatureValue []byte) ([]byte, error)
}

type Config struct {
	ApplicationID string
	Parameters    ParameterDefaults
	// OTPTimeout bounds the wait for the operator; zero waits until ctx ends.
	OTPTimeout time.Duration
}

type Dependencies struct {
	Certificates CertificateProvider
	Mobile       MobileSigner
	DSS          ComputationService
	OTP          OTPReader

	Clock  clockwork.Clock
	Logger *zap.Logger
	// OnTransition is called synchronously after every state change.
	OnTransition func(Transition)
}

type SignRequest struct {
	UserID   string
	PIN      string
	Document protocol.Document
	// SigningTime overrides the clock for the signing date.
	SigningTime *time.Time
}

type SignResult struct {
	SessionID   string
	Signed      []byte
	ProcessID   string
	SigningDate string
	Chain       protocol.CertificateChain
	History     []Transition
}

type Orchestrator struct {
	cfg  Config
	deps Dependencies
	log  *zap.Logger
}

func NewOrchestrator(cfg Config, deps Dependencies) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	lg := deps.Logger
	if lg == nil {
		lg = applog.Named("signer")
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: lg}
}

func (o *Orchestrator) validate(req SignRequest) error {
	var missing []string
	if o.deps.Certificates == nil {
		missing = append(missing, "Certificates")
	}
	if o.deps.Mobile == nil {
		missing = append(missing, "Mobile")
	}
	if o.deps.DSS == nil {
		missing = append(missing, "DSS")
	}
	if o.deps.OTP == nil {
		missing = append(missing, "OTP")
	}
	if len(missing) > 0 {
		return fmt.Errorf("dependencias sin configurar: %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(o.cfg.ApplicationID) == "" {
		return errors.New("falta el application id CMD")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return errors.New("falta el usuario (telefono)")
	}
	if req.PIN == "" {
		return errors.New("falta el PIN de firma")
	}
	if len(req.Document.Bytes) == 0 {
		return errors.New("documento vacio")
	}
	return nil
}

// Sign runs one complete session. On failure no document is returned and the
// error carries the kind of the failing step.
func (o *Orchestrator) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	s := newSession(uuid.NewString(), req.PIN, o.deps.Clock.Now())
	log := o.log.With(zap.String("session", s.ID), applog.User(req.UserID))
	log.Info("inicio de sesion de firma", zap.String("document", req.Document.Name), zap.Int("size", len(req.Document.Bytes)))

	signed, err := o.run(ctx, s, req, log)
	if err != nil {
		o.transition(s, StateFailed, err)
		log.Error("sesion de firma fallida",
			zap.String("last_state", s.LastCompleted().String()),
			zap.String("kind", signerr.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("documento firmado", applog.ProcessID(s.processID), zap.Int("size", len(signed)))
	return &SignResult{
		SessionID:   s.ID,
		Signed:      signed,
		ProcessID:   s.processID,
		SigningDate: s.params.SigningDate,
		Chain:       s.params.Chain,
		History:     s.History(),
	}, nil
}

func (o *Orchestrator) run(ctx context.Context, s *Session, req SignRequest, log *zap.Logger) ([]byte, error) {
	appID := o.cfg.ApplicationID

	// Start -> CertificateFetched
	bundle, err := o.deps.Certificates.GetCertificate(ctx, appID, req.UserID)
	if err != nil {
		return nil, err
	}
	chain, err := certchain.Parse(bundle)
	if err != nil {
		return nil, err
	}
	for _, ci := range certchain.Describe(chain) {
		log.Debug("certificado de la cadena", zap.String("role", ci.Role), zap.String("subject", ci.Subject), zap.Time("not_after", ci.NotAfter))
	}
	o.transition(s, StateCertificateFetched, nil)

	// CertificateFetched -> ParametersBuilt
	signingTime := o.deps.Clock.Now()
	if req.SigningTime != nil {
		signingTime = *req.SigningTime
	}
	s.params = BuildParameters(o.cfg.Parameters, *chain, signingTime)
	params := &s.params
	log.Debug("parametros de firma", zap.String("signing_date", params.SigningDate), zap.String("level", params.SignatureLevel))
	o.transition(s, StateParametersBuilt, nil)

	// ParametersBuilt -> DigestComputed
	dtbs, err := o.deps.DSS.GetDataToSign(ctx, params, req.Document)
	if err != nil {
		return nil, err
	}
	digestInfo, err := HashForSigning(params.DigestAlgorithm, dtbs)
	if err != nil {
		return nil, err
	}
	log.Debug("resumen calculado", applog.Payload("dtbs", dtbs), zap.Int("digest_info_len", len(digestInfo)))
	o.transition(s, StateDigestComputed, nil)

	// DigestComputed -> SignatureRequested
	status, err := o.deps.Mobile.RequestSignature(ctx, appID, req.UserID, s.pinValue(), req.Document.Name, digestInfo)
	s.wipePIN()
	if err != nil {
		return nil, err
	}
	if !status.OK() {
		return nil, signerr.Rejected("CCMovelSign", status.Code, status.Message, status.Field, status.FieldValue)
	}
	s.processID = status.ProcessID
	o.transition(s, StateSignatureRequested, nil)

	// SignatureRequested -> OtpValidated
	otp, err := o.readOTP(ctx, s.processID)
	if err != nil {
		return nil, err
	}
	resp, err := o.deps.Mobile.ValidateOtp(ctx, appID, s.processID, otp)
	if err != nil {
		return nil, err
	}
	if !resp.Status.OK() {
		return nil, signerr.Rejected("ValidateOtp", resp.Status.Code, resp.Status.Message, resp.Status.Field, resp.Status.FieldValue)
	}
	if len(resp.Signature) == 0 {
		return nil, signerr.Malformed("ValidateOtp", errors.New("firma vacia"))
	}
	o.transition(s, StateOtpValidated, nil)

	// OtpValidated -> DocumentAssembled
	signed, err := o.deps.DSS.SignDocument(ctx, params, req.Document, resp.Signature)
	if err != nil {
		return nil, err
	}
	o.transition(s, StateDocumentAssembled, nil)
	return signed, nil
}

func (o *Orchestrator) readOTP(ctx context.Context, processID string) (string, error) {
	otpCtx := ctx
	if o.cfg.OTPTimeout > 0 {
		var cancel context.CancelFunc
		otpCtx, cancel = context.WithTimeout(ctx, o.cfg.OTPTimeout)
		defer cancel()
	}
	otp, err := o.deps.OTP.ReadOTP(otpCtx, processID)
	if err != nil {
		if errors.Is(err, signerr.ErrOperatorCancelled) {
			return "", err
		}
		return "", signerr.Cancelled("otp", err)
	}
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return "", signerr.Cancelled("otp", errors.New("no se introdujo el codigo OTP"))
	}
	return otp, nil
}

func (o *Orchestrator) transition(s *Session, to State, cause error) {
	tr, ok := s.advance(to, o.deps.Clock.Now(), cause)
	if !ok {
		o.log.Warn("transicion ignorada", zap.String("session", s.ID), zap.String("from", s.State().String()), zap.String("to", to.String()))
		return
	}
	o.log.Debug("transicion", zap.String("session", s.ID), zap.String("from", tr.From.String()), zap.String("to", tr.To.String()), zap.Duration("elapsed", tr.Elapsed))
	if o.deps.OnTransition != nil {
		o.deps.OnTransition(tr)
	}
}
