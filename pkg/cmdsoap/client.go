// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package cmdsoap talks to the CMD (Chave Movel Digital) signature service
// over SOAP 1.1: GetCertificate, CCMovelSign and ValidateOtp.
package cmdsoap

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/protocol"
	"signpdf-cmd/pkg/signerr"
)

const (
	OpGetCertificate = "GetCertificate"
	OpCCMovelSign    = "CCMovelSign"
	OpValidateOtp    = "ValidateOtp"

	maxResponseBytes = 8 << 20
)

type Options struct {
	Endpoint string
	Timeout  time.Duration
	// HTTPClient replaces the default client; Timeout is then ignored.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lg := opts.Logger
	if lg == nil {
		lg = applog.Named("cmd")
	}
	return &Client{endpoint: strings.TrimSpace(opts.Endpoint), http: hc, log: lg}
}

// Endpoint returns the service URL in use.
func (c *Client) Endpoint() string { return c.endpoint }

// GetCertificate returns the PEM bundle of the user's signing chain.
func (c *Client) GetCertificate(ctx context.Context, applicationID, userID string) (string, error) {
	req, err := buildEnvelope(OpGetCertificate, "", []field{
		{"applicationId", encodeApplicationID(applicationID)},
		{"userId", userID},
	})
	if err != nil {
		return "", err
	}
	result, err := c.call(ctx, OpGetCertificate, req)
	if err != nil {
		return "", err
	}
	pemBundle := ""
	if el := result.SelectElement(OpGetCertificate + "Result"); el != nil && !isNil(el) {
		pemBundle = strings.TrimSpace(el.Text())
	}
	if pemBundle == "" {
		return "", signerr.Malformed(OpGetCertificate, signerr.ErrCertificateUnavailable)
	}
	c.log.Debug("certificado recibido", applog.User(userID), zap.Int("pem_len", len(pemBundle)))
	return pemBundle, nil
}

// RequestSignature sends CCMovelSign. digestInfo is the DigestInfo-prefixed
// hash. A status with a non-success code is returned without error; a status
// without code, or a success without process id, is malformed.
func (c *Client) RequestSignature(ctx context.Context, applicationID, userID, pin, docName string, digestInfo []byte) (*protocol.SignStatus, error) {
	req, err := buildEnvelope(OpCCMovelSign, "request", []field{
		{"ApplicationId", encodeApplicationID(applicationID)},
		{"DocName", docName},
		{"Hash", base64.StdEncoding.EncodeToString(digestInfo)},
		{"Pin", pin},
		{"UserId", userID},
	})
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, OpCCMovelSign, req)
	if err != nil {
		return nil, err
	}
	st, err := decodeStatus(result.SelectElement(OpCCMovelSign + "Result"))
	if err != nil {
		return nil, signerr.Malformed(OpCCMovelSign, err)
	}
	if st.OK() && st.ProcessID == "" {
		return nil, signerr.Malformed(OpCCMovelSign, fmt.Errorf("respuesta 200 sin ProcessId"))
	}
	c.log.Debug("CCMovelSign respondido", zap.String("code", st.Code), applog.ProcessID(st.ProcessID))
	return st, nil
}

// ValidateOtp confirms the signature with the code the user received by SMS.
func (c *Client) ValidateOtp(ctx context.Context, applicationID, processID, otp string) (*protocol.SignResponse, error) {
	req, err := buildEnvelope(OpValidateOtp, "", []field{
		{"code", otp},
		{"processId", processID},
		{"applicationId", encodeApplicationID(applicationID)},
	})
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, OpValidateOtp, req)
	if err != nil {
		return nil, err
	}
	res := result.SelectElement(OpValidateOtp + "Result")
	if res == nil || isNil(res) {
		return nil, signerr.Malformed(OpValidateOtp, fmt.Errorf("falta ValidateOtpResult"))
	}
	st, err := decodeStatus(res.SelectElement("Status"))
	if err != nil {
		return nil, signerr.Malformed(OpValidateOtp, err)
	}
	out := &protocol.SignResponse{Status: *st}
	if !st.OK() {
		return out, nil
	}
	sigEl := res.SelectElement("Signature")
	raw := ""
	if sigEl != nil && !isNil(sigEl) {
		raw = strings.Join(strings.Fields(sigEl.Text()), "")
	}
	if raw == "" {
		return nil, signerr.Malformed(OpValidateOtp, fmt.Errorf("respuesta 200 sin Signature"))
	}
	sig, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, signerr.Malformed(OpValidateOtp, fmt.Errorf("el campo Signature no es base64: %w", err))
	}
	if len(sig) == 0 {
		return nil, signerr.Malformed(OpValidateOtp, fmt.Errorf("el campo Signature esta vacio"))
	}
	out.Signature = sig
	c.log.Debug("ValidateOtp respondido", zap.String("code", st.Code), applog.Payload("signature", sig))
	return out, nil
}

func decodeStatus(el *etree.Element) (*protocol.SignStatus, error) {
	if el == nil || isNil(el) {
		return nil, fmt.Errorf("falta la estructura SignStatus")
	}
	st := &protocol.SignStatus{
		Code:       childText(el, "Code"),
		Message:    childText(el, "Message"),
		Field:      childText(el, "Field"),
		FieldValue: childText(el, "FieldValue"),
		ProcessID:  childText(el, "ProcessId"),
	}
	if st.Code == "" {
		return nil, fmt.Errorf("estructura SignStatus sin Code")
	}
	return st, nil
}

// call posts one envelope and returns the <op>Response element.
func (c *Client) call(ctx context.Context, op string, envelope []byte) (*etree.Element, error) {
	if c.endpoint == "" {
		return nil, signerr.Transport(op, fmt.Errorf("endpoint CMD vacio"))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, signerr.Transport(op, err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `"`+actionPrefix+op+`"`)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("fallo de red", zap.String("op", op), zap.String("endpoint", applog.SanitizeURI(c.endpoint)), zap.Error(err))
		return nil, signerr.Network(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, signerr.Network(op, fmt.Errorf("lectura de respuesta: %w", err))
	}
	c.log.Debug("respuesta SOAP",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		applog.Payload("body", body),
	)

	result, flt, perr := parseEnvelope(body)
	if flt != nil {
		return nil, signerr.Rejected(op, flt.Code, flt.String, "", flt.Detail)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, signerr.Transport(op, fmt.Errorf("estado HTTP no valido: %d", resp.StatusCode))
	}
	if perr != nil {
		return nil, signerr.Malformed(op, perr)
	}
	if result.Tag != op+"Response" {
		return nil, signerr.Malformed(op, fmt.Errorf("se esperaba %sResponse, recibido %s", op, result.Tag))
	}
	return result, nil
}
