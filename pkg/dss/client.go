// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package dss is a client for the one-document REST API of a DSS server:
// getDataToSign computes the data to be signed of a PDF, signDocument embeds
// an externally computed signature value into it.
package dss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/protocol"
	"signpdf-cmd/pkg/signerr"
)

const (
	OpGetDataToSign = "getDataToSign"
	OpSignDocument  = "signDocument"

	maxResponseBytes = 256 << 20
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lg := opts.Logger
	if lg == nil {
		lg = applog.Named("dss")
	}
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http: hc,
		log:  lg,
	}
}

// GetDataToSign returns the DTBS bytes of doc under params.
func (c *Client) GetDataToSign(ctx context.Context, params *protocol.SignatureParameters, doc protocol.Document) ([]byte, error) {
	req := protocol.DataToSignRequest{
		Parameters:     protocol.NewRemoteSignatureParameters(params),
		ToSignDocument: remoteDocument(doc),
	}
	return c.post(ctx, OpGetDataToSign, req)
}

// SignDocument returns the signed PDF. params must be the value given to
// GetDataToSign for the same document.
func (c *Client) SignDocument(ctx context.Context, params *protocol.SignatureParameters, doc protocol.Document, signatureValue []byte) ([]byte, error) {
	req := protocol.SignDocumentRequest{
		Parameters: protocol.NewRemoteSignatureParameters(params),
		SignatureValue: protocol.SignatureValue{
			Algorithm: params.SignatureAlgorithm(),
			Value:     base64.StdEncoding.EncodeToString(signatureValue),
		},
		ToSignDocument: remoteDocument(doc),
	}
	return c.post(ctx, OpSignDocument, req)
}

func remoteDocument(doc protocol.Document) protocol.RemoteDocument {
	return protocol.RemoteDocument{
		Bytes: base64.StdEncoding.EncodeToString(doc.Bytes),
		Name:  doc.Name,
	}
}

// serviceError is the error body some DSS deployments return.
type serviceError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) post(ctx context.Context, op string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("no se pudo serializar la peticion %s: %w", op, err)
	}
	if c.base == "" {
		return nil, signerr.Transport(op, fmt.Errorf("%w: URL base vacia", signerr.ErrComputationService))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+op, bytes.NewReader(body))
	if err != nil {
		return nil, signerr.Transport(op, fmt.Errorf("%w: %v", signerr.ErrComputationService, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("fallo de red", zap.String("op", op), zap.String("url", applog.SanitizeURI(c.base)), zap.Error(err))
		return nil, signerr.Network(op, fmt.Errorf("%w: %w", signerr.ErrComputationService, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, signerr.Network(op, fmt.Errorf("%w: lectura de respuesta: %w", signerr.ErrComputationService, err))
	}
	c.log.Debug("respuesta DSS",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		applog.Payload("request", body),
		applog.Payload("response", raw),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := signerr.Rejected(op, strconv.Itoa(resp.StatusCode), errorMessage(raw), "", "")
		e.Err = signerr.ErrComputationService
		return nil, e
	}

	var out protocol.BytesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, signerr.Malformed(op, fmt.Errorf("%w: json invalido: %v", signerr.ErrComputationService, err))
	}
	if out.Bytes == nil || strings.TrimSpace(*out.Bytes) == "" {
		return nil, signerr.Malformed(op, fmt.Errorf("%w: respuesta sin campo 'bytes'", signerr.ErrComputationService))
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*out.Bytes))
	if err != nil {
		return nil, signerr.Malformed(op, fmt.Errorf("%w: 'bytes' no es base64: %v", signerr.ErrComputationService, err))
	}
	return decoded, nil
}

func errorMessage(raw []byte) string {
	var se serviceError
	if json.Unmarshal(raw, &se) == nil {
		if m := strings.TrimSpace(se.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(se.Error); m != "" {
			return m
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
