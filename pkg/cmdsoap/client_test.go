// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package cmdsoap

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/signerr"
)

const appID = "b826359c-06f8-425e-8ec3-50a97a418916"

type fakeCMD struct {
	t        *testing.T
	actions  []string
	lastBody *etree.Element
	reply    func(op string) (int, string)
}

func (f *fakeCMD) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	require.Equal(f.t, http.MethodPost, r.Method)
	require.Equal(f.t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
	action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
	require.True(f.t, strings.HasPrefix(action, actionPrefix), "SOAPAction inesperada: %s", action)
	op := strings.TrimPrefix(action, actionPrefix)
	f.actions = append(f.actions, op)

	raw, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)
	doc := etree.NewDocument()
	require.NoError(f.t, doc.ReadFromBytes(raw))
	body := doc.Root().SelectElement("Body")
	require.NotNil(f.t, body)
	f.lastBody = body.SelectElement(op)
	require.NotNil(f.t, f.lastBody, "falta el elemento de operacion %s", op)

	status, xml := f.reply(op)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml)
}

func newFake(t *testing.T, reply func(op string) (int, string)) (*fakeCMD, *Client) {
	t.Helper()
	f := &fakeCMD{t: t, reply: reply}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, New(Options{Endpoint: srv.URL, Timeout: 5 * time.Second, Logger: zap.NewNop()})
}

func soap(inner string) string {
	return `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` + inner + `</s:Body></s:Envelope>`
}

func TestGetCertificate(t *testing.T) {
	bundle := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----"
	f, c := newFake(t, func(op string) (int, string) {
		return 200, soap(`<GetCertificateResponse xmlns="http://Ama.Authentication.Service/"><GetCertificateResult>` + bundle + `</GetCertificateResult></GetCertificateResponse>`)
	})

	got, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
	require.NoError(t, err)
	require.Equal(t, bundle, got)
	require.Equal(t, []string{OpGetCertificate}, f.actions)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte(appID)), childText(f.lastBody, "applicationId"))
	require.Equal(t, "+351 000000000", childText(f.lastBody, "userId"))
}

func TestGetCertificateEmptyResult(t *testing.T) {
	for name, inner := range map[string]string{
		"vacio":   `<GetCertificateResponse><GetCertificateResult></GetCertificateResult></GetCertificateResponse>`,
		"ausente": `<GetCertificateResponse/>`,
		"nil":     `<GetCertificateResponse xmlns:i="http://www.w3.org/2001/XMLSchema-instance"><GetCertificateResult i:nil="true"/></GetCertificateResponse>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, c := newFake(t, func(string) (int, string) { return 200, soap(inner) })
			_, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
			require.ErrorIs(t, err, signerr.ErrCertificateUnavailable)
			require.Equal(t, signerr.KindMalformedResponse, signerr.KindOf(err))
		})
	}
}

func TestRequestSignatureSendsOrderedRequest(t *testing.T) {
	f, c := newFake(t, func(string) (int, string) {
		return 200, soap(`<CCMovelSignResponse xmlns="http://Ama.Authentication.Service/">
			<CCMovelSignResult xmlns:a="http://schemas.datacontract.org/2004/07/Ama.Structures.CCMovelSignature">
				<a:Code>200</a:Code><a:Field/><a:FieldValue/><a:Message>OK</a:Message><a:ProcessId>proc-42</a:ProcessId>
			</CCMovelSignResult></CCMovelSignResponse>`)
	})
	digestInfo := []byte{0x30, 0x31, 0xAA}

	st, err := c.RequestSignature(context.Background(), appID, "+351 000000000", "1234", "doc.pdf", digestInfo)
	require.NoError(t, err)
	require.True(t, st.OK())
	require.Equal(t, "proc-42", st.ProcessID)
	require.Equal(t, "OK", st.Message)

	req := f.lastBody.SelectElement("request")
	require.NotNil(t, req)
	var names []string
	for _, el := range req.ChildElements() {
		require.Equal(t, nsStructure, el.NamespaceURI())
		names = append(names, el.Tag)
	}
	require.Equal(t, []string{"ApplicationId", "DocName", "Hash", "Pin", "UserId"}, names)
	require.Equal(t, base64.StdEncoding.EncodeToString(digestInfo), childText(req, "Hash"))
	require.Equal(t, "doc.pdf", childText(req, "DocName"))
}

func TestRequestSignatureNonSuccessIsReturned(t *testing.T) {
	_, c := newFake(t, func(string) (int, string) {
		return 200, soap(`<CCMovelSignResponse><CCMovelSignResult><Code>801</Code><Field>Pin</Field><FieldValue>x</FieldValue><Message>PIN invalido</Message></CCMovelSignResult></CCMovelSignResponse>`)
	})
	st, err := c.RequestSignature(context.Background(), appID, "+351 000000000", "0000", "doc.pdf", []byte{1})
	require.NoError(t, err)
	require.False(t, st.OK())
	require.Equal(t, "801", st.Code)
	require.Equal(t, "Pin", st.Field)
}

func TestRequestSignatureStrictDecoding(t *testing.T) {
	for name, inner := range map[string]string{
		"sin code":       `<CCMovelSignResponse><CCMovelSignResult><Message>x</Message></CCMovelSignResult></CCMovelSignResponse>`,
		"200 sin proc":   `<CCMovelSignResponse><CCMovelSignResult><Code>200</Code></CCMovelSignResult></CCMovelSignResponse>`,
		"sin resultado":  `<CCMovelSignResponse/>`,
		"otra operacion": `<ValidateOtpResponse/>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, c := newFake(t, func(string) (int, string) { return 200, soap(inner) })
			_, err := c.RequestSignature(context.Background(), appID, "u", "p", "d", []byte{1})
			require.ErrorIs(t, err, signerr.ErrMalformedResponse)
		})
	}
}

func TestValidateOtp(t *testing.T) {
	sig := []byte("assinatura-pkcs1")
	f, c := newFake(t, func(string) (int, string) {
		return 200, soap(`<ValidateOtpResponse xmlns="http://Ama.Authentication.Service/">
			<ValidateOtpResult xmlns:a="http://schemas.datacontract.org/2004/07/Ama.Structures.CCMovelSignature">
				<a:ArrayOfHashStructure/>
				<a:Signature>` + base64.StdEncoding.EncodeToString(sig) + `</a:Signature>
				<a:Status><a:Code>200</a:Code><a:Message>OK</a:Message><a:ProcessId>proc-42</a:ProcessId></a:Status>
			</ValidateOtpResult></ValidateOtpResponse>`)
	})

	res, err := c.ValidateOtp(context.Background(), appID, "proc-42", "123456")
	require.NoError(t, err)
	require.Equal(t, sig, res.Signature)
	require.True(t, res.Status.OK())
	require.Equal(t, "123456", childText(f.lastBody, "code"))
	require.Equal(t, "proc-42", childText(f.lastBody, "processId"))
}

func TestValidateOtpRejectionAndMalformed(t *testing.T) {
	t.Run("codigo no valido", func(t *testing.T) {
		_, c := newFake(t, func(string) (int, string) {
			return 200, soap(`<ValidateOtpResponse><ValidateOtpResult><Status><Code>802</Code><Message>OTP invalido</Message></Status></ValidateOtpResult></ValidateOtpResponse>`)
		})
		res, err := c.ValidateOtp(context.Background(), appID, "proc", "000000")
		require.NoError(t, err)
		require.Equal(t, "802", res.Status.Code)
		require.Nil(t, res.Signature)
	})
	t.Run("200 sin firma", func(t *testing.T) {
		_, c := newFake(t, func(string) (int, string) {
			return 200, soap(`<ValidateOtpResponse><ValidateOtpResult><Status><Code>200</Code></Status></ValidateOtpResult></ValidateOtpResponse>`)
		})
		_, err := c.ValidateOtp(context.Background(), appID, "proc", "123456")
		require.ErrorIs(t, err, signerr.ErrMalformedResponse)
	})
	t.Run("firma no base64", func(t *testing.T) {
		_, c := newFake(t, func(string) (int, string) {
			return 200, soap(`<ValidateOtpResponse><ValidateOtpResult><Signature>%%%</Signature><Status><Code>200</Code></Status></ValidateOtpResult></ValidateOtpResponse>`)
		})
		_, err := c.ValidateOtp(context.Background(), appID, "proc", "123456")
		require.ErrorIs(t, err, signerr.ErrMalformedResponse)
	})
}

func TestSOAPFaultIsRemoteRejection(t *testing.T) {
	_, c := newFake(t, func(string) (int, string) {
		return 500, soap(`<s:Fault><faultcode>s:Client</faultcode><faultstring>ApplicationId desconocido</faultstring></s:Fault>`)
	})
	_, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
	var se *signerr.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, signerr.KindRemoteRejection, se.Kind)
	require.Equal(t, "ApplicationId desconocido", se.Message)
	require.Equal(t, "s:Client", se.Code)
}

func TestHTTPErrorWithoutFaultIsTransport(t *testing.T) {
	_, c := newFake(t, func(string) (int, string) { return 503, "Service Unavailable" })
	_, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
	require.ErrorIs(t, err, signerr.ErrTransport)
}

func TestGarbageIsMalformed(t *testing.T) {
	_, c := newFake(t, func(string) (int, string) { return 200, "<html>not soap" })
	_, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
	require.ErrorIs(t, err, signerr.ErrMalformedResponse)
}

func TestUnreachableEndpointIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{Endpoint: url, Timeout: time.Second, Logger: zap.NewNop()})
	_, err := c.GetCertificate(context.Background(), appID, "+351 000000000")
	require.ErrorIs(t, err, signerr.ErrTransport)
}

func TestCancelledContextIsOperatorCancelled(t *testing.T) {
	_, c := newFake(t, func(string) (int, string) { return 200, soap(`<GetCertificateResponse/>`) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetCertificate(ctx, appID, "+351 000000000")
	require.ErrorIs(t, err, signerr.ErrOperatorCancelled)
}
