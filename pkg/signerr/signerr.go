// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package signerr holds the error taxonomy shared by the remote clients and
// the signing orchestrator. Every failure of a signing session is one of four
// kinds; each kind maps to a distinct process exit code.
package signerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a session failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport is a network or connection failure on any remote call.
	KindTransport
	// KindRemoteRejection is a non-success status returned by a remote service.
	KindRemoteRejection
	// KindMalformedResponse is a reply that does not decode into the expected structure.
	KindMalformedResponse
	// KindOperatorCancelled means no OTP was supplied or the operator aborted.
	KindOperatorCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindRemoteRejection:
		return "RemoteRejection"
	case KindMalformedResponse:
		return "MalformedResponse"
	case KindOperatorCancelled:
		return "OperatorCancelled"
	default:
		return "Unknown"
	}
}

// Kind sentinels, usable with errors.Is on any *Error.
var (
	ErrTransport         = errors.New("error de transporte")
	ErrRemoteRejection   = errors.New("rechazo del servicio remoto")
	ErrMalformedResponse = errors.New("respuesta mal formada")
	ErrOperatorCancelled = errors.New("operacion cancelada por el operador")
)

// Specific failures, carried in Error.Err.
var (
	ErrCertificateUnavailable     = errors.New("no se pudo obtener el certificado CMD")
	ErrMalformedCertificateBundle = errors.New("cadena de certificados mal formada")
	ErrComputationService         = errors.New("error del servicio DSS")
)

// Error is the concrete error returned by every step of a signing session.
type Error struct {
	Kind Kind
	// Op names the remote operation or local step that failed.
	Op string

	// Remote status, filled for KindRemoteRejection.
	Code       string
	Message    string
	Field      string
	FieldValue string

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (campo %s=%q)", e.Field, e.FieldValue)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRemoteRejection:
		return e.Kind == KindRemoteRejection
	case ErrMalformedResponse:
		return e.Kind == KindMalformedResponse
	case ErrOperatorCancelled:
		return e.Kind == KindOperatorCancelled
	}
	return false
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Network classifies a failed round trip: a cancelled context is an operator
// abort, anything else (including deadlines) is a transport failure.
func Network(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return Cancelled(op, err)
	}
	return Transport(op, err)
}

func Malformed(op string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: err}
}

func Cancelled(op string, err error) *Error {
	return &Error{Kind: KindOperatorCancelled, Op: op, Err: err}
}

// Rejected builds a RemoteRejection from a remote status.
func Rejected(op, code, message, field, fieldValue string) *Error {
	return &Error{
		Kind:       KindRemoteRejection,
		Op:         op,
		Code:       strings.TrimSpace(code),
		Message:    strings.TrimSpace(message),
		Field:      strings.TrimSpace(field),
		FieldValue: strings.TrimSpace(fieldValue),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Process exit codes for the top-level boundary.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitTransport = 3
	ExitRejected  = 4
	ExitMalformed = 5
	ExitCancelled = 6
)

// ExitCode maps an error to a process exit code. Errors outside the taxonomy
// (configuration, local I/O) get ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindTransport:
		return ExitTransport
	case KindRemoteRejection:
		return ExitRejected
	case KindMalformedResponse:
		return ExitMalformed
	case KindOperatorCancelled:
		return ExitCancelled
	default:
		return ExitFailure
	}
}
