// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Command signpdf signs a PDF in PAdES format with the Portuguese CMD (Chave
// Movel Digital) service and a DSS server.
//
//	signpdf [flags] <user> <pin> <infile>
//	signpdf certificate <user>
//	signpdf version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/signerr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	applog.Sync()
	os.Exit(code)
}

// run executes the CLI and maps the outcome to a process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(newApp(stdin, stdout, stderr))
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return signerr.ExitOK
	}
	fmt.Fprintf(stderr, "Error: %s\n", describeError(err))
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Use '%s --help' para ver la ayuda.\n", root.CommandPath())
		return signerr.ExitUsage
	}
	return signerr.ExitCode(err)
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// describeError renders err for the operator.
func describeError(err error) string {
	var se *signerr.Error
	if !errors.As(err, &se) {
		return err.Error()
	}
	switch se.Kind {
	case signerr.KindRemoteRejection:
		msg := fmt.Sprintf("%s rechazado (codigo %s)", se.Op, se.Code)
		if se.Message != "" {
			msg += ": " + se.Message
		}
		if se.Op == "CCMovelSign" {
			msg += ". Valide el PIN introducido."
		}
		return msg
	case signerr.KindOperatorCancelled:
		return "operacion cancelada por el operador: " + se.Error()
	case signerr.KindTransport:
		return "no se pudo contactar con el servicio remoto: " + se.Error()
	case signerr.KindMalformedResponse:
		return "respuesta inesperada del servicio remoto: " + se.Error()
	default:
		return se.Error()
	}
}
