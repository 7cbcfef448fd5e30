// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/metrics"
	"signpdf-cmd/pkg/pdfdoc"
	"signpdf-cmd/pkg/signer"
	"signpdf-cmd/pkg/signerr"
)

type signFlags struct {
	outfile     string
	datetime    string
	overwrite   string
	otpTimeout  time.Duration
	verify      bool
	metricsFile string
}

// readPassword is replaced in tests.
var readPassword = func(fd int) ([]byte, error) { return term.ReadPassword(fd) }

// ParseSigningTime parses a --datetime value in local time.
func ParseSigningTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, v, time.Local)
	if err != nil {
		return nil, fmt.Errorf("--datetime debe tener el formato DD/MM/YYYY hh:mm:ss: %q", v)
	}
	return &t, nil
}

func (a *app) runSign(cmd *cobra.Command, args []string, sf signFlags) error {
	userID, pinArg, infile := strings.TrimSpace(args[0]), args[pinArgIndex], args[2]

	policy, err := pdfdoc.ParseOverwritePolicy(sf.overwrite)
	if err != nil {
		return &usageError{err: err}
	}
	signingTime, err := ParseSigningTime(sf.datetime)
	if err != nil {
		return &usageError{err: err}
	}
	if userID == "" {
		return &usageError{err: errors.New("el usuario (telefono) no puede estar vacio")}
	}

	doc, err := pdfdoc.Load(infile)
	if err != nil {
		return err
	}
	outfile := strings.TrimSpace(sf.outfile)
	if outfile == "" {
		outfile = pdfdoc.DefaultOutputPath(infile)
	}
	// Resolved before signing so a fail policy costs no OTP.
	outPath, renamed, overwrote, err := pdfdoc.ResolveOutputPath(outfile, policy)
	if err != nil {
		return err
	}

	pin, err := a.readPIN(cmd.Context(), pinArg)
	if err != nil {
		return err
	}

	rec := metrics.New()
	mobile := a.cmdClient()
	orch := signer.NewOrchestrator(signer.Config{
		ApplicationID: a.cfg.CMD.ApplicationID,
		Parameters:    a.parameterDefaults(),
		OTPTimeout:    sf.otpTimeout,
	}, signer.Dependencies{
		Certificates: mobile,
		Mobile:       mobile,
		DSS:          a.dssClient(),
		OTP:          &signer.PromptOTP{Lines: a.lines, Out: a.stderr},
		Logger:       applog.Named("signer"),
		OnTransition: func(tr signer.Transition) {
			if tr.Err == nil {
				rec.ObserveStep(tr.To.String(), tr.Elapsed)
			}
		},
	})

	a.log.Info("firmando documento",
		zap.String("input", infile),
		zap.String("output", outPath),
		zap.Bool("renamed", renamed),
		zap.Bool("overwrite", overwrote),
	)
	res, err := orch.Sign(cmd.Context(), signer.SignRequest{
		UserID:      userID,
		PIN:         pin,
		Document:    doc,
		SigningTime: signingTime,
	})
	defer a.writeMetrics(rec, sf.metricsFile)
	if err != nil {
		rec.ObserveOutcome(err, time.Now())
		return err
	}

	if sf.verify {
		rep, err := pdfdoc.Verify(res.Signed)
		if err != nil {
			rec.ObserveOutcome(err, time.Now())
			return fmt.Errorf("no se pudo verificar el PDF firmado: %w", err)
		}
		if !rep.Valid {
			err := fmt.Errorf("el PDF firmado no supera la verificacion local: %s", rep.Reason)
			rec.ObserveOutcome(err, time.Now())
			return err
		}
		a.log.Info("firma verificada", zap.String("signer", rep.SignerName), zap.Bool("trusted_issuer", rep.TrustedIssuer))
		fmt.Fprintf(a.stderr, "Firma verificada: %s\n", rep.SignerName)
	}

	if err := pdfdoc.WriteFile(outPath, res.Signed, 0o644); err != nil {
		rec.ObserveOutcome(err, time.Now())
		return fmt.Errorf("no se pudo guardar el PDF firmado: %w", err)
	}
	rec.ObserveOutcome(nil, time.Now())
	a.log.Info("fichero firmado guardado", zap.String("path", outPath), zap.String("session", res.SessionID))
	if renamed {
		fmt.Fprintf(a.stderr, "Aviso: %s ya existia, se usa otro nombre\n", outfile)
	}
	fmt.Fprintf(a.stdout, "Fichero firmado guardado en %s\n", outPath)
	return nil
}

// readPIN returns arg unless it is "-", in which case the PIN is asked for
// without echo (or read as one line when stdin is not a terminal).
func (a *app) readPIN(ctx context.Context, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	fmt.Fprint(a.stderr, "PIN de firma CMD: ")
	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("no se pudo leer el PIN: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := a.lines.ReadLine(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return "", signerr.Cancelled("pin", ctxErr)
	}
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("no se pudo leer el PIN: %w", err)
	}
	pin := strings.TrimSpace(line)
	if pin == "" {
		return "", &usageError{err: errors.New("PIN vacio")}
	}
	return pin, nil
}

func (a *app) writeMetrics(rec *metrics.Recorder, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := rec.WriteTextfile(path); err != nil {
		a.log.Warn("no se pudieron escribir las metricas", zap.String("path", path), zap.Error(err))
	}
}
