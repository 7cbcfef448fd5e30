// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package signer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"signpdf-cmd/pkg/signerr"
)

func TestPromptOTPReadsLine(t *testing.T) {
	var out bytes.Buffer
	p := &PromptOTP{In: strings.NewReader(" 123456 \nresto\n"), Out: &out}

	got, err := p.ReadOTP(context.Background(), "proc")
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	if got != "123456" {
		t.Fatalf("OTP=%q, esperado 123456", got)
	}
	if out.String() != DefaultOTPPrompt {
		t.Fatalf("prompt inesperado: %q", out.String())
	}
}

func TestPromptOTPWithoutNewline(t *testing.T) {
	p := &PromptOTP{In: strings.NewReader("987654")}
	got, err := p.ReadOTP(context.Background(), "proc")
	if err != nil || got != "987654" {
		t.Fatalf("OTP=%q err=%v", got, err)
	}
}

func TestPromptOTPCancelled(t *testing.T) {
	tests := []struct {
		name string
		in   io.Reader
	}{
		{name: "eof", in: strings.NewReader("")},
		{name: "linea vacia", in: strings.NewReader("\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&PromptOTP{In: tt.in}).ReadOTP(context.Background(), "proc")
			if !errors.Is(err, signerr.ErrOperatorCancelled) {
				t.Fatalf("se esperaba OperatorCancelled, obtenido %v", err)
			}
		})
	}
}

func TestPromptOTPContextDone(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := (&PromptOTP{In: pr}).ReadOTP(ctx, "proc")
	if !errors.Is(err, signerr.ErrOperatorCancelled) {
		t.Fatalf("se esperaba OperatorCancelled, obtenido %v", err)
	}
}

func TestLineReaderKeepsLineAfterAbandonedRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lines := NewLineReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lines.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("se esperaba DeadlineExceeded, obtenido %v", err)
	}

	go func() { _, _ = io.WriteString(pw, "112233\n") }()
	got, err := lines.ReadLine(context.Background())
	if err != nil || got != "112233\n" {
		t.Fatalf("linea=%q err=%v", got, err)
	}
}

func TestPromptOTPSharesLineReader(t *testing.T) {
	lines := NewLineReader(strings.NewReader("9876\n445566\n"))
	first, err := lines.ReadLine(context.Background())
	if err != nil || first != "9876\n" {
		t.Fatalf("primera linea=%q err=%v", first, err)
	}

	got, err := (&PromptOTP{Lines: lines}).ReadOTP(context.Background(), "proc")
	if err != nil || got != "445566" {
		t.Fatalf("OTP=%q err=%v", got, err)
	}
	if _, err := lines.ReadLine(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("se esperaba EOF, obtenido %v", err)
	}
}
