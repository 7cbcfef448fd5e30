// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package signer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"signpdf-cmd/pkg/signerr"
)

// OTPReader supplies the one-time code the user received for processID.
// An empty code, a closed input or a done context cancel the session.
type OTPReader interface {
	ReadOTP(ctx context.Context, processID string) (string, error)
}

// OTPFunc adapts a function to OTPReader.
type OTPFunc func(ctx context.Context, processID string) (string, error)

func (f OTPFunc) ReadOTP(ctx context.Context, processID string) (string, error) {
	return f(ctx, processID)
}

const DefaultOTPPrompt = "Introduzca el OTP recibido en su dispositivo: "

type lineResult struct {
	line string
	err  error
}

// LineReader reads lines on a single goroutine started by the first
// ReadLine. A read abandoned by its context leaves the pending line to the
// next call; the goroutine ends when the input is closed.
type LineReader struct {
	r     *bufio.Reader
	once  sync.Once
	lines chan lineResult
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r), lines: make(chan lineResult)}
}

func (l *LineReader) start() {
	go func() {
		for {
			line, err := l.r.ReadString('\n')
			l.lines <- lineResult{line: line, err: err}
			if err != nil {
				close(l.lines)
				return
			}
		}
	}()
}

// ReadLine returns the next line including its terminator. After the input
// ends it returns io.EOF.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(l.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// PromptOTP writes a prompt and reads one line from Lines, or from In when
// Lines is nil.
type PromptOTP struct {
	In     io.Reader
	Lines  *LineReader
	Out    io.Writer
	Prompt string

	once sync.Once
}

func (p *PromptOTP) ReadOTP(ctx context.Context, _ string) (string, error) {
	p.once.Do(func() {
		if p.Lines == nil {
			p.Lines = NewLineReader(p.In)
		}
	})
	prompt := p.Prompt
	if prompt == "" {
		prompt = DefaultOTPPrompt
	}
	if p.Out != nil {
		fmt.Fprint(p.Out, prompt)
	}

	raw, err := p.Lines.ReadLine(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return "", signerr.Cancelled("otp", ctxErr)
	}
	line := strings.TrimSpace(raw)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", signerr.Cancelled("otp", fmt.Errorf("entrada cerrada sin OTP: %w", err))
	}
	if line == "" {
		return "", signerr.Cancelled("otp", errors.New("no se introdujo el codigo OTP"))
	}
	return line, nil
}
