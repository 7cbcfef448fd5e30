// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package signer

import (
	"sync"
	"time"

	"signpdf-cmd/pkg/protocol"
)

// State of a signing session. Successful states only move forward, one step
// at a time; Failed is terminal and reachable from any other state.
type State int

const (
	StateStart State = iota
	StateCertificateFetched
	StateParametersBuilt
	StateDigestComputed
	StateSignatureRequested
	StateOtpValidated
	StateDocumentAssembled
	StateFailed
)

var stateNames = [...]string{
	StateStart:              "Start",
	StateCertificateFetched: "CertificateFetched",
	StateParametersBuilt:    "ParametersBuilt",
	StateDigestComputed:     "DigestComputed",
	StateSignatureRequested: "SignatureRequested",
	StateOtpValidated:       "OtpValidated",
	StateDocumentAssembled:  "DocumentAssembled",
	StateFailed:             "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDocumentAssembled || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	SessionID string
	From      State
	To        State
	At        time.Time
	// Elapsed since the previous transition (or session start).
	Elapsed time.Duration
	// Err is set when To is StateFailed.
	Err error
}

// Session is the per-run record kept by the orchestrator.
type Session struct {
	ID string

	mu       sync.Mutex
	state    State
	lastGood State
	last     time.Time
	history  []Transition

	params    protocol.SignatureParameters
	processID string
	pin       []byte
}

func newSession(id, pin string, now time.Time) *Session {
	return &Session{ID: id, state: StateStart, lastGood: StateStart, last: now, pin: []byte(pin)}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastCompleted is the last successful state reached.
func (s *Session) LastCompleted() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood
}

func (s *Session) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) advance(to State, now time.Time, cause error) (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return Transition{}, false
	}
	if to != StateFailed && to != s.state+1 {
		return Transition{}, false
	}
	tr := Transition{SessionID: s.ID, From: s.state, To: to, At: now, Elapsed: now.Sub(s.last), Err: cause}
	s.history = append(s.history, tr)
	if to != StateFailed {
		s.lastGood = to
	}
	s.state = to
	s.last = now
	return tr, true
}

func (s *Session) pinValue() string {
	return string(s.pin)
}

// wipePIN clears the session copy of the PIN once CCMovelSign was sent.
func (s *Session) wipePIN() {
	for i := range s.pin {
		s.pin[i] = 0
	}
	s.pin = nil
}
