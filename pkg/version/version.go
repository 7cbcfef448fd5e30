// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package version

import "fmt"

const (
	CurrentVersion = "1.0.0"
	// ProgramText is printed by the version command and the CLI help header.
	ProgramText = "PDF PAdES (DSS & CMD) signature command line program"
)

var (
	// Se pueden sobrescribir en compilacion con -ldflags:
	// -X signpdf-cmd/pkg/version.BuildCommit=<hash>
	// -X signpdf-cmd/pkg/version.BuildDate=<YYYY-MM-DDTHH:MM:SSZ>
	BuildCommit = "local"
	BuildDate   = "desconocida"
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("version: %s (commit %s, %s)", CurrentVersion, BuildCommit, BuildDate)
}
