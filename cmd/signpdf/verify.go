// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signpdf-cmd/pkg/pdfdoc"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pdf>",
		Short: "Verifica localmente las firmas PAdES de un PDF",
		Args:  usageArgs(cobra.ExactArgs(1)),
		// Local check, no remote services involved.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(_ *cobra.Command, args []string) error {
			rep, err := pdfdoc.VerifyFile(args[0])
			if err != nil {
				return fmt.Errorf("no se pudo verificar %s: %w", args[0], err)
			}
			if rep.Signers == 0 {
				return fmt.Errorf("%s no contiene firmas", args[0])
			}
			fmt.Fprintf(a.stdout, "Firmas:    %d\n", rep.Signers)
			fmt.Fprintf(a.stdout, "Firmante:  %s\n", rep.SignerName)
			if !rep.SigningTime.IsZero() {
				fmt.Fprintf(a.stdout, "Fecha:     %s\n", rep.SigningTime.Local().Format(time.DateTime))
			}
			fmt.Fprintf(a.stdout, "Confiable: %t\n", rep.TrustedIssuer)
			if rep.Reason != "" {
				fmt.Fprintf(a.stdout, "Detalle:   %s\n", rep.Reason)
			}
			if !rep.Valid {
				return fmt.Errorf("la ultima firma de %s no es valida", args[0])
			}
			fmt.Fprintln(a.stdout, "Firma valida")
			return nil
		},
	}
}
