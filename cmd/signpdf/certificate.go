// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/certchain"
)

func newCertificateCmd(a *app) *cobra.Command {
	var pemOut bool
	cmd := &cobra.Command{
		Use:   "certificate <user>",
		Short: "Consulta la cadena de certificados CMD de un usuario",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := strings.TrimSpace(args[0])
			client := a.cmdClient()
			a.log.Info("consultando certificado", applog.User(user), zap.String("endpoint", applog.SanitizeURI(client.Endpoint())))
			bundle, err := client.GetCertificate(cmd.Context(), a.cfg.CMD.ApplicationID, user)
			if err != nil {
				return err
			}
			if pemOut {
				fmt.Fprint(a.stdout, bundle)
				if !strings.HasSuffix(bundle, "\n") {
					fmt.Fprintln(a.stdout)
				}
				return nil
			}
			chain, err := certchain.Parse(bundle)
			if err != nil {
				return err
			}
			now := time.Now()
			for _, ci := range certchain.Describe(chain) {
				fmt.Fprintf(a.stdout, "[%s]\n", ci.Role)
				fmt.Fprintf(a.stdout, "  Sujeto:  %s\n", ci.Subject)
				fmt.Fprintf(a.stdout, "  Emisor:  %s\n", ci.Issuer)
				if ci.Serial != "" {
					fmt.Fprintf(a.stdout, "  Serie:   %s\n", ci.Serial)
					fmt.Fprintf(a.stdout, "  Validez: %s - %s", ci.NotBefore.Format(time.DateOnly), ci.NotAfter.Format(time.DateOnly))
					if ci.Expired(now) {
						fmt.Fprint(a.stdout, " (CADUCADO)")
					}
					fmt.Fprintln(a.stdout)
					fmt.Fprintf(a.stdout, "  SHA-256: %s\n", ci.Fingerprint)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pemOut, "pem", false, "Imprime el bundle PEM tal como lo devuelve el servicio")
	return cmd
}
