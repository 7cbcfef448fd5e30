// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/cmdsoap"
	"signpdf-cmd/pkg/config"
	"signpdf-cmd/pkg/dss"
	"signpdf-cmd/pkg/signer"
	"signpdf-cmd/pkg/updater"
	"signpdf-cmd/pkg/version"
)

// DateTimeLayout is the --datetime format, DD/MM/YYYY hh:mm:ss.
const DateTimeLayout = "02/01/2006 15:04:05"

// pinArgIndex is the position of <pin> in "signpdf <user> <pin> <infile>".
const pinArgIndex = 1

type globalFlags struct {
	debug      bool
	configPath string
	envFiles   []string
	env        string
	logDir     string
	noLogFile  bool
}

type app struct {
	rawIn  io.Reader
	lines  *signer.LineReader
	stdout io.Writer
	stderr io.Writer

	flags globalFlags
	cfg   *config.Config
	log   *zap.Logger
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{rawIn: stdin, lines: signer.NewLineReader(stdin), stdout: stdout, stderr: stderr}
}

func newRootCmd(a *app) *cobra.Command {
	var sf signFlags

	root := &cobra.Command{
		Use:   "signpdf [flags] <user> <pin> <infile>",
		Short: version.ProgramText,
		Long: version.ProgramText + `

<user>   numero de telefono del titular (+XXX NNNNNNNNN)
<pin>    PIN de firma CMD ("-" para introducirlo sin eco)
<infile> PDF a firmar`,
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              usageArgs(cobra.ExactArgs(3)),
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSign(cmd, args, sf)
		},
	}
	root.SetIn(a.rawIn)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.flags.debug, "debug", "D", false, "Muestra informacion de depuracion (incluye trazas de las llamadas remotas)")
	pf.StringVar(&a.flags.configPath, "config", os.Getenv("SIGNPDF_CONFIG"), "Fichero de configuracion YAML (env SIGNPDF_CONFIG)")
	pf.StringSliceVar(&a.flags.envFiles, "env-file", []string{".env"}, "Ficheros .env a cargar (los ausentes se ignoran)")
	pf.StringVar(&a.flags.env, "env", "", "Entorno CMD: preprod|prod (por defecto el de la configuracion)")
	pf.StringVar(&a.flags.logDir, "log-dir", "", "Directorio de logs (por defecto el del usuario)")
	pf.BoolVar(&a.flags.noLogFile, "no-log-file", false, "No escribir log persistente")

	f := root.Flags()
	f.StringVar(&sf.outfile, "outfile", "", "PDF firmado de salida (por defecto <infile>.signed.pdf)")
	f.StringVar(&sf.datetime, "datetime", "", `Fecha y hora de firma "DD/MM/YYYY hh:mm:ss" (por defecto la actual)`)
	f.StringVar(&sf.overwrite, "overwrite", "rename", "Politica si la salida existe: fail|rename|force")
	f.DurationVar(&sf.otpTimeout, "otp-timeout", 5*time.Minute, "Tiempo maximo de espera del OTP (0 sin limite)")
	f.BoolVar(&sf.verify, "verify", false, "Verifica localmente la firma PAdES antes de guardar")
	f.StringVar(&sf.metricsFile, "metrics-file", "", "Escribe las metricas de la sesion en formato textfile de Prometheus")

	root.AddCommand(newCertificateCmd(a), newVerifyCmd(a), newVersionCmd(a))
	return root
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// setup loads configuration and starts logging for every command that talks
// to the remote services.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFiles(a.flags.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.flags.env) != "" {
		env, err := config.ParseEnvironment(a.flags.env)
		if err != nil {
			return &usageError{err: err}
		}
		cfg.CMD.Environment = env
	}
	if a.flags.logDir != "" {
		cfg.Log.Dir = a.flags.logDir
	}
	if a.flags.noLogFile {
		cfg.Log.NoFile = true
	}

	_, logErr := applog.Init("signpdf-cmd", applog.Options{
		Debug:  a.flags.debug,
		Dir:    cfg.Log.Dir,
		NoFile: cfg.Log.NoFile,
	})
	a.log = applog.Named("cli")
	if logErr != nil {
		a.log.Warn("no se pudo inicializar el log persistente", zap.Error(logErr))
	}
	a.log.Info("=== signpdf iniciado ===",
		zap.String("version", version.CurrentVersion),
		zap.String("command", cmd.Name()),
		zap.Strings("args", sanitizedCommandLine(cmd, args)),
		zap.String("log", applog.Path()),
		zap.String("cmd_env", cfg.CMD.Environment.String()),
		zap.String("cmd_endpoint", applog.SanitizeURI(cfg.CMDEndpoint())),
		zap.String("dss", applog.SanitizeURI(cfg.DSS.BaseURL)),
	)

	if a.flags.debug && applog.Path() != "" {
		fmt.Fprintf(a.stderr, "Log de la sesion: %s\n", applog.Path())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuracion no valida: %w", err)
	}
	a.cfg = cfg
	return nil
}

// sanitizedCommandLine is the parsed command line as it may be logged: flags
// set by the operator by name, positionals with the PIN of the sign command
// redacted.
func sanitizedCommandLine(cmd *cobra.Command, args []string) []string {
	flags := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		flags[f.Name] = f.Value.String()
	})
	var secret []int
	if !cmd.HasParent() {
		secret = append(secret, pinArgIndex)
	}
	return applog.SanitizeArgs(flags, args, secret...)
}

func (a *app) cmdClient() *cmdsoap.Client {
	return cmdsoap.New(cmdsoap.Options{Endpoint: a.cfg.CMDEndpoint(), Timeout: a.cfg.CMD.Timeout})
}

func (a *app) dssClient() *dss.Client {
	return dss.New(dss.Options{BaseURL: a.cfg.DSS.BaseURL, Timeout: a.cfg.DSS.Timeout})
}

func (a *app) parameterDefaults() signer.ParameterDefaults {
	s := a.cfg.Signature
	return signer.ParameterDefaults{
		DigestAlgorithm:            s.DigestAlgorithm,
		EncryptionAlgorithm:        s.EncryptionAlgorithm,
		Level:                      s.Level,
		Packaging:                  s.Packaging,
		TrustAnchorBPPolicy:        s.TrustAnchorBPPolicy,
		SignWithExpiredCertificate: s.SignWithExpiredCertificate,
	}
}

func newVersionCmd(a *app) *cobra.Command {
	var manifestURL string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Muestra la version del programa",
		Args:  usageArgs(cobra.NoArgs),
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(a.stdout, version.ProgramText)
			fmt.Fprintln(a.stdout, version.String())
			if strings.TrimSpace(manifestURL) == "" {
				return nil
			}
			res, err := updater.Check(cmd.Context(), nil, version.CurrentVersion, manifestURL)
			if err != nil {
				return err
			}
			if !res.HasUpdate {
				fmt.Fprintf(a.stdout, "Version al dia (%s)\n", res.LatestVersion)
				return nil
			}
			fmt.Fprintf(a.stdout, "Nueva version disponible: %s\n", res.LatestVersion)
			if res.UpdateURL != "" {
				fmt.Fprintf(a.stdout, "Descarga: %s\n", res.UpdateURL)
			}
			if res.Notes != "" {
				fmt.Fprintf(a.stdout, "Notas: %s\n", res.Notes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestURL, "check", os.Getenv("SIGNPDF_UPDATE_URL"), "Comprueba si hay una version nueva en el manifiesto JSON indicado (env SIGNPDF_UPDATE_URL)")
	return cmd
}
