// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package config loads the settings of the signing tool: the CMD application
// id issued by AMA, the CMD environment, the DSS REST base URL, network
// timeouts and the signature parameter defaults.
//
// Sources, lowest precedence first: built-in defaults, a YAML file, .env
// files, SIGNPDF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signpdf-cmd/pkg/protocol"
)

const (
	DefaultDSSBaseURL = "https://dss.devisefutures.com/services/rest/signature/one-document"
	DefaultCMDTimeout = 10 * time.Second
	DefaultDSSTimeout = 30 * time.Second
)

// Environment selects the CMD service deployment.
type Environment int

const (
	EnvProduction Environment = iota
	EnvPreproduction
)

var endpoints = map[Environment]string{
	EnvPreproduction: "https://preprod.cmd.autenticacao.gov.pt/Ama.Authentication.Frontend/CCMovelDigitalSignature.svc",
	EnvProduction:    "https://cmd.autenticacao.gov.pt/Ama.Authentication.Frontend/CCMovelDigitalSignature.svc",
}

func ParseEnvironment(v string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "prod", "production", "":
		return EnvProduction, nil
	case "preprod", "preproduction", "pre":
		return EnvPreproduction, nil
	default:
		return EnvProduction, fmt.Errorf("entorno CMD no valido: %q (use preprod|prod)", v)
	}
}

func (e Environment) String() string {
	if e == EnvPreproduction {
		return "preprod"
	}
	return "prod"
}

// Endpoint returns the SOAP service URL of the environment.
func (e Environment) Endpoint() string {
	return endpoints[e]
}

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseEnvironment(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

func (e Environment) MarshalYAML() (interface{}, error) {
	return e.String(), nil
}

type Config struct {
	CMD struct {
		// ApplicationID is issued by AMA to the integrating entity.
		ApplicationID string        `yaml:"application_id"`
		Environment   Environment   `yaml:"environment"`
		Endpoint      string        `yaml:"endpoint"` // overrides the environment URL
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"cmd"`

	DSS struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"dss"`

	Signature struct {
		DigestAlgorithm            string `yaml:"digest_algorithm"`
		EncryptionAlgorithm        string `yaml:"encryption_algorithm"`
		Level                      string `yaml:"level"`
		Packaging                  string `yaml:"packaging"`
		TrustAnchorBPPolicy        bool   `yaml:"trust_anchor_bp_policy"`
		SignWithExpiredCertificate bool   `yaml:"sign_with_expired_certificate"`
	} `yaml:"signature"`

	Log struct {
		Dir    string `yaml:"dir"`
		NoFile bool   `yaml:"no_file"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	var c Config
	c.CMD.Environment = EnvProduction
	c.CMD.Timeout = DefaultCMDTimeout
	c.DSS.BaseURL = DefaultDSSBaseURL
	c.DSS.Timeout = DefaultDSSTimeout
	c.Signature.DigestAlgorithm = protocol.DigestSHA256
	c.Signature.EncryptionAlgorithm = protocol.EncryptionRSA
	c.Signature.Level = protocol.LevelPAdESBaselineB
	c.Signature.Packaging = protocol.PackagingEnveloped
	c.Signature.TrustAnchorBPPolicy = true
	return &c
}

// LoadEnvFiles loads the given .env files, skipping the ones that do not
// exist. Variables already set in the process environment win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("no se pudo cargar %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the SIGNPDF_* environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path = strings.TrimSpace(path); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("no se pudo leer la configuracion: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("configuracion YAML invalida en %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s invalido: %w", name, err)
		}
		*dst = d
		return nil
	}

	str("SIGNPDF_APPLICATION_ID", &c.CMD.ApplicationID)
	str("SIGNPDF_CMD_ENDPOINT", &c.CMD.Endpoint)
	str("SIGNPDF_DSS_URL", &c.DSS.BaseURL)
	str("SIGNPDF_LOG_DIR", &c.Log.Dir)
	if v, ok := lookup("SIGNPDF_CMD_ENV"); ok && strings.TrimSpace(v) != "" {
		env, err := ParseEnvironment(v)
		if err != nil {
			return err
		}
		c.CMD.Environment = env
	}
	if err := dur("SIGNPDF_CMD_TIMEOUT", &c.CMD.Timeout); err != nil {
		return err
	}
	return dur("SIGNPDF_DSS_TIMEOUT", &c.DSS.Timeout)
}

// parseDuration accepts Go durations ("15s") and bare seconds ("15").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// CMDEndpoint returns the SOAP URL in use.
func (c *Config) CMDEndpoint() string {
	if ep := strings.TrimSpace(c.CMD.Endpoint); ep != "" {
		return ep
	}
	return c.CMD.Environment.Endpoint()
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CMD.ApplicationID) == "" {
		errs = append(errs, errors.New("falta cmd.application_id (o SIGNPDF_APPLICATION_ID)"))
	}
	if err := validateURL("dss.base_url", c.DSS.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("cmd.endpoint", c.CMDEndpoint()); err != nil {
		errs = append(errs, err)
	}
	if c.CMD.Timeout <= 0 || c.DSS.Timeout <= 0 {
		errs = append(errs, errors.New("los timeouts deben ser positivos"))
	}
	switch strings.ToUpper(c.Signature.DigestAlgorithm) {
	case protocol.DigestSHA256, protocol.DigestSHA384, protocol.DigestSHA512:
	default:
		errs = append(errs, fmt.Errorf("algoritmo de resumen no soportado: %q", c.Signature.DigestAlgorithm))
	}
	if strings.TrimSpace(c.Signature.Level) == "" || strings.TrimSpace(c.Signature.Packaging) == "" {
		errs = append(errs, errors.New("signature.level y signature.packaging son obligatorios"))
	}
	return errors.Join(errs...)
}

func validateURL(name, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%s no es una URL valida: %q", name, raw)
	}
	return nil
}
