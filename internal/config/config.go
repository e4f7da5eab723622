// Package config loads the service configuration.
//
// A YAML file is decoded over built-in defaults and the result is checked
// against an embedded CUE schema. Configuration is passed to constructors
// explicitly; nothing here is global.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/juliansprt/VeriFactu/internal/certs"
	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/soap"
)

//go:embed schema.cue
var schemaSource string

const (
	// DefaultEndpoint is the pre-production submission service.
	DefaultEndpoint = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	// DefaultValidateEndpoint is the pre-production QR validation page.
	DefaultValidateEndpoint = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"
)

// Config is the complete service configuration.
type Config struct {
	Database   string `yaml:"database" json:"database"`
	ArchiveDir string `yaml:"archive_dir" json:"archive_dir"`
	IDVersion  string `yaml:"id_version" json:"id_version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	// Listen is the HTTP API address used by serve.
	Listen string `yaml:"listen" json:"listen"`

	Endpoint         string `yaml:"endpoint" json:"endpoint"`
	ValidateEndpoint string `yaml:"validate_endpoint" json:"validate_endpoint"`

	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`

	RetryCount            int     `yaml:"retry_count" json:"retry_count"`
	RetryBaseDelaySeconds float64 `yaml:"retry_base_delay_seconds" json:"retry_base_delay_seconds"`
	JitterMilliseconds    int     `yaml:"jitter_milliseconds" json:"jitter_milliseconds"`

	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker" json:"circuit_breaker"`
	System         System         `yaml:"system" json:"system"`
	Companies      []Company      `yaml:"companies" json:"companies"`
}

// CircuitBreaker configures the breaker shared by all submissions.
type CircuitBreaker struct {
	FailureThreshold       int `yaml:"failure_threshold" json:"failure_threshold"`
	DurationOfBreakSeconds int `yaml:"duration_of_break_seconds" json:"duration_of_break_seconds"`
}

// System describes the invoicing software declared in every record.
type System struct {
	ProducerName       string `yaml:"producer_name" json:"producer_name"`
	ProducerID         string `yaml:"producer_id" json:"producer_id"`
	Name               string `yaml:"name" json:"name"`
	ID                 string `yaml:"id" json:"id"`
	Version            string `yaml:"version" json:"version"`
	InstallationNumber string `yaml:"installation_number" json:"installation_number"`
	VerifactuOnly      bool   `yaml:"verifactu_only" json:"verifactu_only"`
	MultiTaxpayer      bool   `yaml:"multi_taxpayer" json:"multi_taxpayer"`
	MultipleTaxpayers  bool   `yaml:"multiple_taxpayers" json:"multiple_taxpayers"`
}

// Company locates a company's client certificate. The password is read
// from the environment variable named by PasswordEnv.
type Company struct {
	ID          int    `yaml:"id" json:"id"`
	PFX         string `yaml:"pfx,omitempty" json:"pfx,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty"`
	CertFile    string `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile     string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:              "verifactu.db",
		ArchiveDir:            "archive",
		IDVersion:             "1.0",
		Timezone:              "Europe/Madrid",
		Listen:                ":8080",
		Endpoint:              DefaultEndpoint,
		ValidateEndpoint:      DefaultValidateEndpoint,
		HTTPTimeoutSeconds:    30,
		RetryCount:            3,
		RetryBaseDelaySeconds: 2,
		JitterMilliseconds:    100,
		CircuitBreaker: CircuitBreaker{
			FailureThreshold:       5,
			DurationOfBreakSeconds: 60,
		},
		System: System{
			Name:               "VeriFactu",
			ID:                 "01",
			Version:            "1.0.0",
			InstallationNumber: "1",
			MultiTaxpayer:      true,
			MultipleTaxpayers:  true,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the schema and cross-field rules.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[int]bool, len(c.Companies))
	for _, company := range c.Companies {
		if seen[company.ID] {
			return fmt.Errorf("invalid config: duplicate company id %d", company.ID)
		}
		seen[company.ID] = true

		if company.PFX == "" && (company.CertFile == "" || company.KeyFile == "") {
			return fmt.Errorf("invalid config: company %d needs pfx or cert_file and key_file", company.ID)
		}
	}
	return nil
}

// Resilience returns the submission policy settings.
func (c *Config) Resilience() resilience.Config {
	return resilience.Config{
		RetryCount:       c.RetryCount,
		RetryBaseDelay:   c.RetryBaseDelaySeconds,
		Jitter:           time.Duration(c.JitterMilliseconds) * time.Millisecond,
		FailureThreshold: c.CircuitBreaker.FailureThreshold,
		BreakDuration:    time.Duration(c.CircuitBreaker.DurationOfBreakSeconds) * time.Second,
		QueryTimeout:     c.HTTPTimeout(),
	}
}

// HTTPTimeout returns the per-request timeout of the transport.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Location returns the time zone chain timestamps are written in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SystemInfo returns the software description for the codec.
func (c *Config) SystemInfo() soap.SystemInfo {
	return soap.SystemInfo{
		ProducerName:       c.System.ProducerName,
		ProducerID:         c.System.ProducerID,
		Name:               c.System.Name,
		ID:                 c.System.ID,
		Version:            c.System.Version,
		InstallationNumber: c.System.InstallationNumber,
		VerifactuOnly:      c.System.VerifactuOnly,
		MultiTaxpayer:      c.System.MultiTaxpayer,
		MultipleTaxpayers:  c.System.MultipleTaxpayers,
	}
}

// Certificates resolves the certificate entries, reading passwords from
// the environment.
func (c *Config) Certificates() ([]certs.Entry, error) {
	entries := make([]certs.Entry, 0, len(c.Companies))
	for _, company := range c.Companies {
		entry := certs.Entry{
			CompanyID: company.ID,
			PFX:       company.PFX,
			CertFile:  company.CertFile,
			KeyFile:   company.KeyFile,
		}
		if company.PasswordEnv != "" {
			password, ok := os.LookupEnv(company.PasswordEnv)
			if !ok {
				return nil, fmt.Errorf("company %d: environment variable %s is not set", company.ID, company.PasswordEnv)
			}
			entry.Password = password
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
