package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for sqlgate.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// PromptsFile overrides the embedded prompt templates. Empty uses the defaults.
	PromptsFile string `yaml:"prompts_file" env:"PROMPTS_FILE" env-default:""`

	Datasource   DatasourceConfig   `yaml:"datasource"`
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	MCP          MCPConfig          `yaml:"mcp"`
}

// DatasourceConfig describes the single database questions are answered from.
type DatasourceConfig struct {
	// Type is a registered adapter: postgres, mssql, mysql or sqlite.
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 uses the adapter default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	Schema   string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
	// Path is the database file for sqlite.
	Path     string `yaml:"path" env:"DATASOURCE_PATH" env-default:""`
	ReadOnly bool   `yaml:"read_only" env:"DATASOURCE_READ_ONLY"` // default true, see newConfig
}

// LLMConfig selects and tunes the SQL generator.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint        string        `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model           string        `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey          string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature     float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
	DisableThinking bool          `yaml:"disable_thinking" env:"LLM_DISABLE_THINKING" env-default:"false"`
}

// OrchestratorConfig bounds the per-request retry loop.
// Defaults are set in newConfig.
type OrchestratorConfig struct {
	MaxRetries    int `yaml:"max_retries" env:"ORCHESTRATOR_MAX_RETRIES"`
	MaxResultRows int `yaml:"max_result_rows" env:"ORCHESTRATOR_MAX_RESULT_ROWS"`
	// DriftCheck re-introspects the schema on every request. When false the
	// startup fingerprint is trusted.
	DriftCheck bool `yaml:"drift_check" env:"ORCHESTRATOR_DRIFT_CHECK"`
}

// MCPConfig controls the MCP endpoint. Enabled defaults to true.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED"`
}

// newConfig holds the defaults of settings whose zero value is a valid
// choice. cleanenv applies env-default to every zero-valued field after
// reading YAML, so those tags would overwrite an explicit false or 0.
func newConfig(version string) *Config {
	return &Config{
		Version:    version,
		Datasource: DatasourceConfig{ReadOnly: true},
		Orchestrator: OrchestratorConfig{
			MaxRetries:    3,
			MaxResultRows: 1000,
			DriftCheck:    true,
		},
		MCP: MCPConfig{Enabled: true},
	}
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; configuration then comes from the
// environment alone. Secrets (DATASOURCE_PASSWORD, LLM_API_KEY) must come
// from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path, version string) (*Config, error) {
	cfg := newConfig(version)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validate() error {
	if c.Orchestrator.MaxRetries < 1 {
		return fmt.Errorf("orchestrator.max_retries must be at least 1")
	}
	if c.Orchestrator.MaxResultRows < 1 {
		return fmt.Errorf("orchestrator.max_result_rows must be at least 1")
	}
	if c.Datasource.Type == "sqlite" && c.Datasource.Path == "" && c.Datasource.Database == "" {
		return fmt.Errorf("datasource.path is required for sqlite")
	}
	return nil
}

// TLSEnabled reports whether the server should listen with HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}

// ToMap converts the datasource settings into the generic config map the
// adapter registry understands. Local hosts are rewritten when running in
// Docker.
func (d *DatasourceConfig) ToMap() map[string]any {
	m := map[string]any{
		"host":      ResolveHostForDocker(d.Host),
		"user":      d.User,
		"password":  d.Password,
		"database":  d.Database,
		"ssl_mode":  d.SSLMode,
		"read_only": d.ReadOnly,
	}
	if d.Port > 0 {
		m["port"] = d.Port
	}
	if d.Schema != "" {
		m["schema"] = d.Schema
	}
	if d.Path != "" {
		m["path"] = d.Path
	}
	return m
}
