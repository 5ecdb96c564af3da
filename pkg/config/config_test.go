package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes yamlContent to config.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	configPath := writeConfig(t, `
port: "3443"
env: "test"
datasource:
  type: "postgres"
  host: "db.example.com"
  port: 5432
  user: "reader"
  database: "chinook"
llm:
  model: "qwen3"
`)
	chdir(t, filepath.Dir(configPath))

	os.Unsetenv("DATASOURCE_HOST")

	// Set env vars to override YAML values
	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LLM_MODEL", "gpt-4o")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected LLM.Model=gpt-4o (from env), got %s", cfg.LLM.Model)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}

	// Verify YAML value used for datasource host (proves YAML was read)
	if cfg.Datasource.Host != "db.example.com" {
		t.Errorf("expected Datasource.Host=db.example.com (from yaml), got %s", cfg.Datasource.Host)
	}
}

func TestLoad_MissingConfigFileUsesEnvironment(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("DATASOURCE_TYPE", "sqlite")
	t.Setenv("DATASOURCE_PATH", "/data/chinook.db")
	t.Setenv("LLM_PROVIDER", "anthropic")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() without config.yaml failed: %v", err)
	}

	if cfg.Datasource.Type != "sqlite" {
		t.Errorf("expected Datasource.Type=sqlite, got %s", cfg.Datasource.Type)
	}
	if cfg.Datasource.Path != "/data/chinook.db" {
		t.Errorf("expected Datasource.Path from env, got %s", cfg.Datasource.Path)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected LLM.Provider=anthropic, got %s", cfg.LLM.Provider)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
env: "test"
`)

	for _, key := range []string{
		"PORT", "BIND_ADDR", "LOG_LEVEL", "DATASOURCE_TYPE", "DATASOURCE_HOST", "DATASOURCE_PORT",
		"LLM_PROVIDER", "LLM_TIMEOUT", "LLM_MAX_TOKENS",
		"ORCHESTRATOR_MAX_RETRIES", "ORCHESTRATOR_MAX_RESULT_ROWS", "ORCHESTRATOR_DRIFT_CHECK", "MCP_ENABLED",
	} {
		os.Unsetenv(key)
	}

	cfg, err := LoadFile(configPath, "v1")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:3443" {
		t.Errorf("expected Addr=127.0.0.1:3443, got %s", cfg.Addr())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Datasource.Type != "postgres" {
		t.Errorf("expected Datasource.Type=postgres, got %s", cfg.Datasource.Type)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected LLM.Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("expected LLM.Timeout=60s, got %s", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("expected LLM.MaxTokens=1024, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Orchestrator.MaxRetries != 3 {
		t.Errorf("expected Orchestrator.MaxRetries=3, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.MaxResultRows != 1000 {
		t.Errorf("expected Orchestrator.MaxResultRows=1000, got %d", cfg.Orchestrator.MaxResultRows)
	}
	if !cfg.Orchestrator.DriftCheck {
		t.Error("expected Orchestrator.DriftCheck=true by default")
	}
	if !cfg.MCP.Enabled {
		t.Error("expected MCP.Enabled=true by default")
	}
	if cfg.TLSEnabled() {
		t.Error("expected TLS disabled when no cert/key configured")
	}
}

func TestLoad_OrchestratorFromYAML(t *testing.T) {
	configPath := writeConfig(t, `
orchestrator:
  max_retries: 5
  max_result_rows: 200
  drift_check: false
`)
	os.Unsetenv("ORCHESTRATOR_MAX_RETRIES")
	os.Unsetenv("ORCHESTRATOR_MAX_RESULT_ROWS")
	os.Unsetenv("ORCHESTRATOR_DRIFT_CHECK")

	cfg, err := LoadFile(configPath, "v1")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Orchestrator.MaxRetries != 5 {
		t.Errorf("expected MaxRetries=5, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.MaxResultRows != 200 {
		t.Errorf("expected MaxResultRows=200, got %d", cfg.Orchestrator.MaxResultRows)
	}
	if cfg.Orchestrator.DriftCheck {
		t.Error("expected DriftCheck=false from yaml")
	}
}

func TestLoad_ExplicitFalseFromYAML(t *testing.T) {
	configPath := writeConfig(t, `
datasource:
  read_only: false
mcp:
  enabled: false
`)
	os.Unsetenv("DATASOURCE_READ_ONLY")
	os.Unsetenv("MCP_ENABLED")

	cfg, err := LoadFile(configPath, "v1")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Datasource.ReadOnly {
		t.Error("expected Datasource.ReadOnly=false from yaml")
	}
	if cfg.MCP.Enabled {
		t.Error("expected MCP.Enabled=false from yaml")
	}
	if !cfg.Orchestrator.DriftCheck {
		t.Error("expected Orchestrator.DriftCheck to keep its default")
	}
}

func TestLoad_EnvDisablesDriftCheck(t *testing.T) {
	configPath := writeConfig(t, `
orchestrator:
  drift_check: true
`)
	t.Setenv("ORCHESTRATOR_DRIFT_CHECK", "false")
	t.Setenv("ORCHESTRATOR_MAX_RESULT_ROWS", "50")

	cfg, err := LoadFile(configPath, "v1")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Orchestrator.DriftCheck {
		t.Error("expected DriftCheck=false from env")
	}
	if cfg.Orchestrator.MaxResultRows != 50 {
		t.Errorf("expected MaxResultRows=50 from env, got %d", cfg.Orchestrator.MaxResultRows)
	}
}

func TestLoad_SecretsOnlyFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
datasource:
  password: "from-yaml"
llm:
  api_key: "from-yaml"
`)
	t.Setenv("DATASOURCE_PASSWORD", "from-env")
	t.Setenv("LLM_API_KEY", "sk-env")

	cfg, err := LoadFile(configPath, "v1")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Datasource.Password != "from-env" {
		t.Errorf("expected password from env, got %q", cfg.Datasource.Password)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_InvalidOrchestratorConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"negative retries", "orchestrator:\n  max_retries: -1\n", "max_retries"},
		{"zero retries", "orchestrator:\n  max_retries: 0\n", "max_retries"},
		{"zero rows", "orchestrator:\n  max_result_rows: 0\n", "max_result_rows"},
		{"sqlite without path", "datasource:\n  type: sqlite\n", "datasource.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("ORCHESTRATOR_MAX_RETRIES")
			os.Unsetenv("ORCHESTRATOR_MAX_RESULT_ROWS")
			os.Unsetenv("DATASOURCE_TYPE")
			os.Unsetenv("DATASOURCE_PATH")
			os.Unsetenv("DATASOURCE_DATABASE")

			_, err := LoadFile(writeConfig(t, tt.yaml), "v1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDatasourceConfig_ToMap(t *testing.T) {
	d := DatasourceConfig{
		Type:     "postgres",
		Host:     "db.example.com",
		Port:     5433,
		User:     "reader",
		Password: "secret",
		Database: "chinook",
		Schema:   "music",
		SSLMode:  "require",
		ReadOnly: true,
	}

	m := d.ToMap()

	expected := map[string]any{
		"host":      "db.example.com",
		"port":      5433,
		"user":      "reader",
		"password":  "secret",
		"database":  "chinook",
		"schema":    "music",
		"ssl_mode":  "require",
		"read_only": true,
	}
	for k, want := range expected {
		if m[k] != want {
			t.Errorf("ToMap()[%q] = %v, want %v", k, m[k], want)
		}
	}
	if _, ok := m["path"]; ok {
		t.Error("expected no path key when Path is empty")
	}
}

func TestDatasourceConfig_ToMapOmitsZeroPort(t *testing.T) {
	d := DatasourceConfig{Type: "sqlite", Path: "chinook.db"}
	m := d.ToMap()

	if _, ok := m["port"]; ok {
		t.Error("expected no port key when Port is 0")
	}
	if m["path"] != "chinook.db" {
		t.Errorf("expected path=chinook.db, got %v", m["path"])
	}
}

func TestValidateTLS_BothProvided(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "test-cert.pem")
	keyPath := filepath.Join(tmpDir, "test-key.pem")

	// Create dummy cert and key files
	if err := os.WriteFile(certPath, []byte("fake-cert-content"), 0644); err != nil {
		t.Fatalf("failed to write test cert: %v", err)
	}
	if err := os.WriteFile(keyPath, []byte("fake-key-content"), 0644); err != nil {
		t.Fatalf("failed to write test key: %v", err)
	}
	os.Unsetenv("TLS_CERT_PATH")
	os.Unsetenv("TLS_KEY_PATH")

	configPath := writeConfig(t, fmt.Sprintf(`
tls_cert_path: "%s"
tls_key_path: "%s"
`, certPath, keyPath))

	cfg, err := LoadFile(configPath, "test-version")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.TLSCertPath != certPath {
		t.Errorf("expected TLSCertPath=%s, got %s", certPath, cfg.TLSCertPath)
	}
	if cfg.TLSKeyPath != keyPath {
		t.Errorf("expected TLSKeyPath=%s, got %s", keyPath, cfg.TLSKeyPath)
	}
	if !cfg.TLSEnabled() {
		t.Error("expected TLSEnabled() with cert and key")
	}
}

func TestValidateTLS_OnlyOneProvided(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "test-cert.pem")
	if err := os.WriteFile(certPath, []byte("fake-cert-content"), 0644); err != nil {
		t.Fatalf("failed to write test cert: %v", err)
	}
	os.Unsetenv("TLS_CERT_PATH")
	os.Unsetenv("TLS_KEY_PATH")

	configPath := writeConfig(t, fmt.Sprintf("tls_cert_path: %q\n", certPath))

	_, err := LoadFile(configPath, "test-version")
	if err == nil {
		t.Fatal("expected error when only cert is provided")
	}
	if !strings.Contains(err.Error(), "both tls_cert_path and tls_key_path must be provided together") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidateTLS_CertFileNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "test-key.pem")
	if err := os.WriteFile(keyPath, []byte("fake-key-content"), 0644); err != nil {
		t.Fatalf("failed to write test key: %v", err)
	}
	os.Unsetenv("TLS_CERT_PATH")
	os.Unsetenv("TLS_KEY_PATH")

	configPath := writeConfig(t, fmt.Sprintf("tls_cert_path: %q\ntls_key_path: %q\n",
		filepath.Join(tmpDir, "missing.pem"), keyPath))

	_, err := LoadFile(configPath, "test-version")
	if err == nil {
		t.Fatal("expected error when cert file is missing")
	}
	if !strings.Contains(err.Error(), "TLS cert file does not exist") {
		t.Errorf("unexpected error message: %v", err)
	}
}
