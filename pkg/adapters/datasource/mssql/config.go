package mssql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/sqlgate/pkg/config"
)

// AuthMethod selects how sqlgate signs in to SQL Server.
type AuthMethod string

const (
	// AuthSQL is SQL Server authentication with a login and password.
	AuthSQL AuthMethod = "sql"
	// AuthServicePrincipal is Entra ID (Azure AD) client-credential sign-in.
	AuthServicePrincipal AuthMethod = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	// Schema whose tables make up the catalog.
	Schema string

	AuthMethod AuthMethod
	User       string
	Password   string

	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	// ConnectionTimeout is in seconds.
	ConnectionTimeout int
	// ReadOnlyIntent sends ApplicationIntent=ReadOnly, which routes
	// availability-group connections to a readable secondary.
	ReadOnlyIntent bool
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultSchema returns the schema used when none is configured.
func DefaultSchema() string {
	return "dbo"
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// appName identifies sqlgate sessions in sys.dm_exec_sessions.
const appName = "sqlgate"

// FromMap creates a Config from a datasource config map. The auth method is
// inferred from the credentials present unless auth_method is set.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Schema:            DefaultSchema(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
		ReadOnlyIntent:    true,
	}

	cfg.Host = stringOpt(m, "host")
	cfg.Database = stringOpt(m, "database", "name")
	cfg.User = stringOpt(m, "user", "username")
	cfg.Password = stringOpt(m, "password")
	cfg.TenantID = stringOpt(m, "tenant_id")
	cfg.ClientID = stringOpt(m, "client_id")
	cfg.ClientSecret = stringOpt(m, "client_secret")

	if schema := stringOpt(m, "schema"); schema != "" {
		cfg.Schema = schema
	}
	if port, ok := intOpt(m, "port"); ok {
		cfg.Port = port
	}
	if timeout, ok := intOpt(m, "connection_timeout"); ok {
		cfg.ConnectionTimeout = timeout
	}
	if encrypt, ok := boolOpt(m, "encrypt"); ok {
		cfg.Encrypt = encrypt
	}
	if trust, ok := boolOpt(m, "trust_server_certificate"); ok {
		cfg.TrustServerCertificate = trust
	}
	if intent, ok := boolOpt(m, "read_only_intent"); ok {
		cfg.ReadOnlyIntent = intent
	}

	switch method := stringOpt(m, "auth_method"); {
	case method != "":
		cfg.AuthMethod = AuthMethod(method)
	case cfg.ClientID != "":
		cfg.AuthMethod = AuthServicePrincipal
	case cfg.User != "":
		cfg.AuthMethod = AuthSQL
	default:
		if cfg.Host != "" && cfg.Database != "" {
			return nil, fmt.Errorf("could not auto-detect auth method; no credentials provided")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the fields the auth method needs are present.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.User == "" {
			return fmt.Errorf("user is required for SQL authentication")
		}
	case AuthServicePrincipal:
		for _, f := range []struct{ name, value string }{
			{"tenant_id", c.TenantID},
			{"client_id", c.ClientID},
			{"client_secret", c.ClientSecret},
		} {
			if f.value == "" {
				return fmt.Errorf("%s is required for service principal authentication", f.name)
			}
		}
	default:
		return fmt.Errorf("invalid auth method: %q (must be sql or service_principal)", c.AuthMethod)
	}
	return nil
}

// driverName is the database/sql driver registered for the auth method.
func (c *Config) driverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// connString renders the sqlserver:// URL go-mssqldb expects. Service
// principal credentials travel as query parameters with fedauth set.
func (c *Config) connString() string {
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", strconv.FormatBool(c.Encrypt))
	q.Set("app name", appName)
	if c.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		q.Set("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}
	if c.ReadOnlyIntent {
		q.Set("ApplicationIntent", "ReadOnly")
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
	}
	switch c.AuthMethod {
	case AuthServicePrincipal:
		q.Set("fedauth", "ActiveDirectoryServicePrincipal")
		q.Set("user id", c.ClientID)
		q.Set("password", c.ClientSecret)
		q.Set("tenant id", c.TenantID)
	default:
		u.User = url.UserPassword(c.User, c.Password)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// stringOpt returns the first non-empty string among keys.
func stringOpt(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intOpt accepts YAML ints and JSON float64 numbers.
func intOpt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// boolOpt accepts booleans and the strings go-mssqldb uses for encrypt.
func boolOpt(m map[string]any, key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		switch v {
		case "true", "strict":
			return true, true
		case "false", "disable":
			return false, true
		}
	}
	return false, false
}
