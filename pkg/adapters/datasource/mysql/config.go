package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/sqlgate/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "", "true", "false", "skip-verify", "preferred"
	Timeout  time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Timeout: 10 * time.Second,
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if port, ok := config["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := config["port"].(int); ok {
		cfg.Port = port
	}

	if user, ok := config["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if tls, ok := config["tls"].(string); ok {
		cfg.TLS = tls
	}

	return cfg, nil
}

// DSN renders the go-sql-driver/mysql data source name.
// Times are parsed into time.Time so results serialize consistently.
func (c *Config) DSN() string {
	dc := driver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Timeout = c.Timeout
	if c.TLS != "" {
		dc.TLSConfig = c.TLS
	}
	return dc.FormatDSN()
}
