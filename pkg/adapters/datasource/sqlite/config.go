package sqlite

import "fmt"

// Config contains SQLite-specific connection options.
type Config struct {
	Path     string // Database file path
	ReadOnly bool   // Open the file with mode=ro
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else if database, ok := config["database"].(string); ok && database != "" {
		cfg.Path = database
	} else {
		return nil, fmt.Errorf("path is required")
	}

	if ro, ok := config["read_only"].(bool); ok {
		cfg.ReadOnly = ro
	}

	return cfg, nil
}

// dsn builds the modernc.org/sqlite data source name.
func (c *Config) dsn() string {
	dsn := "file:" + c.Path + "?_pragma=foreign_keys(1)"
	if c.ReadOnly {
		dsn += "&mode=ro"
	}
	return dsn
}
