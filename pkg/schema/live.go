package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// Fingerprinter returns the current fingerprint of the datasource schema.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// StaticFingerprinter always reports the fingerprint it was created with.
// Used when live drift checks are disabled.
type StaticFingerprinter string

// Fingerprint returns the stored value.
func (s StaticFingerprinter) Fingerprint(context.Context) (string, error) {
	return string(s), nil
}

// DiscovererFactory opens a fresh schema discoverer for each check.
type DiscovererFactory func(ctx context.Context) (datasource.SchemaDiscoverer, error)

// LiveFingerprinter re-introspects the datasource into a new immutable
// Catalog on every call and returns its fingerprint. The startup catalog is
// never touched, so concurrent requests compare against a stable value.
type LiveFingerprinter struct {
	open   DiscovererFactory
	logger *zap.Logger
}

// NewLiveFingerprinter creates a LiveFingerprinter.
func NewLiveFingerprinter(open DiscovererFactory, logger *zap.Logger) *LiveFingerprinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveFingerprinter{open: open, logger: logger.Named("schema-drift")}
}

// Fingerprint loads a fresh catalog and returns its fingerprint.
func (l *LiveFingerprinter) Fingerprint(ctx context.Context) (string, error) {
	d, err := l.open(ctx)
	if err != nil {
		return "", fmt.Errorf("open schema discoverer: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			l.logger.Warn("Failed to close schema discoverer", zap.Error(err))
		}
	}()

	c, err := Load(ctx, d, zap.NewNop())
	if err != nil {
		return "", err
	}
	return c.Fingerprint(), nil
}
