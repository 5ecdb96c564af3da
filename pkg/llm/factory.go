package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/retry"
)

// NewProviderClient creates the unwrapped generator for cfg.Provider.
// An empty provider means OpenAI-compatible.
func NewProviderClient(cfg *Config, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// NewGenerator creates the generator for cfg.Provider wrapped in retry and
// circuit-breaker protection. Callers use this; NewProviderClient exists for
// tests and tools that want a single raw attempt.
func NewGenerator(cfg *Config, logger *zap.Logger) (*GuardedGenerator, error) {
	client, err := NewProviderClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", providerName(cfg.Provider), err)
	}
	return Guard(client, NewCircuitBreaker(DefaultCircuitBreakerConfig()), retry.GeneratorConfig(), logger), nil
}

func providerName(p string) string {
	if p == "" {
		return ProviderOpenAI
	}
	return p
}
