package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/logging"
	"github.com/ekaya-inc/sqlgate/pkg/retry"
)

// GuardedGenerator retries transient generator failures with backoff and
// fails fast through a circuit breaker once the provider looks down.
type GuardedGenerator struct {
	next     Generator
	breaker  *CircuitBreaker
	retryCfg retry.Config
	logger   *zap.Logger
}

// Guard wraps next. A nil breaker or retry config gets the defaults.
func Guard(next Generator, breaker *CircuitBreaker, retryCfg *retry.Config, logger *zap.Logger) *GuardedGenerator {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	if retryCfg == nil {
		retryCfg = retry.GeneratorConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardedGenerator{
		next:     next,
		breaker:  breaker,
		retryCfg: *retryCfg,
		logger:   logger.Named("llm"),
	}
}

// Generate calls the wrapped generator. Errors are always *Error.
func (g *GuardedGenerator) Generate(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error) {
	cfg := g.retryCfg
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.logger.Warn("Retrying LLM request", append(contextFields(ctx),
			zap.Int("failed_attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))...)
	}

	result, err := retry.DoIfRetryableWithResult(ctx, &cfg, func() (*GenerateResult, error) {
		if ok, err := g.breaker.Allow(); !ok {
			return nil, NewErrorWithContext(ErrorTypeUnavailable, "generator unavailable", false, err, g.next.Model(), "", 0)
		}

		res, err := g.next.Generate(ctx, systemPrompt, messages)
		switch {
		case err == nil:
			g.breaker.RecordSuccess()
		case IsRetryable(err):
			g.breaker.RecordFailure()
		default:
			// The provider answered; a bad request or auth failure says nothing about its health.
			g.breaker.RecordSuccess()
		}
		return res, err
	})
	if err != nil {
		return nil, ClassifyError(err)
	}
	return result, nil
}

// Model returns the wrapped generator's model name.
func (g *GuardedGenerator) Model() string {
	return g.next.Model()
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedGenerator) Breaker() *CircuitBreaker {
	return g.breaker
}
