package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/sqlgate/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/sqlgate/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/sqlgate/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/sqlgate/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/sqlgate/pkg/config"
	"github.com/ekaya-inc/sqlgate/pkg/handlers"
	"github.com/ekaya-inc/sqlgate/pkg/llm"
	"github.com/ekaya-inc/sqlgate/pkg/logging"
	"github.com/ekaya-inc/sqlgate/pkg/mcp"
	"github.com/ekaya-inc/sqlgate/pkg/orchestrator"
	"github.com/ekaya-inc/sqlgate/pkg/prompts"
	"github.com/ekaya-inc/sqlgate/pkg/retry"
	"github.com/ekaya-inc/sqlgate/pkg/schema"
	sqlutil "github.com/ekaya-inc/sqlgate/pkg/sql"
	"github.com/ekaya-inc/sqlgate/pkg/validation"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsType := cfg.Datasource.Type
	dsConfig := cfg.Datasource.ToMap()

	dialect, err := sqlutil.DialectFor(dsType)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("datasource", dsType),
		zap.String("dialect", string(dialect)),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Int("max_retries", cfg.Orchestrator.MaxRetries),
		zap.Int("max_result_rows", cfg.Orchestrator.MaxResultRows),
		zap.Bool("drift_check", cfg.Orchestrator.DriftCheck))

	openDiscoverer := func(ctx context.Context) (datasource.SchemaDiscoverer, error) {
		return datasource.NewSchemaDiscoverer(ctx, dsType, dsConfig, logger)
	}

	// The database may still be starting; only transient failures are retried.
	catalog, err := retry.DoIfRetryableWithResult(ctx, retry.DefaultConfig(), func() (*schema.Catalog, error) {
		d, err := openDiscoverer(ctx)
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return schema.Load(ctx, d, logger)
	})
	if err != nil {
		return fmt.Errorf("load schema catalog: %w", err)
	}

	executor, err := datasource.NewQueryExecutor(ctx, dsType, dsConfig, logger)
	if err != nil {
		return fmt.Errorf("create query executor: %w", err)
	}
	defer executor.Close()

	generator, err := llm.NewGenerator(&llm.Config{
		Provider:        cfg.LLM.Provider,
		Endpoint:        cfg.LLM.Endpoint,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		DisableThinking: cfg.LLM.DisableThinking,
	}, logger)
	if err != nil {
		return err
	}

	promptSet, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return err
	}

	var fingerprinter schema.Fingerprinter
	if cfg.Orchestrator.DriftCheck {
		fingerprinter = schema.NewLiveFingerprinter(openDiscoverer, logger)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Generator:     generator,
		Validator:     validation.New(catalog, dialect, logger),
		Executor:      executor,
		Catalog:       catalog,
		Fingerprinter: fingerprinter,
		Prompts:       promptSet,
		Dialect:       dialect,
	}, orchestrator.Config{
		MaxRetries:    cfg.Orchestrator.MaxRetries,
		MaxResultRows: cfg.Orchestrator.MaxResultRows,
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, orch, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(orch, logger).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewQueryServer(cfg.Version, orch, logger)
		mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting sqlgate",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSEnabled()),
			zap.Bool("mcp", cfg.MCP.Enabled))

		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
