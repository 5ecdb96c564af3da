// Package orchestrator drives one natural-language question through routing,
// SQL generation, static validation, a single repair attempt, bounded
// regeneration, and execution.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
	"github.com/ekaya-inc/sqlgate/pkg/llm"
	"github.com/ekaya-inc/sqlgate/pkg/logging"
	"github.com/ekaya-inc/sqlgate/pkg/models"
	"github.com/ekaya-inc/sqlgate/pkg/prompts"
	"github.com/ekaya-inc/sqlgate/pkg/result"
	"github.com/ekaya-inc/sqlgate/pkg/retry"
	"github.com/ekaya-inc/sqlgate/pkg/schema"
	sqlutil "github.com/ekaya-inc/sqlgate/pkg/sql"
	"github.com/ekaya-inc/sqlgate/pkg/validation"
)

// ClarificationMessage is returned for questions the router keeps away from
// the database.
const ClarificationMessage = "I can answer questions about the data in this database. " +
	"Please ask about specific records, totals, rankings, or trends."

// Validator checks candidate SQL. *validation.Validator satisfies it.
type Validator interface {
	Validate(sqlQuery string) validation.Result
}

// Executor runs validated SQL. datasource.QueryExecutor satisfies it.
type Executor interface {
	Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Generator llm.Generator
	Validator Validator
	Executor  Executor
	Catalog   *schema.Catalog
	// Fingerprinter reports the live schema fingerprint. Nil compares the
	// catalog against itself, which disables drift detection.
	Fingerprinter schema.Fingerprinter
	// Prompts defaults to prompts.Default().
	Prompts *prompts.Set
	// Dialect is named in the system prompt. It should match the dialect
	// the Validator parses with.
	Dialect sqlutil.Dialect
}

// Config bounds the work done per request.
type Config struct {
	MaxRetries    int
	MaxResultRows int
}

// Outcome is everything Run learned about one request.
type Outcome struct {
	Success bool
	// SQL is the executed statement, or the last rejected candidate.
	SQL    string
	Result *models.QueryResult
	State  RetryState
	Steps  int
}

// Orchestrator is safe for concurrent use. Each Run owns its RetryState.
type Orchestrator struct {
	generator     llm.Generator
	validator     Validator
	executor      Executor
	fingerprinter schema.Fingerprinter
	prompts       *prompts.Set
	dialect       sqlutil.Dialect
	buildResult   func(sqlQuery string, columns []string, rows []map[string]any) (*models.QueryResult, error)

	startupFingerprint string
	schemaContext      string
	entities           []string
	tables             int

	maxRetries    int
	maxResultRows int
	logger        *zap.Logger
}

// New creates an Orchestrator. The schema context and router entities are
// derived from the catalog once, here.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("orchestrator: generator is required")
	case deps.Validator == nil:
		return nil, errors.New("orchestrator: validator is required")
	case deps.Executor == nil:
		return nil, errors.New("orchestrator: executor is required")
	case deps.Catalog == nil:
		return nil, errors.New("orchestrator: schema catalog is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Prompts == nil {
		deps.Prompts = prompts.Default()
	}
	startup := deps.Catalog.Fingerprint()
	if deps.Fingerprinter == nil {
		deps.Fingerprinter = schema.StaticFingerprinter(startup)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxResultRows <= 0 {
		cfg.MaxResultRows = DefaultMaxResultRows
	}

	return &Orchestrator{
		generator:          deps.Generator,
		validator:          deps.Validator,
		executor:           deps.Executor,
		fingerprinter:      deps.Fingerprinter,
		prompts:            deps.Prompts,
		dialect:            deps.Dialect,
		buildResult:        result.Build,
		startupFingerprint: startup,
		schemaContext:      schema.BuildContext(deps.Catalog),
		entities:           schema.Entities(deps.Catalog),
		tables:             len(deps.Catalog.TableNames()),
		maxRetries:         cfg.MaxRetries,
		maxResultRows:      cfg.MaxResultRows,
		logger:             logger.Named("orchestrator"),
	}, nil
}

// request is the per-request working set. It is never shared.
type request struct {
	id       string
	question string
	state    RetryState

	// sql is the current candidate; lastError is the reason it was rejected
	// and is fed back into the next generation.
	sql       string
	lastError string

	calls        int
	driftChecked bool
	rows         *datasource.QueryExecutionResult
}

// Run processes one question and always returns an Outcome. Failures are
// reported through Outcome.State and an error-typed Outcome.Result.
func (o *Orchestrator) Run(ctx context.Context, requestID, question string) *Outcome {
	req := &request{
		id:       requestID,
		question: question,
		state:    NewRetryState(o.maxRetries),
	}

	limit := MaxSteps(req.state.MaxRetries)
	cur := StateRoute
	steps := 0
	for cur != StateRespond {
		if steps >= limit {
			req.state.TerminationReason = TerminationStepLimit
			o.logger.Error("Request exceeded transition limit",
				zap.String("request_id", requestID),
				zap.Int("steps", steps),
				zap.String("state", cur.String()))
			break
		}

		ev := o.step(ctx, req, cur)
		next, rs := Transition(cur, ev, req.state)

		o.logger.Debug("State transition",
			zap.String("request_id", requestID),
			zap.String("from", cur.String()),
			zap.String("to", next.String()),
			zap.String("event", ev.String()),
			zap.Int("retry_count", rs.RetryCount))

		req.state = rs
		cur = next
		steps++
	}

	out := o.respond(req)
	out.Steps = steps

	o.logger.Info("Request finished",
		zap.String("request_id", requestID),
		zap.Bool("success", out.Success),
		zap.String("termination_reason", out.State.TerminationReason),
		zap.Int("retry_count", out.State.RetryCount),
		zap.Int("llm_calls", req.calls))

	return out
}

func (o *Orchestrator) step(ctx context.Context, req *request, s State) Event {
	switch s {
	case StateRoute:
		return o.route(req)
	case StateGenerate:
		return o.generate(ctx, req)
	case StateValidate:
		return o.validate(req)
	case StateRepair:
		return o.repair(ctx, req)
	case StateExecute:
		return o.execute(ctx, req)
	}
	// Transition sends unknown events to Respond.
	return Event(-1)
}

func (o *Orchestrator) route(req *request) Event {
	if RequiresSQL(req.question, o.entities) {
		return EventSQLRequired
	}
	return EventNoSQLNeeded
}

func (o *Orchestrator) generate(ctx context.Context, req *request) Event {
	if !req.driftChecked {
		req.driftChecked = true
		if ev, failed := o.checkDrift(ctx, req); failed {
			return ev
		}
	}

	system, err := o.prompts.SystemWithError(o.dialect.DisplayName(), o.schemaContext, req.lastError)
	if err != nil {
		req.state.LastErrorMessage = "generator failed: " + logging.SanitizeError(err)
		return EventGenerateFailed
	}

	content, err := o.callGenerator(ctx, req, llm.PhaseGenerate, system, req.question)
	if err != nil {
		req.state.LastErrorMessage = "generator failed: " + logging.SanitizeError(err)
		o.logger.Warn("SQL generation failed",
			zap.String("request_id", req.id),
			zap.String("error", logging.SanitizeError(err)))
		return EventGenerateFailed
	}

	req.sql = sqlutil.NormalizeGeneratedSQL(content)
	o.logger.Debug("SQL generated",
		zap.String("request_id", req.id),
		zap.Bool("with_error_context", req.lastError != ""),
		zap.String("sql", logging.SanitizeQuery(req.sql)))
	return EventGenerated
}

// checkDrift compares the live schema fingerprint with the startup one.
// It reports whether the request must stop, and with which event.
func (o *Orchestrator) checkDrift(ctx context.Context, req *request) (Event, bool) {
	live, err := o.fingerprinter.Fingerprint(ctx)
	if err != nil {
		req.state.LastErrorMessage = "schema check failed: " + logging.SanitizeError(err)
		o.logger.Error("Schema fingerprint check failed",
			zap.String("request_id", req.id),
			zap.String("error", logging.SanitizeError(err)))
		return EventSchemaCheckFailed, true
	}
	if live != o.startupFingerprint {
		req.state.LastErrorMessage = apperrors.ErrSchemaDrift.Error()
		o.logger.Error("Schema drift detected",
			zap.String("request_id", req.id),
			zap.String("startup_fingerprint", o.startupFingerprint),
			zap.String("live_fingerprint", live))
		return EventSchemaDrift, true
	}
	return 0, false
}

func (o *Orchestrator) validate(req *request) Event {
	res := o.validator.Validate(req.sql)
	if res.Valid {
		req.sql = res.SQL
		req.lastError = ""
		return EventValid
	}

	msg := res.Message()
	req.lastError = msg
	req.state.LastErrorMessage = logging.SanitizeMessage(msg)

	class := retry.Classify(msg)
	o.logger.Debug("Generated SQL rejected",
		zap.String("request_id", req.id),
		zap.String("reason", msg),
		zap.String("class", string(class)),
		zap.String("sql", logging.SanitizeQuery(req.sql)))

	if class == retry.Retryable {
		return EventInvalidRetryable
	}
	return EventInvalidTerminal
}

func (o *Orchestrator) repair(ctx context.Context, req *request) Event {
	system, err := o.prompts.System(o.dialect.DisplayName(), o.schemaContext)
	var prompt string
	if err == nil {
		prompt, err = o.prompts.Repair(req.question, req.sql, req.lastError)
	}
	if err == nil {
		var content string
		content, err = o.callGenerator(ctx, req, llm.PhaseRepair, system, prompt)
		if err == nil {
			req.sql = sqlutil.NormalizeGeneratedSQL(content)
			req.lastError = ""
			return EventRepaired
		}
	}

	o.logger.Warn("SQL repair failed, regenerating",
		zap.String("request_id", req.id),
		zap.String("error", logging.SanitizeError(err)))
	return EventRepairFailed
}

func (o *Orchestrator) execute(ctx context.Context, req *request) Event {
	rows, err := o.executor.Query(ctx, req.sql, o.maxResultRows)
	if err != nil {
		// The classifier and the next prompt see the driver's text. Clients
		// only ever see the redacted form.
		msg := err.Error()
		req.lastError = msg
		req.state.LastErrorMessage = logging.SanitizeError(err)

		class := retry.Classify(msg)
		o.logger.Warn("SQL execution failed",
			zap.String("request_id", req.id),
			zap.String("class", string(class)),
			zap.String("error", logging.SanitizeError(err)),
			zap.String("sql", logging.SanitizeQuery(req.sql)))

		if class == retry.Retryable {
			return EventExecutionRetryable
		}
		return EventExecutionTerminal
	}

	if rows.Truncated || rows.RowCount > o.maxResultRows {
		req.state.LastErrorMessage = fmt.Sprintf("%s: more than %d rows", apperrors.ErrResultSizeExceeded, o.maxResultRows)
		return EventResultTooLarge
	}

	req.rows = rows
	return EventExecuted
}

func (o *Orchestrator) callGenerator(ctx context.Context, req *request, phase, system, userContent string) (string, error) {
	req.calls++
	callCtx := llm.WithCallContext(ctx, req.id, phase, req.calls)

	res, err := o.generator.Generate(callCtx, system, []llm.Message{llm.UserMessage(userContent)})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (o *Orchestrator) respond(req *request) *Outcome {
	out := &Outcome{SQL: req.sql, State: req.state}

	switch req.state.TerminationReason {
	case TerminationCompleted:
		res, err := o.buildResult(req.sql, req.rows.ColumnNames(), req.rows.Rows)
		if err != nil {
			out.State.TerminationReason = TerminationExecutionFailed
			out.State.LastErrorType = ErrorTypeExecution
			out.State.LastErrorMessage = "format result: " + logging.SanitizeError(err)
			o.logger.Error("Result formatting failed",
				zap.String("request_id", req.id),
				zap.String("error", out.State.LastErrorMessage))
			out.Result = result.FormatError(out.State.LastErrorMessage)
			return out
		}
		out.Success = true
		out.Result = res
	case TerminationNonSQL:
		out.Success = true
		out.Result = result.Clarification(ClarificationMessage)
	default:
		out.Result = result.FormatError(req.state.LastErrorMessage)
	}
	return out
}
