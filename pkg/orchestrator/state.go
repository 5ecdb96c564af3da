package orchestrator

import "fmt"

// State is a node of the request state machine.
type State int

const (
	StateRoute State = iota
	StateGenerate
	StateValidate
	StateRepair
	StateExecute
	StateRespond
)

func (s State) String() string {
	switch s {
	case StateRoute:
		return "route"
	case StateGenerate:
		return "generate"
	case StateValidate:
		return "validate"
	case StateRepair:
		return "repair"
	case StateExecute:
		return "execute"
	case StateRespond:
		return "respond"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is the outcome of the work done in a state.
type Event int

const (
	// Route
	EventSQLRequired Event = iota
	EventNoSQLNeeded

	// Generate
	EventGenerated
	EventGenerateFailed
	EventSchemaDrift
	EventSchemaCheckFailed

	// Validate
	EventValid
	EventInvalidTerminal
	EventInvalidRetryable

	// Repair
	EventRepaired
	EventRepairFailed

	// Execute
	EventExecuted
	EventExecutionRetryable
	EventExecutionTerminal
	EventResultTooLarge
)

func (e Event) String() string {
	switch e {
	case EventSQLRequired:
		return "sql_required"
	case EventNoSQLNeeded:
		return "no_sql_needed"
	case EventGenerated:
		return "generated"
	case EventGenerateFailed:
		return "generate_failed"
	case EventSchemaDrift:
		return "schema_drift"
	case EventSchemaCheckFailed:
		return "schema_check_failed"
	case EventValid:
		return "valid"
	case EventInvalidTerminal:
		return "invalid_terminal"
	case EventInvalidRetryable:
		return "invalid_retryable"
	case EventRepaired:
		return "repaired"
	case EventRepairFailed:
		return "repair_failed"
	case EventExecuted:
		return "executed"
	case EventExecutionRetryable:
		return "execution_retryable"
	case EventExecutionTerminal:
		return "execution_terminal"
	case EventResultTooLarge:
		return "result_too_large"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Execution modes chosen by the router.
const (
	ModeSQLRequired    = "SQL_REQUIRED"
	ModeNonSQLResponse = "NON_SQL_RESPONSE"
)

// Termination reasons.
const (
	TerminationCompleted          = "completed"
	TerminationNonSQL             = "non_sql_request"
	TerminationSchemaDrift        = "schema_drift_detected"
	TerminationSchemaCheckFailed  = "schema_check_failed"
	TerminationGenerationFailed   = "generation_failed"
	TerminationTerminalSQLError   = "terminal_sql_error"
	TerminationRetryExhausted     = "retry_exhausted"
	TerminationResultSizeExceeded = "result_size_exceeded"
	TerminationExecutionFailed    = "execution_failed"
	TerminationStepLimit          = "step_limit_exceeded"
)

// Error types recorded in RetryState.LastErrorType.
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeExecution   = "execution_error"
	ErrorTypeGenerator   = "generator_error"
	ErrorTypeSchemaDrift = "schema_drift"
	ErrorTypeSchemaCheck = "schema_check_error"
	ErrorTypeResultSize  = "result_size_exceeded"
)

// RetryReasonRetryable is recorded when budget is spent on a fixable SQL error.
const RetryReasonRetryable = "retryable_sql_error"

const (
	DefaultMaxRetries    = 3
	DefaultMaxResultRows = 1000
)

// RetryState is the per-request record the state machine reads and
// updates. It is owned by exactly one request and never shared.
type RetryState struct {
	RetryCount        int    `json:"retry_count"`
	MaxRetries        int    `json:"max_retries"`
	RetryReason       string `json:"retry_reason,omitempty"`
	LastErrorType     string `json:"last_error_type,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
	TerminationReason string `json:"termination_reason,omitempty"`
	ExecutionMode     string `json:"execution_mode,omitempty"`
	RepairAttempted   bool   `json:"repair_attempted"`
}

// NewRetryState returns a fresh record. maxRetries <= 0 uses DefaultMaxRetries.
func NewRetryState(maxRetries int) RetryState {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return RetryState{MaxRetries: maxRetries}
}

// Transition returns the next state and the updated record. It performs no
// I/O; the caller fills LastErrorMessage. Events that do not belong to the
// current state, and any event in Respond, leave the machine in Respond.
func Transition(s State, ev Event, rs RetryState) (State, RetryState) {
	switch s {
	case StateRoute:
		switch ev {
		case EventSQLRequired:
			rs.ExecutionMode = ModeSQLRequired
			return StateGenerate, rs
		case EventNoSQLNeeded:
			rs.ExecutionMode = ModeNonSQLResponse
			rs.TerminationReason = TerminationNonSQL
			return StateRespond, rs
		}

	case StateGenerate:
		switch ev {
		case EventGenerated:
			return StateValidate, rs
		case EventSchemaDrift:
			rs.LastErrorType = ErrorTypeSchemaDrift
			rs.TerminationReason = TerminationSchemaDrift
			return StateRespond, rs
		case EventSchemaCheckFailed:
			rs.LastErrorType = ErrorTypeSchemaCheck
			rs.TerminationReason = TerminationSchemaCheckFailed
			return StateRespond, rs
		case EventGenerateFailed:
			rs.LastErrorType = ErrorTypeGenerator
			rs.TerminationReason = TerminationGenerationFailed
			return StateRespond, rs
		}

	case StateValidate:
		switch ev {
		case EventValid:
			return StateExecute, rs
		case EventInvalidTerminal:
			rs.LastErrorType = ErrorTypeValidation
			rs.TerminationReason = TerminationTerminalSQLError
			return StateRespond, rs
		case EventInvalidRetryable:
			rs.LastErrorType = ErrorTypeValidation
			return retryOrRespond(rs)
		}

	case StateRepair:
		switch ev {
		case EventRepaired:
			return StateValidate, rs
		case EventRepairFailed:
			// Losing the repair attempt is not fatal; the budget was
			// already charged when Repair was entered.
			return StateGenerate, rs
		}

	case StateExecute:
		switch ev {
		case EventExecuted:
			rs.TerminationReason = TerminationCompleted
			return StateRespond, rs
		case EventResultTooLarge:
			rs.LastErrorType = ErrorTypeResultSize
			rs.TerminationReason = TerminationResultSizeExceeded
			return StateRespond, rs
		case EventExecutionTerminal:
			rs.LastErrorType = ErrorTypeExecution
			rs.TerminationReason = TerminationExecutionFailed
			return StateRespond, rs
		case EventExecutionRetryable:
			rs.LastErrorType = ErrorTypeExecution
			return retryOrRespond(rs)
		}

	case StateRespond:
		return StateRespond, rs
	}

	if rs.TerminationReason == "" {
		rs.TerminationReason = fmt.Sprintf("unexpected_event_%s_in_%s", ev, s)
	}
	return StateRespond, rs
}

// retryOrRespond spends one unit of retry budget. The first retry of a
// request goes through Repair; later ones regenerate from scratch.
func retryOrRespond(rs RetryState) (State, RetryState) {
	if rs.RetryCount >= rs.MaxRetries {
		rs.TerminationReason = TerminationRetryExhausted
		return StateRespond, rs
	}
	rs.RetryCount++
	rs.RetryReason = RetryReasonRetryable
	if !rs.RepairAttempted {
		rs.RepairAttempted = true
		return StateRepair, rs
	}
	return StateGenerate, rs
}

// MaxSteps bounds the number of transitions a request may take. Each retry
// costs at most Repair, Validate, Generate and Validate again.
func MaxSteps(maxRetries int) int {
	return 4*maxRetries + 8
}
