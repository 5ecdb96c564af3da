package orchestrator

import (
	"github.com/ekaya-inc/sqlgate/pkg/llm"
	"github.com/ekaya-inc/sqlgate/pkg/retry"
	sqlutil "github.com/ekaya-inc/sqlgate/pkg/sql"
)

// CheckResult is the verdict on a caller-supplied SQL string.
type CheckResult struct {
	Valid  bool   `json:"valid"`
	SQL    string `json:"sql"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
	// Class is empty when Valid.
	Class retry.Class `json:"class,omitempty"`
}

// Check runs the static gates over sqlQuery without generating or executing
// anything. Input is normalized the same way generator output is.
func (o *Orchestrator) Check(sqlQuery string) CheckResult {
	normalized := sqlutil.NormalizeGeneratedSQL(sqlQuery)
	res := o.validator.Validate(normalized)
	if res.Valid {
		return CheckResult{Valid: true, SQL: res.SQL}
	}
	return CheckResult{
		SQL:    normalized,
		Reason: res.Reason,
		Detail: res.Detail,
		Class:  retry.Classify(res.Message()),
	}
}

// Status describes the running service for health endpoints.
type Status struct {
	SchemaFingerprint string `json:"schema_fingerprint"`
	Tables            int    `json:"tables"`
	Model             string `json:"model"`
	Dialect           string `json:"dialect,omitempty"`
	// Generator is the circuit breaker state when the generator has one.
	Generator     string `json:"generator,omitempty"`
	MaxRetries    int    `json:"max_retries"`
	MaxResultRows int    `json:"max_result_rows"`
}

// Healthy reports whether the generator is accepting requests.
func (s Status) Healthy() bool {
	return s.Generator != llm.CircuitOpen.String()
}

// Status returns a snapshot for health checks.
func (o *Orchestrator) Status() Status {
	s := Status{
		SchemaFingerprint: o.startupFingerprint,
		Tables:            o.tables,
		Model:             o.generator.Model(),
		Dialect:           string(o.dialect),
		MaxRetries:        o.maxRetries,
		MaxResultRows:     o.maxResultRows,
	}
	if b, ok := o.generator.(interface{ Breaker() *llm.CircuitBreaker }); ok && b.Breaker() != nil {
		s.Generator = b.Breaker().State().String()
	}
	return s
}
