// Package validation decides whether generated SQL is safe and consistent
// with the schema catalog before it reaches the database.
package validation

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/logging"
	"github.com/ekaya-inc/sqlgate/pkg/models"
	"github.com/ekaya-inc/sqlgate/pkg/schema"
	sqlutil "github.com/ekaya-inc/sqlgate/pkg/sql"
)

// Rejection reasons. The retry classifier matches on these strings.
const (
	ReasonEmpty              = "empty query"
	ReasonStatementKind      = "only SELECT or WITH allowed"
	ReasonComments           = "comments not allowed"
	ReasonMultipleStatements = "multiple SQL statements not allowed"
	ReasonParse              = "failed to parse"
	ReasonNoSuchTable        = "no such table"
	ReasonNoSuchColumn       = "no such column"
	ReasonInjection          = "string literal resembles sql injection"
	ReasonUnanalyzableJoin   = "join condition cannot be analyzed"
	ReasonJoinForeignKey     = "join condition does not match schema foreign keys"
	ReasonJoinConnectivity   = "joins do not form a connected path"
	ReasonJoinFailure        = "failed to validate join conditions"
)

// Result is the outcome of validating one SQL string.
type Result struct {
	Valid bool `json:"valid"`
	// Reason is one of the Reason constants. Empty when Valid.
	Reason string `json:"reason,omitempty"`
	// Detail names the offending table, column or predicate, if any.
	Detail string `json:"detail,omitempty"`
	// SQL is the statement that passed validation, without a trailing semicolon.
	SQL string `json:"sql,omitempty"`
}

// Message renders the rejection as "reason" or "reason: detail".
func (r Result) Message() string {
	if r.Valid {
		return ""
	}
	if r.Detail == "" {
		return r.Reason
	}
	return r.Reason + ": " + r.Detail
}

func valid(sqlQuery string) Result {
	return Result{Valid: true, SQL: sqlQuery}
}

func invalid(reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

var joinToken = regexp.MustCompile(`(?i)\bjoin\b`)

// Catalog is the read-only schema view the gates consult.
// *schema.Catalog satisfies it.
type Catalog interface {
	HasTable(name string) bool
	Table(name string) (*models.Table, bool)
	MatchesForeignKey(p models.JoinPredicate) bool
	Graph() *schema.JoinGraph
}

// Validator runs the ordered static gates against one schema catalog.
// It never touches the database and is safe for concurrent use.
type Validator struct {
	catalog Catalog
	dialect sqlutil.Dialect
	logger  *zap.Logger
}

// New creates a Validator for the given catalog. Statements are parsed with
// the grammar of dialect, the database the catalog was read from.
func New(catalog Catalog, dialect sqlutil.Dialect, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		catalog: catalog,
		dialect: dialect,
		logger:  logger.Named("validator").With(zap.String("dialect", string(dialect))),
	}
}

// Validate runs the gates in order and returns the first failure:
//
//  1. empty input
//  2. statement must start with SELECT or WITH
//  3. no comments
//  4. a single statement (no semicolon outside quotes)
//  5. the parser for the validator's dialect accepts it
//  6. the parser sees exactly one read-only query
//  7. every table and qualified column exists in the catalog
//  8. no string literal looks like an injection payload
//  9. joins, when the text mentions JOIN: every condition is analyzable,
//     matches a foreign key in either direction, and the joined tables
//     are connected through foreign keys among themselves
func (v *Validator) Validate(sqlQuery string) Result {
	result := v.validate(sqlQuery)
	if !result.Valid {
		v.logger.Debug("SQL rejected",
			zap.String("reason", result.Reason),
			zap.String("detail", result.Detail),
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
		)
	}
	return result
}

func (v *Validator) validate(sqlQuery string) Result {
	normalized := strings.ToLower(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return invalid(ReasonEmpty, "")
	}

	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return invalid(ReasonStatementKind, "")
	}

	if strings.Contains(normalized, "--") || strings.Contains(normalized, "/*") {
		return invalid(ReasonComments, "")
	}

	single := sqlutil.ValidateAndNormalize(sqlQuery)
	if single.Error != nil {
		return invalid(ReasonMultipleStatements, "")
	}

	parsed, err := sqlutil.Parse(v.dialect, single.NormalizedSQL)
	if err != nil {
		return invalid(ReasonParse, "")
	}

	if !parsed.ReadOnly {
		return invalid(ReasonStatementKind, "")
	}

	if result := v.checkSchemaReferences(parsed); !result.Valid {
		return result
	}

	if hit := sqlutil.CheckLiteralsForInjection(parsed.StringLiterals); hit != nil {
		return invalid(ReasonInjection, hit.Fingerprint)
	}

	if joinToken.MatchString(normalized) {
		if result := v.checkJoins(parsed); !result.Valid {
			return result
		}
	}

	return valid(single.NormalizedSQL)
}

func (v *Validator) checkSchemaReferences(parsed *sqlutil.ParsedQuery) Result {
	for _, name := range parsed.Tables {
		if !v.catalog.HasTable(name) {
			return invalid(ReasonNoSuchTable, name)
		}
	}

	for _, ref := range parsed.ColumnRefs {
		if ref.Table == "" {
			continue
		}
		table, ok := v.catalog.Table(ref.Table)
		if !ok {
			return invalid(ReasonNoSuchTable, ref.Table)
		}
		if !table.HasColumn(ref.Column) {
			return invalid(ReasonNoSuchColumn, ref.Table+"."+ref.Column)
		}
	}

	return Result{Valid: true}
}

// checkJoins runs the join gates. A panic inside them is reported as a
// rejection so that validation never takes down the caller.
func (v *Validator) checkJoins(parsed *sqlutil.ParsedQuery) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Join validation panicked", zap.Any("panic", r))
			result = invalid(ReasonJoinFailure, "")
		}
	}()

	if len(parsed.UnanalyzableJoins) > 0 {
		return invalid(ReasonUnanalyzableJoin, parsed.UnanalyzableJoins[0])
	}

	for _, join := range parsed.Joins {
		if !v.catalog.MatchesForeignKey(join) {
			return invalid(ReasonJoinForeignKey, join.String())
		}
	}

	if tables := parsed.JoinedTables(); !v.catalog.Graph().Connected(tables) {
		return invalid(ReasonJoinConnectivity, strings.Join(tables, ", "))
	}

	return Result{Valid: true}
}
