package orchestrator

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Term lists for the rule-based router. Multi-word terms match whole-word
// sequences; single words must appear as their own token.
var (
	explicitSQLTerms = []string{
		"total", "sum", "count", "average", "avg", "maximum", "minimum",
		"max", "min", "list", "show", "give me",
	}
	implicitSQLTerms = []string{
		"how much", "overall", "in total", "amount", "revenue", "sales",
	}
	groupingTerms = []string{"per", "by", "for each"}
	rankingTerms  = []string{
		"most", "least", "top", "bottom", "highest", "lowest",
		"best", "worst", "popular", "unpopular",
	}
	temporalTerms = []string{
		"recent", "latest", "newest", "oldest", "earliest",
		"last", "past", "previous", "recently",
	}
	measurableTerms = []string{
		"price", "amount", "total", "revenue", "sales", "count",
		"quantity", "number", "duration", "length", "time",
	}
)

// RequiresSQL decides whether a question should be answered from the
// database. Aggregation, grouping or temporal wording routes to SQL, as does
// ranking wording paired with something measurable. Failing that, any
// mention of a schema entity (table, singular table name, or column) routes
// to SQL as well.
func RequiresSQL(question string, entities []string) bool {
	words := tokenize(question)
	if len(words) == 0 {
		return false
	}
	padded := " " + strings.Join(words, " ") + " "

	if containsAny(padded, explicitSQLTerms) ||
		containsAny(padded, implicitSQLTerms) ||
		containsAny(padded, groupingTerms) ||
		containsAny(padded, temporalTerms) {
		return true
	}
	if containsAny(padded, rankingTerms) && containsAny(padded, measurableTerms) {
		return true
	}

	return mentionsEntity(words, padded, entities)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func containsAny(padded string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(padded, " "+term+" ") {
			return true
		}
	}
	return false
}

func mentionsEntity(words []string, padded string, entities []string) bool {
	if len(entities) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		e = strings.ToLower(e)
		set[e] = struct{}{}
		// "invoice_items" is also written "invoice items".
		if strings.Contains(e, "_") && strings.Contains(padded, " "+strings.ReplaceAll(e, "_", " ")+" ") {
			return true
		}
	}

	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
		if _, ok := set[inflection.Singular(w)]; ok {
			return true
		}
	}
	return false
}
