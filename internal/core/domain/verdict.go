package domain

import "fmt"

// Reason is the machine-readable outcome of policy evaluation. The values
// are wire-stable: they appear verbatim in the result envelope.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonParseAmbiguous      Reason = "parse_ambiguous"
	ReasonNonSelect           Reason = "non_select"
	ReasonMultipleStatements  Reason = "multiple_statements"
	ReasonForbiddenKeyword    Reason = "forbidden_keyword"
	ReasonTableNotWhitelisted Reason = "table_not_whitelisted"
	ReasonExecutionError      Reason = "execution_error"
	ReasonTimeout             Reason = "timeout"
)

// ValidationVerdict is the accept/reject outcome for one CandidateStatement.
// Produced once, never mutated.
type ValidationVerdict struct {
	Accepted    bool
	Reason      Reason
	MatchedRule string
	Detail      string // the offending verb, keyword, or table name
}

// Message renders a human-readable rejection reason suitable for
// surfacing to the agent or user. Accepted verdicts return "".
func (v ValidationVerdict) Message() string {
	if v.Accepted {
		return ""
	}
	switch v.Reason {
	case ReasonNonSelect:
		return fmt.Sprintf("query rejected: only SELECT statements are allowed (got %s)", v.Detail)
	case ReasonMultipleStatements:
		return "query rejected: multiple statements are not allowed"
	case ReasonForbiddenKeyword:
		return fmt.Sprintf("query rejected: contains forbidden keyword %s", v.Detail)
	case ReasonTableNotWhitelisted:
		return fmt.Sprintf("query rejected: table %s is not whitelisted", v.Detail)
	default:
		return fmt.Sprintf("query rejected: %s", v.Reason)
	}
}
