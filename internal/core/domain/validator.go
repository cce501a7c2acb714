package domain

import (
	"strings"
)

// DefaultForbiddenKeywords is the denylist applied when no override is
// configured. "--" and "/*" reject comment sequences after the leading
// verb, the classic place to hide payloads.
var DefaultForbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "TRUNCATE",
	"ATTACH", "PRAGMA", "EXEC",
	"--", "/*",
}

// Validator applies the ordered guard rule set to a CandidateStatement.
// It is pure and stateless aside from the immutable whitelist and
// denylist captured at construction, so one instance is safe for
// concurrent use.
type Validator struct {
	whitelist     map[string]struct{}
	whitelistBare map[string]struct{} // unqualified forms of whitelist entries
	denyKeywords  map[string]struct{}
	denyComments  bool
	rules         []rule
}

// rule is a pure predicate over a CandidateStatement. A nil result means
// the rule passes; the first failing rule's verdict wins.
type rule struct {
	name  string
	check func(*Validator, CandidateStatement) *ValidationVerdict
}

// NewValidator builds a Validator. An empty whitelist disables the table
// rule (whitelisting is opt-in); a nil forbidden list selects
// DefaultForbiddenKeywords. Whitelist entries are exact table names:
// references are compared after the folding PostgreSQL itself applies, so
// an unquoted reference matches a lowercase entry while a quoted
// case-variant one does not.
func NewValidator(whitelist, forbidden []string) *Validator {
	if forbidden == nil {
		forbidden = DefaultForbiddenKeywords
	}

	v := &Validator{
		whitelist:     make(map[string]struct{}, len(whitelist)),
		whitelistBare: make(map[string]struct{}, len(whitelist)),
		denyKeywords:  make(map[string]struct{}, len(forbidden)),
	}
	for _, t := range whitelist {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		v.whitelist[t] = struct{}{}
		if i := strings.LastIndexByte(t, '.'); i >= 0 {
			v.whitelistBare[t[i+1:]] = struct{}{}
		} else {
			v.whitelistBare[t] = struct{}{}
		}
	}
	for _, k := range forbidden {
		k = strings.TrimSpace(k)
		switch {
		case k == "--" || k == "/*":
			v.denyComments = true
		case k != "":
			v.denyKeywords[strings.ToUpper(k)] = struct{}{}
		}
	}

	v.rules = []rule{
		{"select_only", (*Validator).checkSelectOnly},
		{"single_statement", (*Validator).checkSingleStatement},
		{"forbidden_keyword", (*Validator).checkForbiddenKeywords},
		{"table_whitelist", (*Validator).checkTableWhitelist},
	}
	return v
}

// Validate evaluates the rules in order and short-circuits on the first
// failure. Every input maps to a verdict; no rule performs I/O.
func (v *Validator) Validate(stmt CandidateStatement) ValidationVerdict {
	for _, r := range v.rules {
		if verdict := r.check(v, stmt); verdict != nil {
			verdict.MatchedRule = r.name
			return *verdict
		}
	}
	return ValidationVerdict{Accepted: true, Reason: ReasonOK}
}

func (v *Validator) checkSelectOnly(stmt CandidateStatement) *ValidationVerdict {
	if stmt.Verb == VerbSelect {
		return nil
	}
	return &ValidationVerdict{Reason: ReasonNonSelect, Detail: string(stmt.Verb)}
}

func (v *Validator) checkSingleStatement(stmt CandidateStatement) *ValidationVerdict {
	if stmt.StatementCount == 1 {
		return nil
	}
	return &ValidationVerdict{Reason: ReasonMultipleStatements}
}

// checkForbiddenKeywords matches denylisted words as standalone tokens
// only: an identifier like dropdown_id never triggers on "drop". Comments
// preceding the leading verb are tolerated because classification already
// skipped them; comments after code are the hiding spot the denylist
// entries "--" and "/*" target.
func (v *Validator) checkForbiddenKeywords(stmt CandidateStatement) *ValidationVerdict {
	seenCode := false
	for _, t := range stmt.Tokens() {
		switch {
		case t.IsComment():
			if seenCode && v.denyComments {
				marker := "--"
				if strings.HasPrefix(t.Text, "/*") {
					marker = "/*"
				}
				return &ValidationVerdict{Reason: ReasonForbiddenKeyword, Detail: marker}
			}
		case t.Kind == TokenWord:
			seenCode = true
			if _, bad := v.denyKeywords[strings.ToUpper(t.Text)]; bad {
				return &ValidationVerdict{Reason: ReasonForbiddenKeyword, Detail: strings.ToUpper(t.Text)}
			}
		default:
			seenCode = true
		}
	}
	return nil
}

func (v *Validator) checkTableWhitelist(stmt CandidateStatement) *ValidationVerdict {
	if len(v.whitelist) == 0 {
		return nil
	}
	for _, table := range stmt.ReferencedTables() {
		if !v.allowed(table) {
			return &ValidationVerdict{Reason: ReasonTableNotWhitelisted, Detail: table}
		}
	}
	return nil
}

// allowed accepts a table when the whitelist holds its exact form, or
// when the bare names match and either side left the schema off.
func (v *Validator) allowed(table string) bool {
	if _, ok := v.whitelist[table]; ok {
		return true
	}
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		if _, ok := v.whitelist[table[i+1:]]; ok {
			return true
		}
		return false
	}
	_, ok := v.whitelistBare[table]
	return ok
}
