package domain

import (
	"fmt"
	"strings"
)

// Verb is the leading SQL verb of a statement.
type Verb string

const (
	VerbSelect  Verb = "SELECT"
	VerbInsert  Verb = "INSERT"
	VerbUpdate  Verb = "UPDATE"
	VerbDelete  Verb = "DELETE"
	VerbDDL     Verb = "DDL"
	VerbUnknown Verb = "UNKNOWN"
)

// CandidateStatement is the immutable classification of one raw SQL input:
// its leading verb and how many statements the text contains. The token
// stream is retained so the validator and normalizer never re-lex.
type CandidateStatement struct {
	Raw            string
	Verb           Verb
	StatementCount int

	tokens []Token
}

// Classify lexes raw SQL and determines its leading verb (case-insensitive,
// skipping leading whitespace and comments) and statement count (unquoted
// terminators only; a trailing terminator does not start a new statement).
// Unbalanced quoting or comments fail with ErrParseAmbiguous; blank or
// comment-only input fails with ErrEmptyStatement.
func Classify(raw string) (CandidateStatement, error) {
	tokens, err := Lex(raw)
	if err != nil {
		return CandidateStatement{}, err
	}

	first := -1
	for i, t := range tokens {
		if !t.IsComment() {
			first = i
			break
		}
	}
	if first < 0 {
		return CandidateStatement{}, ErrEmptyStatement
	}

	lead := tokens[first]
	if lead.Kind != TokenWord {
		return CandidateStatement{}, fmt.Errorf("%w: statement starts with %q", ErrParseAmbiguous, lead.Text)
	}

	return CandidateStatement{
		Raw:            raw,
		Verb:           classifyVerb(lead.Text),
		StatementCount: countStatements(tokens),
		tokens:         tokens,
	}, nil
}

// Tokens returns the lexed token stream.
func (s CandidateStatement) Tokens() []Token { return s.tokens }

func classifyVerb(word string) Verb {
	switch strings.ToUpper(word) {
	case "SELECT":
		return VerbSelect
	case "INSERT":
		return VerbInsert
	case "UPDATE":
		return VerbUpdate
	case "DELETE":
		return VerbDelete
	case "CREATE", "DROP", "ALTER", "TRUNCATE":
		return VerbDDL
	default:
		return VerbUnknown
	}
}

// countStatements counts semicolon-separated segments that contain at
// least one non-comment token. "SELECT 1;" is one statement; "SELECT 1;
// DROP TABLE t" is two.
func countStatements(tokens []Token) int {
	count := 0
	segmentHasContent := false
	for _, t := range tokens {
		switch {
		case t.Kind == TokenSemicolon:
			if segmentHasContent {
				count++
				segmentHasContent = false
			}
		case !t.IsComment():
			segmentHasContent = true
		}
	}
	if segmentHasContent {
		count++
	}
	return count
}

// ReferencedTables extracts table names following FROM and JOIN keywords,
// including comma-separated FROM lists. Schema-qualified names are joined
// with dots; quoted identifiers keep their inner text. A parenthesis after
// FROM/JOIN is a subquery whose own FROM is picked up by the same linear
// scan.
func (s CandidateStatement) ReferencedTables() []string {
	var tables []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}

	toks := significant(s.tokens)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != TokenWord {
			continue
		}
		upper := strings.ToUpper(t.Text)
		if upper != "FROM" && upper != "JOIN" {
			continue
		}
		next := i + 1
		if next < len(toks) && toks[next].Kind == TokenWord && strings.EqualFold(toks[next].Text, "LATERAL") {
			next++
		}
		name, consumed, ok := scanTableName(toks, next)
		if ok {
			add(name)
			next += consumed
		}
		if upper == "FROM" {
			scanFromList(toks, next, add)
		}
	}
	return tables
}

// scanFromList walks the remainder of a comma-separated FROM list starting
// after the first table's tokens, collecting each element's table name. It
// stops at the next clause keyword. The caller's own scan still visits
// every token, so FROM clauses inside subqueries are handled there.
func scanFromList(toks []Token, i int, add func(string)) {
	depth := 0
	for ; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Kind == TokenSymbol && t.Text == "(":
			depth++
		case t.Kind == TokenSymbol && t.Text == ")":
			if depth == 0 {
				return
			}
			depth--
		case depth == 0 && t.Kind == TokenSymbol && t.Text == ",":
			if name, consumed, ok := scanTableName(toks, i+1); ok {
				add(name)
				i += consumed
			}
		case depth == 0 && (t.Kind == TokenSemicolon || t.Kind == TokenWord && endsFromList(t.Text)):
			return
		}
	}
}

func endsFromList(word string) bool {
	switch strings.ToUpper(word) {
	case "WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET", "UNION",
		"INTERSECT", "EXCEPT", "JOIN", "INNER", "LEFT", "RIGHT", "FULL",
		"CROSS", "ON", "USING", "FETCH", "FOR", "WINDOW":
		return true
	}
	return false
}

// scanTableName reads a possibly schema-qualified identifier starting at
// index i. Unquoted parts fold to lowercase the way PostgreSQL folds them;
// quoted parts keep their exact case, since "Customers" and customers are
// distinct tables. Returns the name and the number of tokens consumed, or
// false when the next token is not an identifier (e.g. a subquery opener).
func scanTableName(toks []Token, i int) (string, int, bool) {
	start := i
	var parts []string
	for i < len(toks) {
		t := toks[i]
		var part string
		switch t.Kind {
		case TokenWord:
			part = strings.ToLower(t.Text)
		case TokenQuotedIdent:
			part = strings.ReplaceAll(t.Text[1:len(t.Text)-1], `""`, `"`)
		default:
			return "", 0, false
		}
		parts = append(parts, part)

		if i+1 < len(toks) && toks[i+1].Kind == TokenSymbol && toks[i+1].Text == "." {
			i += 2
			continue
		}
		i++
		break
	}
	if len(parts) == 0 {
		return "", 0, false
	}
	return strings.Join(parts, "."), i - start, true
}

func significant(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if !t.IsComment() {
			out = append(out, t)
		}
	}
	return out
}
