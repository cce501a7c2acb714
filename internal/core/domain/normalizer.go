package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizedStatement is an accepted statement with its effective row
// limit enforced. Derived from a CandidateStatement, read-only downstream.
type NormalizedStatement struct {
	SQL   string
	Limit int
}

// Normalize enforces the row ceiling on an accepted statement:
//
//   - an existing top-level LIMIT <n> with n <= ceiling is left alone;
//   - n > ceiling is rewritten to the ceiling;
//   - no LIMIT appends one.
//
// Trailing semicolons, whitespace, and comments are stripped first so the
// scan sees the true end of the statement. A LIMIT whose argument is not
// an integer literal (bound parameter, ALL, expression) fails with
// ErrParseAmbiguous: rewriting it safely is not possible. Normalize is
// idempotent and never touches WHERE/JOIN/GROUP BY text.
func Normalize(stmt CandidateStatement, ceiling int) (NormalizedStatement, error) {
	if ceiling <= 0 {
		return NormalizedStatement{}, fmt.Errorf("row ceiling must be positive, got %d", ceiling)
	}

	toks := significant(stmt.tokens)
	if len(toks) == 0 {
		return NormalizedStatement{}, ErrEmptyStatement
	}

	// Drop one trailing semicolon; anything after it was already caught
	// by the single-statement rule.
	if toks[len(toks)-1].Kind == TokenSemicolon {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return NormalizedStatement{}, ErrEmptyStatement
	}

	start := toks[0].Pos
	end := toks[len(toks)-1].End
	body := stmt.Raw[start:end]

	limitIdx := findTopLevelLimit(toks)
	if limitIdx < 0 {
		return NormalizedStatement{
			SQL:   body + " LIMIT " + strconv.Itoa(ceiling),
			Limit: ceiling,
		}, nil
	}

	if limitIdx+1 >= len(toks) {
		return NormalizedStatement{}, fmt.Errorf("%w: LIMIT without argument", ErrParseAmbiguous)
	}
	arg := toks[limitIdx+1]
	if arg.Kind != TokenNumber || strings.Contains(arg.Text, ".") {
		return NormalizedStatement{}, fmt.Errorf("%w: non-literal LIMIT argument %q", ErrParseAmbiguous, arg.Text)
	}
	n, err := strconv.Atoi(arg.Text)
	if err != nil {
		return NormalizedStatement{}, fmt.Errorf("%w: LIMIT argument %q", ErrParseAmbiguous, arg.Text)
	}

	// The literal must be the whole argument. "LIMIT 1e3" lexes as number 1
	// plus word e3 and "LIMIT 100+900" as number 100 plus an expression
	// tail; reading only the first token would enforce the wrong limit.
	if next := limitIdx + 2; next < len(toks) && !followsLimitClause(toks[next]) {
		return NormalizedStatement{}, fmt.Errorf("%w: unexpected %q after LIMIT argument", ErrParseAmbiguous, toks[next].Text)
	}

	if n <= ceiling {
		return NormalizedStatement{SQL: body, Limit: n}, nil
	}

	// Splice the ceiling over the literal, leaving everything else intact.
	rewritten := stmt.Raw[start:arg.Pos] + strconv.Itoa(ceiling) + stmt.Raw[arg.End:end]
	return NormalizedStatement{SQL: rewritten, Limit: ceiling}, nil
}

// followsLimitClause reports whether a token may legally follow a complete
// LIMIT <n> clause at the top level.
func followsLimitClause(t Token) bool {
	if t.Kind != TokenWord {
		return false
	}
	switch strings.ToUpper(t.Text) {
	case "OFFSET", "FETCH", "FOR":
		return true
	}
	return false
}

// findTopLevelLimit returns the index of the last LIMIT keyword at paren
// depth zero, or -1. A LIMIT inside a subquery is not the statement's row
// ceiling and is left untouched.
func findTopLevelLimit(toks []Token) int {
	depth := 0
	idx := -1
	for i, t := range toks {
		switch {
		case t.Kind == TokenSymbol && t.Text == "(":
			depth++
		case t.Kind == TokenSymbol && t.Text == ")":
			if depth > 0 {
				depth--
			}
		case depth == 0 && t.Kind == TokenWord && strings.EqualFold(t.Text, "LIMIT"):
			idx = i
		}
	}
	return idx
}
