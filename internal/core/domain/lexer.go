package domain

import (
	"fmt"
)

// TokenKind discriminates the token classes the guard rules care about.
type TokenKind int

const (
	TokenWord        TokenKind = iota // identifiers and keywords
	TokenNumber                       // integer or decimal literal
	TokenString                       // '...' literal, quotes included
	TokenQuotedIdent                  // "..." identifier, quotes included
	TokenComment                      // -- line comment or /* block comment */
	TokenParam                        // $1, $2, ... or ?
	TokenSemicolon                    // statement terminator
	TokenSymbol                       // any other single punctuation byte
)

// Token is a lexed slice of the input. Pos and End are byte offsets into
// the original text so callers can splice rewrites without re-lexing.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
	End  int
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool { return t.Kind == TokenComment }

// Lex tokenizes SQL text with quote and comment awareness: terminators and
// keywords inside string literals, quoted identifiers, or comments never
// produce word or semicolon tokens. Inputs whose quoting or comment
// delimiters are unbalanced fail with ErrParseAmbiguous; such text cannot
// be classified reliably and must be treated as unsafe.
func Lex(sql string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			end := i
			for end < n && sql[end] != '\n' {
				end++
			}
			tokens = append(tokens, Token{TokenComment, sql[i:end], i, end})
			i = end

		case c == '/' && i+1 < n && sql[i+1] == '*':
			end, err := scanBlockComment(sql, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{TokenComment, sql[i:end], i, end})
			i = end

		case c == '\'':
			end, err := scanQuoted(sql, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{TokenString, sql[i:end], i, end})
			i = end

		case c == '"':
			end, err := scanQuoted(sql, i, '"')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{TokenQuotedIdent, sql[i:end], i, end})
			i = end

		case c == '$':
			end := i + 1
			for end < n && isDigit(sql[end]) {
				end++
			}
			if end == i+1 {
				// $$ or $tag$ starts a dollar-quoted string; its body could
				// hide terminators from the scanner, so refuse to guess.
				return nil, fmt.Errorf("%w: dollar-quoted string at offset %d", ErrParseAmbiguous, i)
			}
			tokens = append(tokens, Token{TokenParam, sql[i:end], i, end})
			i = end

		case c == '?':
			tokens = append(tokens, Token{TokenParam, "?", i, i + 1})
			i++

		case c == ';':
			tokens = append(tokens, Token{TokenSemicolon, ";", i, i + 1})
			i++

		case isDigit(c):
			end := i
			for end < n && (isDigit(sql[end]) || sql[end] == '.') {
				end++
			}
			tokens = append(tokens, Token{TokenNumber, sql[i:end], i, end})
			i = end

		case isWordStart(c):
			end := i
			for end < n && isWordPart(sql[end]) {
				end++
			}
			tokens = append(tokens, Token{TokenWord, sql[i:end], i, end})
			i = end

		default:
			tokens = append(tokens, Token{TokenSymbol, sql[i : i+1], i, i + 1})
			i++
		}
	}

	return tokens, nil
}

// scanQuoted consumes a quote-delimited region starting at start. A doubled
// quote char is the SQL escape for a literal quote and does not terminate.
func scanQuoted(sql string, start int, quote byte) (int, error) {
	i := start + 1
	n := len(sql)
	for i < n {
		if sql[i] != quote {
			i++
			continue
		}
		if i+1 < n && sql[i+1] == quote {
			i += 2
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("%w: unterminated %q starting at offset %d", ErrParseAmbiguous, string(quote), start)
}

// scanBlockComment consumes a /* ... */ region. Block comments nest in
// PostgreSQL, so depth is tracked.
func scanBlockComment(sql string, start int) (int, error) {
	depth := 0
	i := start
	n := len(sql)
	for i < n {
		switch {
		case i+1 < n && sql[i] == '/' && sql[i+1] == '*':
			depth++
			i += 2
		case i+1 < n && sql[i] == '*' && sql[i+1] == '/':
			depth--
			i += 2
			if depth == 0 {
				return i, nil
			}
		default:
			i++
		}
	}
	return 0, fmt.Errorf("%w: unterminated block comment starting at offset %d", ErrParseAmbiguous, start)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool { return isWordStart(c) || isDigit(c) }
