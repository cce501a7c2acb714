package domain

import "errors"

var (
	// ErrEmptyStatement is returned for blank or comment-only input.
	ErrEmptyStatement = errors.New("empty statement")

	// ErrParseAmbiguous is returned when the input contains unbalanced
	// quoting or comment delimiters that make verb and statement-boundary
	// detection unreliable. Such input is rejected, never approved.
	ErrParseAmbiguous = errors.New("ambiguous SQL input")

	// ErrTimeout classifies an execution that exceeded the configured
	// deadline, distinct from other driver failures so callers can retry
	// with a narrower query.
	ErrTimeout = errors.New("query timed out")
)
