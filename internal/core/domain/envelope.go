package domain

// Envelope is the uniform result of one pipeline run, consumable by any
// caller regardless of language. Accepted reports the policy outcome;
// Reason additionally distinguishes execution failures ("execution_error",
// "timeout") that occur after acceptance. Rows is nil for rejected or
// failed runs.
type Envelope struct {
	Accepted  bool             `json:"accepted"`
	Reason    Reason           `json:"reason"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Error     *string          `json:"error"`
}

// Reject builds a rejection envelope with a human-readable error message.
func Reject(reason Reason, msg string) *Envelope {
	return &Envelope{Reason: reason, Error: &msg}
}
