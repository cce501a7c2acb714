package policy

// Policy holds operator-controlled guardrail configuration loaded from a
// YAML file. Values set here override the corresponding environment
// configuration, which keeps one reviewable artifact per deployment.
type Policy struct {
	// Ceiling is the row-limit ceiling. Zero means "keep the configured value".
	Ceiling int `yaml:"ceiling"`

	// Whitelist enumerates the tables queries may reference. Empty keeps
	// whitelisting disabled (or defers to SCHEMA_WHITELIST).
	Whitelist []string `yaml:"whitelist"`

	// ForbiddenKeywords replaces the default denylist when non-empty.
	ForbiddenKeywords []string `yaml:"forbidden_keywords"`

	// Context carries a data dictionary merged into discovery responses.
	Context ContextConfig `yaml:"context"`
}

// ContextConfig maps fully-qualified table names (schema.table) to
// business descriptions.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

// TableContext provides business descriptions for a table and its columns.
type TableContext struct {
	Description string            `yaml:"description"`
	Columns     map[string]string `yaml:"columns"`
}
