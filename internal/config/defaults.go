package config

// Default configuration values.
const (
	DefaultHTTPAddr                = ":8080"
	DefaultMaxPairs                = 200
	DefaultProbeRowLimit           = 10000
	DefaultRowCap                  = 50000
	DefaultStatementTimeoutSeconds = 60
)

// DefaultNameSynonyms are the alternate keys tried for name extraction,
// in priority order.
func DefaultNameSynonyms() []string {
	return []string{"question_title", "title", "question", "name"}
}

// DefaultValueSynonyms are the alternate keys tried for value extraction,
// in priority order.
func DefaultValueSynonyms() []string {
	return []string{"value_text", "answer", "text", "value", "response"}
}

// DefaultPatterns maps pattern names to the regex used for content-based
// value extraction.
func DefaultPatterns() map[string]string {
	return map[string]string{
		"email": `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
	}
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			StatementTimeoutSeconds: DefaultStatementTimeoutSeconds,
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
		Engine: EngineConfig{
			MaxPairs:      DefaultMaxPairs,
			ProbeRowLimit: DefaultProbeRowLimit,
			RowCap:        DefaultRowCap,
			NameSynonyms:  DefaultNameSynonyms(),
			ValueSynonyms: DefaultValueSynonyms(),
			Patterns:      DefaultPatterns(),
		},
	}
}
