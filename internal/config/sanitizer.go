package config

import "encoding/json"

// ConfigSanitizer sanitizes sensitive configuration data before it is
// ever logged.
type ConfigSanitizer interface {
	// Sanitize removes or redacts sensitive fields.
	Sanitize(cfg *Config) *Config
}

// DefaultConfigSanitizer implements ConfigSanitizer.
type DefaultConfigSanitizer struct {
	redactionValue string
}

// NewDefaultConfigSanitizer creates a new DefaultConfigSanitizer.
func NewDefaultConfigSanitizer() ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: "***REDACTED***"}
}

// NewConfigSanitizer creates a ConfigSanitizer with a custom redaction
// value.
func NewConfigSanitizer(redactionValue string) ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: redactionValue}
}

// Sanitize redacts the instrumentation key, the one secret this config
// carries, from a deep copy of cfg.
func (s *DefaultConfigSanitizer) Sanitize(cfg *Config) *Config {
	sanitized := s.deepCopy(cfg)
	sanitized.LiveMetrics.InstrumentationKey = s.redact(sanitized.LiveMetrics.InstrumentationKey)
	return sanitized
}

func (s *DefaultConfigSanitizer) redact(key string) string {
	if key == "" {
		return key
	}
	return s.redactionValue
}

// deepCopy creates a deep copy of Config using JSON serialization.
func (s *DefaultConfigSanitizer) deepCopy(cfg *Config) *Config {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}

	var configCopy Config
	if err := json.Unmarshal(configJSON, &configCopy); err != nil {
		return cfg
	}

	return &configCopy
}
