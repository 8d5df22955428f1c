// Package redaction masks credentials before they reach log output.
// It detects OpenAI, Anthropic and Azure Speech keys, bearer tokens and
// key=value secrets, and blanks map fields whose names look sensitive.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	// Enabled controls whether redaction is active.
	Enabled bool `json:"enabled"`

	// CustomPatterns allows additional regex patterns to redact.
	CustomPatterns []string `json:"custom_patterns"`

	// Replacement is the string used to replace sensitive data.
	Replacement string `json:"replacement"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Replacement: "[REDACTED]",
	}
}

// Redactor masks secrets in strings and structured log fields.
type Redactor struct {
	config  Config
	builtin []*regexp.Regexp
	custom  []*regexp.Regexp
	mu      sync.RWMutex
}

// Patterns with a capture group only have the group replaced, so
// "api_key=sk-..." keeps its "api_key=" prefix.
var builtinPatterns = []string{
	`(?i)(?:api[_-]?key|apikey|subscription[_-]?key|secret)\s*[=:]\s*['"]?([a-zA-Z0-9_\-]{16,})['"]?`,
	`(?i)ocp-apim-subscription-key\s*:\s*([a-zA-Z0-9]{16,})`,
	`(?i)bearer\s+([a-zA-Z0-9_\-\.]{20,})`,
	`sk-ant-[a-zA-Z0-9\-_]{20,}`,
	`sk-[a-zA-Z0-9\-_]{20,}`,
	`\b[a-fA-F0-9]{32}\b`,
	`"(?:api_key|apikey|speech_key|secret|token)"\s*:\s*"([^"]+)"`,
}

// sensitiveKeys are matched as substrings of lower-cased field names.
var sensitiveKeys = []string{
	"api_key", "apikey", "speech_key", "subscription_key",
	"secret", "token", "password", "credential", "authorization",
}

// NewRedactor creates a new Redactor with the given configuration.
// Invalid custom patterns are skipped.
func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}
	r := &Redactor{config: config}
	for _, p := range builtinPatterns {
		r.builtin = append(r.builtin, regexp.MustCompile(p))
	}
	for _, p := range config.CustomPatterns {
		if re, err := regexp.Compile(p); err == nil {
			r.custom = append(r.custom, re)
		}
	}
	return r
}

// Redact applies all redaction rules to the input string.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	result := input
	for _, re := range r.builtin {
		result = r.replace(re, result)
	}
	for _, re := range r.custom {
		result = re.ReplaceAllString(result, r.config.Replacement)
	}
	return result
}

func (r *Redactor) replace(re *regexp.Regexp, input string) string {
	return re.ReplaceAllStringFunc(input, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if len(sub) > 1 && sub[1] != "" {
			return strings.Replace(match, sub[1], r.config.Replacement, 1)
		}
		return r.config.Replacement
	})
}

// RedactFields redacts sensitive values in a map. The input map is not modified.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	r.mu.RLock()
	enabled := r.config.Enabled
	replacement := r.config.Replacement
	r.mu.RUnlock()
	if !enabled {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(strings.ToLower(k)) {
			result[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = r.Redact(val)
		case error:
			result[k] = r.Redact(val.Error())
		case map[string]any:
			result[k] = r.RedactFields(val)
		default:
			result[k] = v
		}
	}
	return result
}

func isSensitiveKey(key string) bool {
	for _, sk := range sensitiveKeys {
		if strings.Contains(key, sk) {
			return true
		}
	}
	return false
}

// SetEnabled enables or disables redaction at runtime.
func (r *Redactor) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

// Mask shows only the first and last four characters of a secret, for
// display in "config show" style output. Short secrets are fully masked.
func Mask(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

// Redact applies redaction using the global redactor.
func Redact(input string) string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.Redact(input)
}

// RedactFields redacts fields using the global redactor.
func RedactFields(fields map[string]any) map[string]any {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.RedactFields(fields)
}

// SetGlobalConfig sets the configuration for the global redactor.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}
