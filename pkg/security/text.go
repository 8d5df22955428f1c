// Package security enforces the input policy of a pipeline run: bounded,
// sanitized text and URLs that are safe to fetch.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sipeed/picocast/pkg/failure"
)

const component = "security"

// Text is validated text. The zero value is empty and is never produced by Validate,
// so any non-empty Text has passed the length and sanitization checks.
type Text struct {
	s string
}

func (t Text) String() string { return t.s }

// Len returns the length in characters.
func (t Text) Len() int { return utf8.RuneCountInString(t.s) }

func (t Text) IsZero() bool { return t.s == "" }

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
}

// sanitize removes the patterns until none is left, so a removal cannot splice
// the surrounding text into a new match.
func sanitize(text string) string {
	for {
		prev := text
		for _, re := range sanitizePatterns {
			text = re.ReplaceAllString(text, "")
		}
		if text == prev {
			return text
		}
	}
}

// Validate trims text, checks it against maxLength characters and strips
// script blocks and javascript: URIs.
func Validate(text string, maxLength int) (Text, error) {
	if !utf8.ValidString(text) {
		return Text{}, failure.Security(component, "Invalid text input: must be a non-empty string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Text{}, failure.Security(component, "Invalid text input: must be a non-empty string")
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return Text{}, failure.Security(component, "Text too long: %d characters (max: %d)", n, maxLength)
	}

	text = strings.TrimSpace(sanitize(text))
	if text == "" {
		return Text{}, failure.Security(component, "Invalid text input: no content left after sanitization")
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return Text{}, failure.Security(component, "Text too long: %d characters (max: %d)", n, maxLength)
	}
	return Text{s: text}, nil
}
