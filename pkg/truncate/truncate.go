// Package truncate fits text into an approximate token budget, preferring
// whole sentences over a hard character cut.
//
// Token counts are estimated from character counts with a fixed ratio. The
// estimate is only used to stay under a remote model's context window; it makes
// no attempt to match any particular tokenizer.
package truncate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultCharsPerToken = 4

	// ReservedTokens is kept free in the context window on top of the reply budget.
	ReservedTokens = 500

	// MinPromptTokens is the floor of PromptBudget.
	MinPromptTokens = 256
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Truncator is safe for concurrent use.
type Truncator struct {
	CharsPerToken int
}

func New(charsPerToken int) Truncator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return Truncator{CharsPerToken: charsPerToken}
}

// Budget converts a token count into a character budget.
func (t Truncator) Budget(maxTokens int) int {
	ratio := t.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	if maxTokens <= 0 {
		return 0
	}
	return maxTokens * ratio
}

// EstimateTokens is the inverse of Budget, rounded up.
func (t Truncator) EstimateTokens(text string) int {
	ratio := t.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return (n + ratio - 1) / ratio
}

// Truncate returns text unchanged when it fits the budget of maxTokens.
// Otherwise it returns the longest run of leading sentences that fits, joined by
// single spaces, or a hard cut of exactly the budget when not even the first
// sentence fits.
func (t Truncator) Truncate(text string, maxTokens int) string {
	budget := t.Budget(maxTokens)
	if budget == 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= budget {
		return text
	}

	var b strings.Builder
	length := 0
	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if length > 0 {
			n++
		}
		if length+n > budget {
			break
		}
		if length > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		length += n
	}
	if length > 0 {
		return b.String()
	}

	runes := []rune(text)
	return string(runes[:budget])
}

// Sentences splits text on runs of '.', '!' and '?'. Every sentence is trimmed
// and keeps its terminator run; a trailing fragment without one gets a '.'.
func Sentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(m)
		if strings.Trim(s, ".!? \t\r\n") == "" {
			continue
		}
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		sentences = append(sentences, s)
	}
	return sentences
}

// PromptBudget returns the tokens left for the prompt once the reply and the
// reserve are taken out of the context window.
func PromptBudget(contextTokens, maxTokens int) int {
	budget := contextTokens - (maxTokens + ReservedTokens)
	if budget < MinPromptTokens {
		return MinPromptTokens
	}
	return budget
}
