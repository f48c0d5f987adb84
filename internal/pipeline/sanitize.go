package pipeline

import (
	"regexp"
)

// Prompt-injection defanging. The sanitize phase never halts the
// pipeline; it rewrites suspicious patterns so they read as quoted user
// text rather than instructions, and reports what it touched for the
// audit log.

var roleTagPattern = regexp.MustCompile(`(?i)[<\[](/?)(system|assistant|developer|inst)[>\]]`)

var overridePhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"disregard all prior instructions",
	"forget your instructions",
	"you are now",
	"new system prompt",
}

// Matching and rewriting must happen on the same text: lowercasing can
// change byte lengths for some runes, so offsets from a lowered copy do
// not transfer back to the original.
var overridePatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(overridePhrases))
	for i, phrase := range overridePhrases {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
	}
	return patterns
}()

// sanitize defangs lookalike role tags and instruction-override phrases in
// inbound text. Returns the rewritten text and one warning per pattern
// class that matched.
func sanitize(text string) (string, []string) {
	var warnings []string

	if roleTagPattern.MatchString(text) {
		text = roleTagPattern.ReplaceAllString(text, "($1$2)")
		warnings = append(warnings, "role tag defanged")
	}

	for i, pattern := range overridePatterns {
		if !pattern.MatchString(text) {
			continue
		}
		// Break the phrase so it no longer reads as a directive.
		text = pattern.ReplaceAllStringFunc(text, func(match string) string {
			return "[quoted: " + match + "]"
		})
		warnings = append(warnings, "override phrase defanged: "+overridePhrases[i])
	}

	return text, warnings
}
