package pipeline

import "strings"

// gateVector says which optional context fragments are worth their token
// cost for one message. It is a pure classification: no side effects.
type gateVector struct {
	Recall  bool // conversation history beyond the default window
	Tasks   bool // pending tasks
	Profile bool // stored facts about the sender
	Lessons bool // recent learned lessons
}

var gateKeywords = map[string][]string{
	"recall": {
		"remember", "recall", "you said", "we talked", "last time",
		"earlier", "yesterday", "before",
	},
	"tasks": {
		"remind", "reminder", "task", "schedule", "todo", "tomorrow",
		"deadline", "appointment", "cancel", "postpone",
	},
	"profile": {
		"my name", "i am", "i'm", "i like", "i prefer", "i hate",
		"about me", "my birthday",
	},
	"lessons": {
		"wrong", "mistake", "better", "improve", "feedback",
		"don't do that", "stop doing",
	},
}

// gateMessage classifies text against the categorized keyword sets.
func gateMessage(text string) gateVector {
	lower := strings.ToLower(text)
	match := func(category string) bool {
		for _, kw := range gateKeywords[category] {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
	return gateVector{
		Recall:  match("recall"),
		Tasks:   match("tasks"),
		Profile: match("profile"),
		Lessons: match("lessons"),
	}
}
