package pipeline

import "strings"

// route selects how the backend is invoked. It is a decision, not an
// execution: the fast path trims token budget for quick replies, the
// multi-step path grants the full budget for composite requests.
type route int

const (
	routeFast route = iota
	routeMultiStep
)

var multiStepMarkers = []string{
	"then", "after that", "step by step", "first", "finally",
	"plan", "and also", "research", "compare", "summarize",
}

// classify estimates message complexity from length and composite-request
// wording.
func classify(text string) route {
	if len(text) > 400 {
		return routeMultiStep
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, m := range multiStepMarkers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	if hits >= 2 {
		return routeMultiStep
	}
	return routeFast
}
