package marker

import "strings"

// Extract scans text left to right for catalog tags. A tag is recognized
// at line start (case-exact, followed by ':' or alone on the line) or
// inline after prose, in which case the trailing suffix from the tag to
// end of line is the marker. Extraction never fails: an unparseable
// payload still yields a Marker with whatever fields could be split out,
// and handlers decide whether that is enough.
func Extract(text string) []Marker {
	var markers []Marker
	for i, line := range strings.Split(text, "\n") {
		tag, payload, inline, ok := scanLine(line)
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Tag:    tag,
			Fields: splitFields(payload),
			Line:   i,
			Inline: inline,
		})
	}
	return markers
}

// Strip removes every recognized marker occurrence: line-start markers
// drop the whole line, inline markers drop only the suffix. A safety-net
// pass then removes any surviving catalog prefix unconditionally, so a raw
// protocol directive is never delivered to the user.
func Strip(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tag, _, inline, ok := scanLine(line)
		if !ok {
			out = append(out, line)
			continue
		}
		if !inline {
			continue // drop the whole line
		}
		idx := strings.Index(line, string(tag)+":")
		if idx < 0 {
			idx = strings.Index(line, string(tag))
		}
		kept := strings.TrimRight(line[:idx], " \t")
		if kept != "" {
			out = append(out, kept)
		}
	}
	return safetyNet(strings.Join(out, "\n"))
}

// safetyNet drops any line still carrying an exact tag prefix, e.g. from a
// malformed or duplicated occurrence the structured pass missed.
func safetyNet(text string) string {
	if !containsAnyTag(text) {
		return text
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if lineHasTag(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func containsAnyTag(text string) bool {
	for _, t := range processOrder {
		if strings.Contains(text, string(t)+":") {
			return true
		}
	}
	return false
}

func lineHasTag(line string) bool {
	for _, t := range processOrder {
		if strings.Contains(line, string(t)+":") {
			return true
		}
	}
	return false
}

// scanLine recognizes at most one marker per line. Line-start placement
// wins; otherwise the leftmost inline tag occurrence starts the marker
// suffix.
func scanLine(line string) (tag Tag, payload string, inline bool, ok bool) {
	trimmed := strings.TrimRight(line, " \t\r")

	// Line-start: "TAG: payload" or a bare "TAG".
	for _, t := range processOrder {
		ts := string(t)
		if strings.HasPrefix(trimmed, ts+":") {
			return t, trimmed[len(ts)+1:], false, true
		}
		if trimmed == ts {
			return t, "", false, true
		}
	}

	// Inline: prose followed by "TAG: payload". Pick the leftmost.
	best := -1
	var bestTag Tag
	for _, t := range processOrder {
		idx := strings.Index(trimmed, string(t)+":")
		if idx > 0 && (best == -1 || idx < best) {
			best = idx
			bestTag = t
		}
	}
	if best < 0 {
		return "", "", false, false
	}
	return bestTag, trimmed[best+len(bestTag)+1:], true, true
}

// splitFields splits a payload on the field delimiter, trimming each
// field. An empty payload yields no fields.
func splitFields(payload string) []string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	parts := strings.Split(payload, "|")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, strings.TrimSpace(p))
	}
	return fields
}
