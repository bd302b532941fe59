package advisor

import (
	"regexp"
	"strings"
)

// The research marker grammar:
//
//	[RESEARCH: <topic>]
//
// The keyword is case-insensitive, whitespace around the topic is
// ignored, and the topic may not contain brackets or span lines. A
// marker with no closing bracket or an empty topic is not a request.
var (
	markerRe = regexp.MustCompile(`(?i)\[RESEARCH:[ \t]*([^\[\]\n]*?)[ \t]*\]`)

	// looseMarkerRe also matches unterminated markers up to end of line.
	looseMarkerRe = regexp.MustCompile(`(?i)\[RESEARCH:[^\]\n]*\]?`)

	blankLinesRe = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// ParseResearchMarker returns the topic of the first well-formed marker
// with a non-empty topic in text.
func ParseResearchMarker(text string) (topic string, ok bool) {
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t, true
		}
	}
	return "", false
}

// StripMarkers removes every marker, well-formed or not, and tidies the
// whitespace left behind.
func StripMarkers(text string) string {
	out := looseMarkerRe.ReplaceAllString(text, "")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
