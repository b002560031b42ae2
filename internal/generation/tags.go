package generation

import (
	"regexp"
	"strings"
)

var visualizeTag = regexp.MustCompile(`\[VISUALIZE:\s*([^\]]*)\]`)

// Segment is a piece of a chat reply: plain text, or the label of a
// [VISUALIZE: ...] action when Visualize is set.
type Segment struct {
	Text      string `json:"text"`
	Visualize bool   `json:"visualize"`
}

// ParseVisualizeTags returns the trimmed labels of every non-empty
// [VISUALIZE: ...] tag in text, in order of appearance.
func ParseVisualizeTags(text string) []string {
	var labels []string
	for _, m := range visualizeTag.FindAllStringSubmatch(text, -1) {
		if label := strings.TrimSpace(m[1]); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// SplitVisualizeTags splits text into plain segments and action segments.
// Empty tags are dropped; the surrounding text is kept verbatim.
func SplitVisualizeTags(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range visualizeTag.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		if label := strings.TrimSpace(text[loc[2]:loc[3]]); label != "" {
			segments = append(segments, Segment{Text: label, Visualize: true})
		}
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}
