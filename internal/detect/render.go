package detect

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Highlight renders text with each detection wrapped in a severity-tagged
// span carrying its index and label for UI binding. Detections must be the
// output of Resolve or Scan: position-sorted and non-overlapping. Unmatched
// spans are escaped verbatim; the input is never mutated.
func Highlight(text string, detections []Detection) string {
	if len(detections) == 0 {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for i, d := range detections {
		b.WriteString(html.EscapeString(text[last:d.Start]))
		fmt.Fprintf(&b, `<span class="detection-%s" data-detection-id="%d" title="%s">`,
			d.Severity, i, html.EscapeString(d.Label))
		b.WriteString(html.EscapeString(d.Match))
		b.WriteString("</span>")
		last = d.End
	}
	b.WriteString(html.EscapeString(text[last:]))

	return b.String()
}

// Redact replaces every detection's span with its redaction token.
// Replacement runs from the end of the text backward so earlier substitutions
// never invalidate the offsets still to be processed; it is offset-driven,
// so repeated identical substrings are replaced independently.
func Redact(text string, detections []Detection) string {
	if len(detections) == 0 {
		return text
	}

	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	for _, d := range sorted {
		text = text[:d.Start] + d.Token + text[d.End:]
	}
	return text
}

// RedactSelected redacts only the detections at the given indices into the
// detection list; out-of-range indices are ignored.
func RedactSelected(text string, detections []Detection, indices []int) string {
	selected := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(detections) {
			selected = append(selected, detections[idx])
		}
	}
	return Redact(text, selected)
}
