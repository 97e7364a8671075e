package detect

import (
	"regexp"
	"strings"
)

// placeholderPattern matches redaction placeholders the classifier sometimes
// echoes back instead of real values, e.g. "[NAME_REDACTED]" or "[REDACTED]".
var placeholderPattern = regexp.MustCompile(`(?i)^\[.*REDACTED.*\]$`)

// NormalizeAI converts raw classifier records into detections located in the
// source text. Records are dropped when their confidence is below the floor,
// when the value is a redaction placeholder, or when the value does not occur
// verbatim in the text (a hallucinated extraction). Dropping is routine
// filtering, not an error. The transform is pure: identical inputs always
// produce an identical detection list.
func (e *Engine) NormalizeAI(records []AIRecord, text string) []Detection {
	detections := make([]Detection, 0, len(records))

	for _, rec := range records {
		value := strings.TrimSpace(rec.Value)
		if value == "" || rec.Type == "" {
			continue
		}
		if rec.Confidence < e.cfg.ConfidenceFloor {
			continue
		}
		if placeholderPattern.MatchString(value) {
			continue
		}

		// First occurrence only; AI detections are not expected to repeat.
		start := strings.Index(text, value)
		if start < 0 {
			continue
		}

		mapping, ok := aiTypeMappings[rec.Type]
		if !ok {
			mapping = aiMapping{
				Icon:     "fa-exclamation-circle",
				Severity: SeverityMedium,
				Token:    genericToken(rec.Type),
			}
		}

		reason := rec.Reason
		if reason == "" {
			reason = "AI detected"
		}

		detections = append(detections, Detection{
			Kind:       Kind(rec.Type),
			Severity:   mapping.Severity,
			Label:      reason + " (AI)",
			Icon:       mapping.Icon,
			Match:      value,
			Start:      start,
			End:        start + len(value),
			Source:     SourceAI,
			Token:      mapping.Token,
			Confidence: rec.Confidence,
		})
	}

	return detections
}
