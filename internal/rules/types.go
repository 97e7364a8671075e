package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aegishield/aegishield/internal/detect"
)

// PatternType selects how a user's raw input is compiled into a pattern.
type PatternType string

const (
	// PatternSimple matches a single literal term or phrase as a whole word.
	PatternSimple PatternType = "simple"
	// PatternMultiple matches any of several comma-separated literal terms.
	PatternMultiple PatternType = "multiple"
	// PatternAdvanced passes the user's raw regular expression through
	// unmodified. Full expressive power, full responsibility on the user.
	PatternAdvanced PatternType = "advanced"
)

// CustomRule is a persisted user-defined detection rule. UserPattern is kept
// verbatim for re-editing; CompiledPattern is always re-derivable from
// UserPattern and PatternType and is regenerated on every save, never
// hand-edited.
type CustomRule struct {
	ID              int64           `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	PatternType     PatternType     `db:"pattern_type" json:"pattern_type"`
	UserPattern     string          `db:"user_pattern" json:"user_pattern"`
	CompiledPattern string          `db:"compiled_pattern" json:"compiled_pattern"`
	Severity        detect.Severity `db:"severity" json:"severity"`
	Enabled         bool            `db:"enabled" json:"enabled"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ScanRule converts the persisted rule into the engine's scan-time view.
func (r CustomRule) ScanRule() detect.CustomRule {
	return detect.CustomRule{
		ID:       r.ID,
		Name:     r.Name,
		Pattern:  r.CompiledPattern,
		Severity: r.Severity,
		Enabled:  r.Enabled,
	}
}

// ScanRules converts a rule list for the engine.
func ScanRules(rs []CustomRule) []detect.CustomRule {
	out := make([]detect.CustomRule, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ScanRule())
	}
	return out
}

// Fingerprint digests everything about a rule set that affects scan output.
// Two rule sets with the same fingerprint produce identical detections for
// the same input, which makes the fingerprint safe to use in cache keys.
func Fingerprint(rs []CustomRule) string {
	h := sha256.New()
	for _, r := range rs {
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00%s\x00%t\x00", r.ID, r.Name, r.CompiledPattern, r.Severity, r.Enabled)
	}
	return hex.EncodeToString(h.Sum(nil))
}
