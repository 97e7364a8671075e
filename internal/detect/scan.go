package detect

import (
	"regexp"
)

// DefaultConfidenceFloor is the minimum classifier confidence accepted during
// normalization when no floor is configured.
const DefaultConfidenceFloor = 0.6

// Config contains engine tuning knobs.
type Config struct {
	// ConfidenceFloor rejects AI records below this confidence.
	ConfidenceFloor float64 `yaml:"ai_confidence_floor" mapstructure:"ai_confidence_floor"`
}

// Engine runs the built-in registry and custom rules over text. It holds no
// mutable state; every operation is pure and safe for concurrent use.
type Engine struct {
	rules []Rule
	cfg   Config
}

// New creates a detection engine.
func New(cfg Config) *Engine {
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultConfidenceFloor
	}
	return &Engine{rules: builtinRules, cfg: cfg}
}

// Scan runs every enabled custom rule and every built-in rule over text and
// returns the resolved, position-ordered, non-overlapping detection list.
// Custom rules match case-insensitively; built-in rules match per their own
// definition. Each rule is scanned to exhaustion before the next one runs,
// and overlap resolution happens only after all matches are collected.
func (e *Engine) Scan(text string, custom []CustomRule) []Detection {
	return Resolve(e.collect(text, custom))
}

// collect gathers raw matches in insertion order: custom rules first in their
// configured order, then built-in rules in registry order.
func (e *Engine) collect(text string, custom []CustomRule) []Detection {
	var detections []Detection

	for _, cr := range custom {
		if !cr.Enabled {
			continue
		}
		// Rules are validated at save time; anything unparseable here is
		// skipped rather than failing the whole scan.
		re, err := regexp.Compile("(?i)" + cr.Pattern)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				Kind:         KindCustom,
				Severity:     cr.Severity,
				Label:        cr.Name,
				Icon:         "fa-user-shield",
				Match:        text[loc[0]:loc[1]],
				Start:        loc[0],
				End:          loc[1],
				Source:       SourceCustom,
				Token:        genericToken(cr.Name),
				CustomRuleID: cr.ID,
			})
		}
	}

	for _, rule := range e.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				Kind:     rule.Kind,
				Severity: rule.Severity,
				Label:    rule.Label,
				Icon:     rule.Icon,
				Match:    text[loc[0]:loc[1]],
				Start:    loc[0],
				End:      loc[1],
				Source:   SourceRegex,
				Token:    rule.Token,
			})
		}
	}

	return detections
}
