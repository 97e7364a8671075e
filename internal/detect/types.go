package detect

// Kind is the category of sensitive data a detection belongs to. The AI
// classifier may report categories outside this list; those flow through as-is.
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindAPIKey     Kind = "api_key"
	KindIPAddress  Kind = "ip_address"
	KindURL        Kind = "url"
	KindDate       Kind = "date"
	KindCustom     Kind = "custom"
)

// Severity is the coarse risk tier driving default selection and grouping.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Source identifies which pass produced a detection. It determines overlap
// priority: custom beats regex beats ai.
type Source string

const (
	SourceCustom Source = "custom"
	SourceRegex  Source = "regex"
	SourceAI     Source = "ai"
)

var sourcePriority = map[Source]int{
	SourceCustom: 0,
	SourceRegex:  1,
	SourceAI:     2,
}

// Detection is one identified span of sensitive text plus its classification
// metadata. Start and End are half-open byte offsets into the scanned text,
// so text[Start:End] == Match always holds. Detections are plain data and
// carry their replacement token instead of a redaction closure, which keeps
// them serializable and comparable.
type Detection struct {
	Kind         Kind     `json:"kind"`
	Severity     Severity `json:"severity"`
	Label        string   `json:"label"`
	Icon         string   `json:"icon,omitempty"`
	Match        string   `json:"match"`
	Start        int      `json:"start"`
	End          int      `json:"end"`
	Source       Source   `json:"source"`
	Token        string   `json:"token"`
	Confidence   float64  `json:"confidence,omitempty"`
	CustomRuleID int64    `json:"custom_rule_id,omitempty"`
}

// CustomRule is the scan-time view of a user-defined rule: a pre-validated
// pattern plus the metadata needed to build detections from its matches.
// Persistence and compilation live in the rules package.
type CustomRule struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Pattern  string   `json:"pattern"`
	Severity Severity `json:"severity"`
	Enabled  bool     `json:"enabled"`
}

// AIRecord is one raw record from the external contextual classifier.
type AIRecord struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Summary aggregates a detection list for display. It is recomputed on
// demand and never stored apart from the list it describes.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByKind     map[Kind]int     `json:"by_kind"`
}

// Summarize counts detections by severity and kind.
func Summarize(detections []Detection) Summary {
	s := Summary{
		Total: len(detections),
		BySeverity: map[Severity]int{
			SeverityHigh:   0,
			SeverityMedium: 0,
			SeverityLow:    0,
		},
		ByKind: make(map[Kind]int),
	}

	for _, d := range detections {
		s.BySeverity[d.Severity]++
		s.ByKind[d.Kind]++
	}

	return s
}
