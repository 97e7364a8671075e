package detect

import (
	"regexp"
	"strings"
)

// Rule is one built-in detection rule. Rules are stateless and re-entrant;
// scanning the same text twice yields identical results.
type Rule struct {
	Kind     Kind
	Severity Severity
	Label    string
	Icon     string
	Pattern  *regexp.Regexp
	Token    string
}

// builtinRules is the fixed registry. Credit card stays ahead of the looser
// numeric rules so its matches are the ones collected first, though ordering
// does not affect correctness: all matches are gathered before resolution.
var builtinRules = []Rule{
	{
		Kind:     KindCreditCard,
		Severity: SeverityHigh,
		Label:    "Credit Card",
		Icon:     "fa-credit-card",
		Pattern:  regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
		Token:    "[CARD_REDACTED]",
	},
	{
		Kind:     KindSSN,
		Severity: SeverityHigh,
		Label:    "SSN",
		Icon:     "fa-id-card",
		Pattern:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Token:    "[SSN_REDACTED]",
	},
	{
		Kind:     KindEmail,
		Severity: SeverityMedium,
		Label:    "Email Address",
		Icon:     "fa-envelope",
		Pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Token:    "[EMAIL_REDACTED]",
	},
	{
		Kind:     KindAPIKey,
		Severity: SeverityHigh,
		Label:    "API Key/Token",
		Icon:     "fa-key",
		Pattern:  regexp.MustCompile(`(?i)\b(?:api[_-]?key|apikey|access[_-]?token|secret[_-]?key|private[_-]?key)[:\s=]+["']?[A-Za-z0-9_\-]{20,}["']?`),
		Token:    "[API_KEY_REDACTED]",
	},
	{
		// Standalone high-entropy token shape. Known to over-match hashes and
		// long IDs; that tradeoff is accepted.
		Kind:     KindAPIKey,
		Severity: SeverityHigh,
		Label:    "API Key/Token",
		Icon:     "fa-key",
		Pattern:  regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`),
		Token:    "[API_KEY_REDACTED]",
	},
	{
		Kind:     KindIPAddress,
		Severity: SeverityMedium,
		Label:    "IP Address",
		Icon:     "fa-network-wired",
		Pattern:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Token:    "[IP_REDACTED]",
	},
	{
		Kind:     KindURL,
		Severity: SeverityLow,
		Label:    "URL",
		Icon:     "fa-link",
		Pattern:  regexp.MustCompile(`https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)`),
		Token:    "[URL_REDACTED]",
	},
	{
		Kind:     KindDate,
		Severity: SeverityLow,
		Label:    "Date",
		Icon:     "fa-calendar",
		Pattern:  regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`),
		Token:    "[DATE_REDACTED]",
	},
}

// BuiltinRules returns a copy of the registry for introspection endpoints.
func BuiltinRules() []Rule {
	out := make([]Rule, len(builtinRules))
	copy(out, builtinRules)
	return out
}

// aiMapping is the {icon, severity, token} triple looked up per classifier
// type during normalization.
type aiMapping struct {
	Icon     string
	Severity Severity
	Token    string
}

var aiTypeMappings = map[string]aiMapping{
	"name":    {Icon: "fa-user", Severity: SeverityMedium, Token: "[NAME_REDACTED]"},
	"phone":   {Icon: "fa-phone", Severity: SeverityMedium, Token: "[PHONE_REDACTED]"},
	"email":   {Icon: "fa-envelope", Severity: SeverityMedium, Token: "[EMAIL_REDACTED]"},
	"address": {Icon: "fa-map-marker-alt", Severity: SeverityMedium, Token: "[ADDRESS_REDACTED]"},
	// The classifier often labels API keys "username".
	"username":      {Icon: "fa-key", Severity: SeverityHigh, Token: "[API_KEY_REDACTED]"},
	"api_key":       {Icon: "fa-key", Severity: SeverityHigh, Token: "[API_KEY_REDACTED]"},
	"secret":        {Icon: "fa-key", Severity: SeverityHigh, Token: "[API_KEY_REDACTED]"},
	"government_id": {Icon: "fa-id-card", Severity: SeverityHigh, Token: "[GOV_ID_REDACTED]"},
	"financial":     {Icon: "fa-dollar-sign", Severity: SeverityHigh, Token: "[FINANCIAL_REDACTED]"},
	"healthcare":    {Icon: "fa-heartbeat", Severity: SeverityHigh, Token: "[HEALTHCARE_REDACTED]"},
	"personal_info": {Icon: "fa-user-shield", Severity: SeverityMedium, Token: "[INFO_REDACTED]"},
}

// genericToken derives a redaction token for classifier types that have no
// mapping, e.g. "medical condition" -> "[MEDICAL_CONDITION_REDACTED]".
func genericToken(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	return "[" + strings.Join(strings.Fields(upper), "_") + "_REDACTED]"
}
