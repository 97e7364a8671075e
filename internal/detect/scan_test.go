package detect

import (
	"reflect"
	"strings"
	"testing"
)

func TestScanBuiltins(t *testing.T) {
	engine := New(Config{})

	t.Run("EmailOnly", func(t *testing.T) {
		text := "Contact me at jane@example.com or 555-123-4444"
		detections := engine.Scan(text, nil)

		if len(detections) != 1 {
			t.Fatalf("Expected 1 detection, got %d: %+v", len(detections), detections)
		}
		d := detections[0]
		if d.Kind != KindEmail {
			t.Errorf("Expected kind %s, got %s", KindEmail, d.Kind)
		}
		if d.Severity != SeverityMedium {
			t.Errorf("Expected medium severity, got %s", d.Severity)
		}
		if d.Match != "jane@example.com" {
			t.Errorf("Unexpected match %q", d.Match)
		}
		// A 4-3-4 digit run is not a credit card and there is no phone rule.
		for _, det := range detections {
			if det.Kind == KindCreditCard {
				t.Errorf("Digit run misclassified as credit card: %+v", det)
			}
		}
	})

	t.Run("CreditCard", func(t *testing.T) {
		detections := engine.Scan("4111 1111 1111 1111", nil)

		if len(detections) != 1 {
			t.Fatalf("Expected 1 detection, got %d", len(detections))
		}
		d := detections[0]
		if d.Kind != KindCreditCard || d.Severity != SeverityHigh {
			t.Errorf("Unexpected classification: %+v", d)
		}
		if d.Match != "4111 1111 1111 1111" {
			t.Errorf("Unexpected match %q", d.Match)
		}
		if d.Token != "[CARD_REDACTED]" {
			t.Errorf("Unexpected token %q", d.Token)
		}
	})

	t.Run("SSN", func(t *testing.T) {
		detections := engine.Scan("ssn is 123-45-6789 ok", nil)
		if len(detections) != 1 || detections[0].Kind != KindSSN {
			t.Fatalf("Expected one SSN detection, got %+v", detections)
		}
	})

	t.Run("ContextualAPIKey", func(t *testing.T) {
		detections := engine.Scan("api_key: abcdefghij1234567890xyz", nil)
		if len(detections) != 1 || detections[0].Kind != KindAPIKey {
			t.Fatalf("Expected one api_key detection, got %+v", detections)
		}
	})

	t.Run("StandaloneTokenOverMatches", func(t *testing.T) {
		// 32+ alphanumeric runs are flagged even when they are plain hashes.
		// Accepted false-positive behavior.
		hash := "d41d8cd98f00b204e9800998ecf8427e"
		detections := engine.Scan("commit "+hash, nil)
		if len(detections) != 1 || detections[0].Kind != KindAPIKey {
			t.Fatalf("Expected hash to be flagged as api_key, got %+v", detections)
		}
	})

	t.Run("IPAddressAndURL", func(t *testing.T) {
		detections := engine.Scan("host 10.0.0.1 docs at https://example.com/a?b=1", nil)

		kinds := map[Kind]bool{}
		for _, d := range detections {
			kinds[d.Kind] = true
		}
		if !kinds[KindIPAddress] || !kinds[KindURL] {
			t.Fatalf("Expected ip_address and url detections, got %+v", detections)
		}
	})

	t.Run("Date", func(t *testing.T) {
		detections := engine.Scan("due 12/31/2024", nil)
		if len(detections) != 1 || detections[0].Kind != KindDate {
			t.Fatalf("Expected one date detection, got %+v", detections)
		}
		if detections[0].Severity != SeverityLow {
			t.Errorf("Expected low severity, got %s", detections[0].Severity)
		}
	})
}

func TestScanCustomRules(t *testing.T) {
	engine := New(Config{})

	t.Run("SimpleTerm", func(t *testing.T) {
		rule := CustomRule{
			ID:       1,
			Name:     "Project Phoenix",
			Pattern:  `\bPhoenix\b`,
			Severity: SeverityHigh,
			Enabled:  true,
		}
		detections := engine.Scan("The Phoenix launch is delayed", []CustomRule{rule})

		if len(detections) != 1 {
			t.Fatalf("Expected 1 detection, got %d", len(detections))
		}
		d := detections[0]
		if d.Source != SourceCustom || d.Match != "Phoenix" {
			t.Errorf("Unexpected detection: %+v", d)
		}
		if d.Token != "[PROJECT_PHOENIX_REDACTED]" {
			t.Errorf("Unexpected token %q", d.Token)
		}
		if d.CustomRuleID != 1 {
			t.Errorf("Expected custom rule id 1, got %d", d.CustomRuleID)
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		rule := CustomRule{ID: 2, Name: "Codename", Pattern: `\bphoenix\b`, Severity: SeverityMedium, Enabled: true}
		detections := engine.Scan("PHOENIX is live", []CustomRule{rule})
		if len(detections) != 1 || detections[0].Match != "PHOENIX" {
			t.Fatalf("Expected case-insensitive match, got %+v", detections)
		}
	})

	t.Run("DisabledRuleSkipped", func(t *testing.T) {
		rule := CustomRule{ID: 3, Name: "Off", Pattern: `\blaunch\b`, Severity: SeverityLow, Enabled: false}
		detections := engine.Scan("launch day", []CustomRule{rule})
		if len(detections) != 0 {
			t.Fatalf("Disabled rule produced detections: %+v", detections)
		}
	})

	t.Run("AllOccurrencesFound", func(t *testing.T) {
		rule := CustomRule{ID: 4, Name: "Term", Pattern: `\bacme\b`, Severity: SeverityLow, Enabled: true}
		detections := engine.Scan("acme one acme two acme", []CustomRule{rule})
		if len(detections) != 3 {
			t.Fatalf("Expected 3 matches, got %d", len(detections))
		}
	})

	t.Run("CustomBeatsBuiltin", func(t *testing.T) {
		rule := CustomRule{ID: 5, Name: "Work Email", Pattern: `jane@example\.com`, Severity: SeverityHigh, Enabled: true}
		detections := engine.Scan("mail jane@example.com now", []CustomRule{rule})
		if len(detections) != 1 || detections[0].Source != SourceCustom {
			t.Fatalf("Expected the custom detection to win, got %+v", detections)
		}
	})
}

func TestScanProperties(t *testing.T) {
	engine := New(Config{})

	t.Run("Determinism", func(t *testing.T) {
		text := "card 4111-1111-1111-1111, ip 192.168.1.1, mail a@b.co, due 1/2/23"
		rules := []CustomRule{{ID: 9, Name: "Card Word", Pattern: `\bcard\b`, Severity: SeverityLow, Enabled: true}}

		first := engine.Scan(text, rules)
		second := engine.Scan(text, rules)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Scan is not deterministic:\n%+v\n%+v", first, second)
		}
	})

	t.Run("OffsetValidity", func(t *testing.T) {
		text := "Contact jane@example.com, ssn 123-45-6789, visit https://x.io/a on 1/2/2024 from 10.1.1.1"
		for _, d := range engine.Scan(text, nil) {
			if d.Start < 0 || d.Start >= d.End || d.End > len(text) {
				t.Errorf("Invalid offsets: %+v", d)
			}
			if text[d.Start:d.End] != d.Match {
				t.Errorf("Offsets do not locate match: %q vs %q", text[d.Start:d.End], d.Match)
			}
		}
	})

	t.Run("NonOverlap", func(t *testing.T) {
		text := "key=abcdef0123456789abcdef0123456789 at 10.0.0.1 on 01/02/2003"
		detections := engine.Scan(text, nil)
		for i := 0; i < len(detections); i++ {
			for j := i + 1; j < len(detections); j++ {
				a, b := detections[i], detections[j]
				if a.Start < b.End && b.Start < a.End {
					t.Errorf("Overlapping detections survived scan: %+v and %+v", a, b)
				}
			}
		}
	})

	t.Run("RedactedTextIsClean", func(t *testing.T) {
		for _, token := range []string{"[EMAIL_REDACTED]", "[CARD_REDACTED]", "[SSN_REDACTED]", "[API_KEY_REDACTED]"} {
			detections := engine.Scan(token, nil)
			if len(detections) != 0 {
				t.Errorf("Re-scan of %q produced detections: %+v", token, detections)
			}
		}
	})

	t.Run("BrokenCustomRuleSkipped", func(t *testing.T) {
		rule := CustomRule{ID: 6, Name: "Broken", Pattern: `(`, Severity: SeverityLow, Enabled: true}
		detections := engine.Scan("some text with a@b.co", []CustomRule{rule})
		if len(detections) != 1 || detections[0].Kind != KindEmail {
			t.Fatalf("Broken rule should be skipped, builtins should still run: %+v", detections)
		}
	})
}

func TestBuiltinRulesCopy(t *testing.T) {
	rules := BuiltinRules()
	if len(rules) == 0 {
		t.Fatal("Registry is empty")
	}
	rules[0].Label = "mutated"
	if BuiltinRules()[0].Label == "mutated" {
		t.Error("BuiltinRules should return a copy")
	}
}

func TestGenericToken(t *testing.T) {
	cases := map[string]string{
		"Project Phoenix":   "[PROJECT_PHOENIX_REDACTED]",
		"medical_condition": "[MEDICAL_CONDITION_REDACTED]",
		"  padded  name ":   "[PADDED_NAME_REDACTED]",
	}
	for in, want := range cases {
		if got := genericToken(in); got != want {
			t.Errorf("genericToken(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.Contains(genericToken("a b"), " ") {
		t.Error("Token should not contain spaces")
	}
}
