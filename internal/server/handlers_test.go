package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aegishield/aegishield/internal/audit"
	"github.com/aegishield/aegishield/internal/classifier"
	"github.com/aegishield/aegishield/internal/config"
	"github.com/aegishield/aegishield/internal/detect"
	"github.com/aegishield/aegishield/internal/logger"
	"github.com/aegishield/aegishield/internal/rules"
)

// memStore is an in-memory RuleStore for handler tests. It compiles patterns
// exactly like the real store so compile errors surface the same way.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rules  map[int64]rules.CustomRule
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rules: make(map[int64]rules.CustomRule)}
}

func (m *memStore) Create(ctx context.Context, name string, pt rules.PatternType, userPattern string, severity detect.Severity, enabled bool) (*rules.CustomRule, error) {
	compiled, err := rules.Compile(userPattern, pt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, rules.ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rule := rules.CustomRule{
		ID:              m.nextID,
		Name:            strings.TrimSpace(name),
		PatternType:     pt,
		UserPattern:     userPattern,
		CompiledPattern: compiled,
		Severity:        severity,
		Enabled:         enabled,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.nextID++
	m.rules[rule.ID] = rule
	return &rule, nil
}

func (m *memStore) Update(ctx context.Context, id int64, name string, pt rules.PatternType, userPattern string, severity detect.Severity, enabled bool) (*rules.CustomRule, error) {
	compiled, err := rules.Compile(userPattern, pt)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	rule.Name = name
	rule.PatternType = pt
	rule.UserPattern = userPattern
	rule.CompiledPattern = compiled
	rule.Severity = severity
	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	m.rules[id] = rule
	return &rule, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return rules.ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *memStore) Get(ctx context.Context, id int64) (*rules.CustomRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	return &rule, nil
}

func (m *memStore) List(ctx context.Context) ([]rules.CustomRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []rules.CustomRule{}
	for _, rule := range m.rules {
		out = append(out, rule)
	}
	return out, nil
}

func (m *memStore) ListEnabled(ctx context.Context) ([]rules.CustomRule, error) {
	all, _ := m.List(ctx)
	out := []rules.CustomRule{}
	for _, rule := range all {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, store RuleStore) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false

	auditor, err := audit.NewWriter(&audit.Config{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	log := &logger.Logger{Logger: zap.NewNop()}
	s, err := New(cfg, log, store, classifier.New(classifier.Config{}), nil, auditor)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleScan(t *testing.T) {
	s := newTestServer(t, newMemStore())

	t.Run("FindsBuiltins", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/scan", scanRequest{Text: "mail jane@example.com"})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp scanResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad response: %v", err)
		}
		if len(resp.Detections) != 1 || resp.Detections[0].Kind != detect.KindEmail {
			t.Fatalf("Unexpected detections: %+v", resp.Detections)
		}
		if resp.AIUsed || resp.CacheHit {
			t.Errorf("AI and cache should both be off: %+v", resp)
		}
		if resp.Summary.Total != 1 {
			t.Errorf("Unexpected summary: %+v", resp.Summary)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/scan", scanRequest{Text: ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/scan", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("AppliesCustomRules", func(t *testing.T) {
		store := newMemStore()
		if _, err := store.Create(context.Background(), "Project Phoenix", rules.PatternSimple, "Phoenix", detect.SeverityHigh, true); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		srv := newTestServer(t, store)

		rec := doJSON(t, srv, "POST", "/v1/scan", scanRequest{Text: "Phoenix launch"})
		var resp scanResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad response: %v", err)
		}
		if len(resp.Detections) != 1 || resp.Detections[0].Source != detect.SourceCustom {
			t.Fatalf("Expected custom detection: %+v", resp.Detections)
		}
		if resp.Detections[0].Token != "[PROJECT_PHOENIX_REDACTED]" {
			t.Errorf("Unexpected token %q", resp.Detections[0].Token)
		}
	})
}

func TestHandleRedact(t *testing.T) {
	s := newTestServer(t, newMemStore())

	t.Run("All", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/redact", redactRequest{Text: "mail jane@example.com now"})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var resp redactResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad response: %v", err)
		}
		if resp.RedactedText != "mail [EMAIL_REDACTED] now" {
			t.Errorf("Unexpected redaction %q", resp.RedactedText)
		}
	})

	t.Run("Selected", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/redact", redactRequest{
			Text:     "abc@x.com and def@y.org",
			Selected: []int{1},
		})

		var resp redactResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Bad response: %v", err)
		}
		if resp.RedactedText != "abc@x.com and [EMAIL_REDACTED]" {
			t.Errorf("Unexpected redaction %q", resp.RedactedText)
		}
	})
}

func TestHandleHighlight(t *testing.T) {
	s := newTestServer(t, newMemStore())

	rec := doJSON(t, s, "POST", "/v1/highlight", scanRequest{Text: "mail jane@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp highlightResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if !strings.Contains(resp.HTML, `<span class="detection-medium"`) {
		t.Errorf("Expected highlight markup, got %q", resp.HTML)
	}
}

func TestRuleCRUD(t *testing.T) {
	s := newTestServer(t, newMemStore())

	// Create
	rec := doJSON(t, s, "POST", "/v1/rules", ruleRequest{
		Name:        "Project Phoenix",
		PatternType: "simple",
		Pattern:     "Phoenix",
		Severity:    "high",
		Enabled:     true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created rules.CustomRule
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if created.CompiledPattern != `\bPhoenix\b` {
		t.Errorf("Unexpected compiled pattern %q", created.CompiledPattern)
	}

	// List
	rec = doJSON(t, s, "GET", "/v1/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var listing struct {
		Rules []rules.CustomRule `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if len(listing.Rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(listing.Rules))
	}

	// Update
	rec = doJSON(t, s, "PUT", "/v1/rules/1", ruleRequest{
		Name:        "Project Phoenix",
		PatternType: "multiple",
		Pattern:     "phoenix, firebird",
		Severity:    "medium",
		Enabled:     false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated rules.CustomRule
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if updated.Enabled || updated.PatternType != rules.PatternMultiple {
		t.Errorf("Update not applied: %+v", updated)
	}

	// Get
	rec = doJSON(t, s, "GET", "/v1/rules/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	// Delete
	rec = doJSON(t, s, "DELETE", "/v1/rules/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, s, "GET", "/v1/rules/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestRuleValidationErrors(t *testing.T) {
	s := newTestServer(t, newMemStore())

	cases := map[string]ruleRequest{
		"BadRegex":       {Name: "Bad", PatternType: "advanced", Pattern: "(unclosed", Severity: "low", Enabled: true},
		"EmptyPattern":   {Name: "Empty", PatternType: "simple", Pattern: "  ", Severity: "low", Enabled: true},
		"UnknownType":    {Name: "Odd", PatternType: "fancy", Pattern: "x", Severity: "low", Enabled: true},
		"MissingName":    {Name: " ", PatternType: "simple", Pattern: "term", Severity: "low", Enabled: true},
		"OnlySeparators": {Name: "Seps", PatternType: "multiple", Pattern: ", ,", Severity: "low", Enabled: true},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, s, "POST", "/v1/rules", req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("UpdateMissingRule", func(t *testing.T) {
		rec := doJSON(t, s, "PUT", "/v1/rules/999", ruleRequest{
			Name: "X", PatternType: "simple", Pattern: "x", Severity: "low",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, newMemStore())

	rec := doJSON(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("Unexpected health body: %s", rec.Body.String())
	}

	rec = doJSON(t, s, "GET", "/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var info map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if info["name"] != "aegishield" {
		t.Errorf("Unexpected info: %+v", info)
	}
}
