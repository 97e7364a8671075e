package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aegishield/aegishield/internal/audit"
	"github.com/aegishield/aegishield/internal/cache"
	"github.com/aegishield/aegishield/internal/detect"
	"github.com/aegishield/aegishield/internal/rules"
	"github.com/aegishield/aegishield/internal/websocket"
)

const maxRequestBody = 1 << 20 // 1 MiB

type scanRequest struct {
	Text  string `json:"text"`
	UseAI bool   `json:"use_ai"`
}

type redactRequest struct {
	Text     string `json:"text"`
	UseAI    bool   `json:"use_ai"`
	Selected []int  `json:"selected,omitempty"`
}

type scanResponse struct {
	Detections []detect.Detection `json:"detections"`
	Summary    detect.Summary     `json:"summary"`
	AIUsed     bool               `json:"ai_used"`
	AIError    string             `json:"ai_error,omitempty"`
	CacheHit   bool               `json:"cache_hit"`
}

type redactResponse struct {
	scanResponse
	RedactedText string `json:"redacted_text"`
}

type highlightResponse struct {
	scanResponse
	HTML string `json:"html"`
}

type ruleRequest struct {
	Name        string `json:"name"`
	PatternType string `json:"pattern_type"`
	Pattern     string `json:"pattern"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// scanOutcome is the shared result of the scan pipeline.
type scanOutcome struct {
	detections []detect.Detection
	summary    detect.Summary
	aiUsed     bool
	aiError    string
	cacheHit   bool
}

func (o *scanOutcome) response() scanResponse {
	return scanResponse{
		Detections: o.detections,
		Summary:    o.summary,
		AIUsed:     o.aiUsed,
		AIError:    o.aiError,
		CacheHit:   o.cacheHit,
	}
}

// runScan is the pipeline behind scan, redact and highlight: load the
// enabled custom rules, consult the cache, run pattern detection, optionally
// merge AI detections, then record the outcome.
func (s *Server) runScan(r *http.Request, text string, useAI bool) (*scanOutcome, error) {
	ctx := r.Context()
	requestID := getRequestID(ctx)
	log := s.logger.WithRequestID(requestID)
	start := time.Now()

	enabled, err := s.ruleStore.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	aiActive := useAI && s.classifier.Enabled() &&
		len(strings.TrimSpace(text)) >= s.config.Detection.AIMinChars

	var cacheKey string
	if s.scanCache != nil {
		cacheKey = s.scanCache.Key(text, rules.Fingerprint(enabled), aiActive)
		if cached, _ := s.scanCache.Get(ctx, cacheKey); cached != nil {
			outcome := &scanOutcome{
				detections: cached.Detections,
				summary:    cached.Summary,
				aiUsed:     cached.AIUsed,
				cacheHit:   true,
			}
			s.finishScan(requestID, r, text, outcome, start)
			return outcome, nil
		}
	}

	detections := s.engine.Scan(text, rules.ScanRules(enabled))

	aiUsed, aiError := false, ""
	if aiActive {
		records, err := s.classifier.Classify(ctx, text)
		if err != nil {
			// AI failure degrades to pattern-only results
			log.Warn("Classifier call failed", zap.Error(err))
			aiError = err.Error()
		} else {
			aiDetections := s.engine.NormalizeAI(records, text)
			detections = detect.Resolve(detections, aiDetections)
			aiUsed = true
		}
	}

	outcome := &scanOutcome{
		detections: detections,
		summary:    detect.Summarize(detections),
		aiUsed:     aiUsed,
		aiError:    aiError,
	}

	// A degraded AI outcome is not cached; the next request retries the
	// classifier instead of pinning the pattern-only result.
	if s.scanCache != nil && outcome.aiError == "" {
		result := &cache.ScanResult{
			Detections: outcome.detections,
			Summary:    outcome.summary,
			AIUsed:     outcome.aiUsed,
		}
		if err := s.scanCache.Store(ctx, cacheKey, result); err != nil {
			log.Warn("Failed to cache scan result", zap.Error(err))
		}
	}

	s.finishScan(requestID, r, text, outcome, start)
	return outcome, nil
}

// finishScan records audit entries and broadcasts the scan summary.
func (s *Server) finishScan(requestID string, r *http.Request, text string, outcome *scanOutcome, start time.Time) {
	textHash := audit.HashText(text)
	for _, d := range outcome.detections {
		record := audit.Record{
			RequestID:  requestID,
			TextHash:   textHash,
			TextLen:    int64(len(text)),
			Kind:       string(d.Kind),
			Severity:   string(d.Severity),
			Source:     string(d.Source),
			Confidence: d.Confidence,
		}
		if err := s.auditor.Append(record); err != nil {
			s.logger.WithRequestID(requestID).Warn("Failed to append audit record", zap.Error(err))
		}
	}

	duration := time.Since(start)
	s.logger.WithRequestID(requestID).LogScan(
		len(text), outcome.summary.Total, outcome.aiUsed, outcome.cacheHit,
		duration.Milliseconds())

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeScan,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.ScanEvent{
			RequestID:    requestID,
			ClientIP:     getClientIP(r),
			TextLen:      len(text),
			Summary:      outcome.summary,
			AIUsed:       outcome.aiUsed,
			CacheHit:     outcome.cacheHit,
			ProcessingMS: float64(duration.Nanoseconds()) / 1e6,
		},
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := s.runScan(r, req.Text, req.UseAI)
	if err != nil {
		s.serverError(w, r, "scan failed", err)
		return
	}

	writeJSON(w, http.StatusOK, outcome.response())
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := s.runScan(r, req.Text, req.UseAI)
	if err != nil {
		s.serverError(w, r, "redact failed", err)
		return
	}

	var redacted string
	if req.Selected != nil {
		redacted = detect.RedactSelected(req.Text, outcome.detections, req.Selected)
	} else {
		redacted = detect.Redact(req.Text, outcome.detections)
	}

	writeJSON(w, http.StatusOK, redactResponse{
		scanResponse: outcome.response(),
		RedactedText: redacted,
	})
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := s.runScan(r, req.Text, req.UseAI)
	if err != nil {
		s.serverError(w, r, "highlight failed", err)
		return
	}

	writeJSON(w, http.StatusOK, highlightResponse{
		scanResponse: outcome.response(),
		HTML:         detect.Highlight(req.Text, outcome.detections),
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.ruleStore.List(r.Context())
	if err != nil {
		s.serverError(w, r, "failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": list})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := ruleID(r)
	rule, err := s.ruleStore.Get(r.Context(), id)
	if err != nil {
		s.ruleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	rule, err := s.ruleStore.Create(r.Context(), req.Name,
		rules.PatternType(req.PatternType), req.Pattern,
		detect.Severity(req.Severity), req.Enabled)
	if err != nil {
		s.ruleError(w, r, err)
		return
	}

	s.broadcastRuleChange("created", rule)
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	rule, err := s.ruleStore.Update(r.Context(), ruleID(r), req.Name,
		rules.PatternType(req.PatternType), req.Pattern,
		detect.Severity(req.Severity), req.Enabled)
	if err != nil {
		s.ruleError(w, r, err)
		return
	}

	s.broadcastRuleChange("updated", rule)
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := ruleID(r)
	if err := s.ruleStore.Delete(r.Context(), id); err != nil {
		s.ruleError(w, r, err)
		return
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRuleChange,
		Timestamp: time.Now(),
		Data:      websocket.RuleChangeEvent{Action: "deleted", RuleID: id},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) broadcastRuleChange(action string, rule *rules.CustomRule) {
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRuleChange,
		Timestamp: time.Now(),
		Data: websocket.RuleChangeEvent{
			Action:  action,
			RuleID:  rule.ID,
			Name:    rule.Name,
			Enabled: rule.Enabled,
		},
	})
}

// ruleError maps rule store failures to HTTP statuses: bad patterns are the
// client's fault, missing rules are 404, the rest is 500.
func (s *Server) ruleError(w http.ResponseWriter, r *http.Request, err error) {
	var patternErr *rules.InvalidPatternError
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, rules.ErrEmptyPattern),
		errors.Is(err, rules.ErrEmptyName),
		errors.Is(err, rules.ErrUnknownPatternType),
		errors.As(err, &patternErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.serverError(w, r, "rule operation failed", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.WithRequestID(getRequestID(r.Context())).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

func ruleID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
