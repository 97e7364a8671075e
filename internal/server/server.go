// Package server exposes the detection engine over HTTP: scan, redact and
// highlight operations, custom rule management, and a WebSocket feed of scan
// activity for dashboards.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aegishield/aegishield/internal/audit"
	"github.com/aegishield/aegishield/internal/cache"
	"github.com/aegishield/aegishield/internal/classifier"
	"github.com/aegishield/aegishield/internal/config"
	"github.com/aegishield/aegishield/internal/detect"
	"github.com/aegishield/aegishield/internal/logger"
	"github.com/aegishield/aegishield/internal/rules"
	"github.com/aegishield/aegishield/internal/websocket"
)

// Version is the service version reported by /info.
const Version = "0.1.0"

// RuleStore is the persistence surface the server needs for custom rules.
type RuleStore interface {
	Create(ctx context.Context, name string, pt rules.PatternType, userPattern string, severity detect.Severity, enabled bool) (*rules.CustomRule, error)
	Update(ctx context.Context, id int64, name string, pt rules.PatternType, userPattern string, severity detect.Severity, enabled bool) (*rules.CustomRule, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*rules.CustomRule, error)
	List(ctx context.Context) ([]rules.CustomRule, error)
	ListEnabled(ctx context.Context) ([]rules.CustomRule, error)
}

// Server is the AegiShield HTTP server.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	engine     *detect.Engine
	classifier classifier.Classifier
	ruleStore  RuleStore
	scanCache  *cache.ScanCache
	auditor    *audit.Writer
	router     *mux.Router
	server     *http.Server
	wsHub      *websocket.Hub
	limiter    *ipLimiter
	startTime  time.Time
}

// New creates a new server instance. scanCache may be nil when caching is
// disabled; auditor must be non-nil (use a disabled writer).
func New(cfg *config.Config, log *logger.Logger, store RuleStore, cls classifier.Classifier, scanCache *cache.ScanCache, auditor *audit.Writer) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastScans:       true,
		BroadcastRules:       true,
		BroadcastSystem:      true,
		BroadcastConnections: true,
	}, log.WithComponent("websocket").Logger)

	server := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		engine:     detect.New(cfg.Detection.EngineConfig()),
		classifier: cls,
		ruleStore:  store,
		scanCache:  scanCache,
		auditor:    auditor,
		router:     mux.NewRouter(),
		wsHub:      wsHub,
		startTime:  time.Now(),
	}

	if cfg.Server.RateLimit.Enabled {
		server.limiter = newIPLimiter(cfg.Server.RateLimit)
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for dashboards
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
	api.HandleFunc("/highlight", s.handleHighlight).Methods("POST")

	api.HandleFunc("/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/rules", s.handleCreateRule).Methods("POST")
	api.HandleFunc("/rules/{id:[0-9]+}", s.handleGetRule).Methods("GET")
	api.HandleFunc("/rules/{id:[0-9]+}", s.handleUpdateRule).Methods("PUT")
	api.HandleFunc("/rules/{id:[0-9]+}", s.handleDeleteRule).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting AegiShield server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("classifier_enabled", s.classifier.Enabled()),
		zap.Bool("cache_enabled", s.scanCache != nil),
		zap.Bool("rate_limit_enabled", s.limiter != nil),
	)

	go s.wsHub.Run()
	if s.limiter != nil {
		s.limiter.startCleanup()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping AegiShield server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":               "aegishield",
		"version":            Version,
		"uptime":             time.Since(s.startTime).String(),
		"builtin_rules":      len(detect.BuiltinRules()),
		"classifier_enabled": s.classifier.Enabled(),
		"cache_enabled":      s.scanCache != nil,
	})
}

// handleWebSocket handles WebSocket connections for dashboards
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
