package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/aegishield/aegishield/internal/detect"
)

// StoreConfig contains database configuration for the rule store.
type StoreConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Store persists custom rules in PostgreSQL.
//
// Rule IDs are assigned by the store from a millisecond clock, not by the
// database, so an ID is never reused even after its rule is deleted.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger

	idMu   sync.Mutex
	lastID int64
}

const schema = `
CREATE TABLE IF NOT EXISTS custom_rules (
	id               BIGINT PRIMARY KEY,
	name             TEXT NOT NULL,
	pattern_type     TEXT NOT NULL,
	user_pattern     TEXT NOT NULL,
	compiled_pattern TEXT NOT NULL,
	severity         TEXT NOT NULL,
	enabled          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
)`

// NewStore connects to PostgreSQL and ensures the rules table exists.
func NewStore(config *StoreConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize rule store: %w", err)
	}

	logger.Info("Rule store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create custom_rules table: %w", err)
	}
	return nil
}

// nextID returns a strictly increasing millisecond timestamp. Two rules
// created within the same millisecond still get distinct IDs.
func (s *Store) nextID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Create compiles and persists a new rule. The compile error is returned
// untouched so callers can distinguish empty input from a bad expression.
func (s *Store) Create(ctx context.Context, name string, pt PatternType, userPattern string, severity detect.Severity, enabled bool) (*CustomRule, error) {
	compiled, err := Compile(userPattern, pt)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &CustomRule{
		ID:              s.nextID(),
		Name:            strings.TrimSpace(name),
		PatternType:     pt,
		UserPattern:     userPattern,
		CompiledPattern: compiled,
		Severity:        normalizeSeverity(severity),
		Enabled:         enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rule.Name == "" {
		return nil, ErrEmptyName
	}

	query := `
		INSERT INTO custom_rules (id, name, pattern_type, user_pattern, compiled_pattern, severity, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.PatternType, rule.UserPattern,
		rule.CompiledPattern, rule.Severity, rule.Enabled,
		rule.CreatedAt, rule.UpdatedAt,
	); err != nil {
		s.logger.Error("Failed to insert rule", zap.Error(err), zap.String("name", rule.Name))
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	s.logger.Debug("Rule created",
		zap.Int64("id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("pattern_type", string(rule.PatternType)))

	return rule, nil
}

// Update rewrites an existing rule. The pattern is always recompiled from
// the submitted user pattern; the stored compiled form is never trusted.
func (s *Store) Update(ctx context.Context, id int64, name string, pt PatternType, userPattern string, severity detect.Severity, enabled bool) (*CustomRule, error) {
	compiled, err := Compile(userPattern, pt)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	query := `
		UPDATE custom_rules
		SET name = $2, pattern_type = $3, user_pattern = $4, compiled_pattern = $5,
		    severity = $6, enabled = $7, updated_at = $8
		WHERE id = $1
		RETURNING id, name, pattern_type, user_pattern, compiled_pattern, severity, enabled, created_at, updated_at`

	var rule CustomRule
	err = s.db.GetContext(ctx, &rule, query,
		id, name, pt, userPattern, compiled,
		normalizeSeverity(severity), enabled, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		s.logger.Error("Failed to update rule", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	s.logger.Debug("Rule updated", zap.Int64("id", rule.ID), zap.String("name", rule.Name))
	return &rule, nil
}

// SetEnabled toggles a rule without recompiling its pattern.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE custom_rules SET enabled = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule permanently. The ID is not reused.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custom_rules WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Failed to delete rule", zap.Error(err), zap.Int64("id", id))
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}

	s.logger.Debug("Rule deleted", zap.Int64("id", id))
	return nil
}

// Get returns a single rule by ID.
func (s *Store) Get(ctx context.Context, id int64) (*CustomRule, error) {
	var rule CustomRule
	err := s.db.GetContext(ctx, &rule,
		`SELECT * FROM custom_rules WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// List returns all rules ordered by creation time.
func (s *Store) List(ctx context.Context) ([]CustomRule, error) {
	rules := []CustomRule{}
	err := s.db.SelectContext(ctx, &rules,
		`SELECT * FROM custom_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ListEnabled returns only the rules that should participate in scans.
func (s *Store) ListEnabled(ctx context.Context) ([]CustomRule, error) {
	rules := []CustomRule{}
	err := s.db.SelectContext(ctx, &rules,
		`SELECT * FROM custom_rules WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}
	return rules, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalizeSeverity(sev detect.Severity) detect.Severity {
	switch sev {
	case detect.SeverityHigh, detect.SeverityMedium, detect.SeverityLow:
		return sev
	default:
		return detect.SeverityMedium
	}
}

// maskDatabaseURL hides the password portion of a connection URL for logs.
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
