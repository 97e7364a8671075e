// Package classifier sends text to an external language model and turns the
// model's answer into candidate PII records. The model is treated as an
// untrusted black box: whatever comes back is parsed defensively here and
// then re-validated against the source text by the detection engine.
package classifier

import (
	"context"
	"time"

	"github.com/aegishield/aegishield/internal/detect"
)

// DefaultMaxInputChars bounds how much text is sent to the model. Longer
// inputs are truncated, never split into multiple calls.
const DefaultMaxInputChars = 8000

// Config contains the remote classifier configuration.
type Config struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	Model         string        `yaml:"model" mapstructure:"model"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxInputChars int           `yaml:"max_input_chars" mapstructure:"max_input_chars"`
}

// Classifier produces raw AI detection records for a piece of text.
type Classifier interface {
	// Classify returns the model's candidate records. A nil error with an
	// empty slice means the model found nothing; an error means the call
	// itself failed and the caller should fall back to pattern-only results.
	Classify(ctx context.Context, text string) ([]detect.AIRecord, error)

	// Enabled reports whether Classify will actually reach a model.
	Enabled() bool
}

// New selects a backend from the configuration. An unconfigured or disabled
// classifier still satisfies the interface so callers never branch on nil.
func New(cfg Config) Classifier {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return disabled{}
	}
	return newRemote(cfg)
}

type disabled struct{}

func (disabled) Classify(ctx context.Context, text string) ([]detect.AIRecord, error) {
	return nil, nil
}

func (disabled) Enabled() bool { return false }
