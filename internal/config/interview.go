package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// InterviewConfig tunes the interview flow.
type InterviewConfig struct {
	QuestionQuota  int           `yaml:"question_quota"`
	TypingDelay    time.Duration `yaml:"typing_delay"`
	AdvanceDelay   time.Duration `yaml:"advance_delay"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultInterview returns the production interview tuning.
func DefaultInterview() InterviewConfig {
	return InterviewConfig{
		QuestionQuota:  6,
		TypingDelay:    1200 * time.Millisecond,
		AdvanceDelay:   1500 * time.Millisecond,
		SettleDelay:    time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// LoadInterview reads interview tuning from a YAML file. Fields absent from
// the file keep their defaults.
func LoadInterview(filename string) (*InterviewConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read interview config %s: %w", filename, err)
	}

	cfg := DefaultInterview()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse interview config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid interview config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the interview tuning.
func (c InterviewConfig) Validate() error {
	if c.QuestionQuota <= 0 {
		return fmt.Errorf("question_quota must be > 0")
	}
	if c.TypingDelay < 0 || c.AdvanceDelay < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	return nil
}
