package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"fintrack/internal/reconcile"
)

// PolicyFile is the on-disk shape of the reconciliation policy.
//
//	[reconcile]
//	paid_threshold = "0.9"
//	due_soon_days = 5
//	timeline_length = 6
type PolicyFile struct {
	Reconcile ReconcileSection `toml:"reconcile"`
}

type ReconcileSection struct {
	PaidThreshold  string `toml:"paid_threshold,omitempty"`
	DueSoonDays    *int   `toml:"due_soon_days,omitempty"`
	TimelineLength *int   `toml:"timeline_length,omitempty"`
}

// LoadPolicyFile reads a policy file. A missing file is not an error.
func LoadPolicyFile(path string) (PolicyFile, error) {
	var pf PolicyFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pf, nil
		}
		return pf, fmt.Errorf("reading policy file: %w", err)
	}
	if err := toml.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("parsing policy file: %w", err)
	}
	return pf, nil
}

// Policy resolves the reconciliation policy: defaults, then the policy file,
// then environment overrides.
func (c *Config) Policy() (reconcile.Policy, error) {
	p := reconcile.DefaultPolicy()

	if c.PolicyFile != "" {
		pf, err := LoadPolicyFile(c.PolicyFile)
		if err != nil {
			return p, err
		}
		if err := pf.Reconcile.apply(&p); err != nil {
			return p, fmt.Errorf("policy file %s: %w", c.PolicyFile, err)
		}
	}

	if c.PaidThreshold != "" {
		d, err := decimal.NewFromString(c.PaidThreshold)
		if err != nil {
			return p, fmt.Errorf("paid threshold: %w", err)
		}
		p.PaidThreshold = d
	}
	if c.DueSoonDays > 0 {
		p.DueSoonDays = c.DueSoonDays
	}
	if c.TimelineLength > 0 {
		p.TimelineLength = c.TimelineLength
	}

	if !p.PaidThreshold.IsPositive() || p.PaidThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return p, fmt.Errorf("paid threshold %s: must be in (0, 1]", p.PaidThreshold)
	}
	if p.DueSoonDays < 0 || p.TimelineLength < 1 {
		return p, fmt.Errorf("due soon days %d and timeline length %d: must be non-negative and positive", p.DueSoonDays, p.TimelineLength)
	}
	return p, nil
}

func (s ReconcileSection) apply(p *reconcile.Policy) error {
	if s.PaidThreshold != "" {
		d, err := decimal.NewFromString(s.PaidThreshold)
		if err != nil {
			return fmt.Errorf("paid_threshold: %w", err)
		}
		p.PaidThreshold = d
	}
	if s.DueSoonDays != nil {
		p.DueSoonDays = *s.DueSoonDays
	}
	if s.TimelineLength != nil {
		p.TimelineLength = *s.TimelineLength
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
}
