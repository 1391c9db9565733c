package matcher

import (
	"church-finance-service/pkg/errors"
)

// MatchingConfig controls candidate selection. DateWindowDays widens the
// posting-date window symmetrically; zero means same calendar date only.
type MatchingConfig struct {
	DateWindowDays int `json:"date_window_days" mapstructure:"date_window_days"`
}

// DefaultMatchingConfig returns the conservative default: exact amount, same
// calendar date.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		DateWindowDays: 0,
	}
}

// Validate checks the configuration bounds.
func (c *MatchingConfig) Validate() error {
	if c.DateWindowDays < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "date_window_days", c.DateWindowDays, nil)
	}
	if c.DateWindowDays > 31 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "date_window_days", c.DateWindowDays, nil)
	}
	return nil
}
