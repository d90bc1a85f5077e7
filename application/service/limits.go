// Package service provides application layer services that orchestrate domain operations.
package service

import "github.com/furon-kuina/semleaf/internal/config"

// Limits bounds result set sizes.
type Limits struct {
	defaultLimit int
	maxLimit     int
}

// NewLimits creates Limits. Non-positive values fall back to the configured defaults.
func NewLimits(defaultLimit, maxLimit int) Limits {
	if maxLimit <= 0 {
		maxLimit = config.DefaultMaxSearchLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = config.DefaultSearchLimit
	}
	return Limits{defaultLimit: min(defaultLimit, maxLimit), maxLimit: maxLimit}
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return NewLimits(config.DefaultSearchLimit, config.DefaultMaxSearchLimit)
}

// Clamp maps a requested limit into [1, max], using the default for non-positive requests.
func (l Limits) Clamp(n int) int {
	if n <= 0 {
		return l.defaultLimit
	}
	return min(n, l.maxLimit)
}

// Default returns the limit used when a caller asks for none.
func (l Limits) Default() int { return l.defaultLimit }
