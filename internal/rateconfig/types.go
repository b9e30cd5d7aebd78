// Package rateconfig owns the admin-mutable commission rate configuration:
// the default rate, per-user overrides, role exclusions and the monthly
// withdrawal window.
package rateconfig

import (
	"errors"
	"fmt"
	"time"
)

// Role is the closed set of platform roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMarketer Role = "marketer"
	RoleUser     Role = "user"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleMarketer, RoleUser:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Rates are expressed in basis points: 10000 bps = 100%.
const (
	MinRateBps     = 0
	MaxRateBps     = 10000
	DefaultRateBps = 1000 // 10%
)

// Sentinel errors for rate resolution and config writes.
var (
	ErrInvalidRate  = errors.New("rate must be between 0 and 10000 basis points")
	ErrRoleExcluded = errors.New("role is excluded from commission")
)

// Window is the day-of-month range in which withdrawal requests are accepted.
type Window struct {
	StartDay int `json:"start_day"`
	EndDay   int `json:"end_day"`
}

// Validate rejects invalid window configuration at write time.
func (w Window) Validate() error {
	if w.StartDay < 1 || w.StartDay > 31 {
		return fmt.Errorf("window start day %d out of range 1-31", w.StartDay)
	}
	if w.EndDay < 1 || w.EndDay > 31 {
		return fmt.Errorf("window end day %d out of range 1-31", w.EndDay)
	}
	if w.StartDay > w.EndDay {
		return fmt.Errorf("window start day %d after end day %d", w.StartDay, w.EndDay)
	}
	return nil
}

// RateConfig is the singleton commission configuration.
type RateConfig struct {
	DefaultRateBps int64     `json:"default_rate_bps"`
	ExcludedRoles  []Role    `json:"excluded_roles"`
	Window         Window    `json:"withdrawal_window"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RoleExcluded reports whether the role is ineligible for commission.
func (c *RateConfig) RoleExcluded(role Role) bool {
	for _, r := range c.ExcludedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate checks the whole config before persisting it.
func (c *RateConfig) Validate() error {
	if c.DefaultRateBps < MinRateBps || c.DefaultRateBps > MaxRateBps {
		return ErrInvalidRate
	}
	for _, r := range c.ExcludedRoles {
		if _, err := ParseRole(string(r)); err != nil {
			return err
		}
	}
	return c.Window.Validate()
}

// DefaultConfig returns the configuration seeded on first read:
// 10% default rate, admins and marketers excluded, window days 26-30.
func DefaultConfig() *RateConfig {
	return &RateConfig{
		DefaultRateBps: DefaultRateBps,
		ExcludedRoles:  []Role{RoleAdmin, RoleMarketer},
		Window:         Window{StartDay: 26, EndDay: 30},
		UpdatedAt:      time.Now().UTC(),
	}
}

// UserRate is a per-user commission rate override.
type UserRate struct {
	UserID    string    `json:"user_id"`
	RateBps   int64     `json:"rate_bps"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
