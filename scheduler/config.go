package scheduler

import (
	"time"

	"casecite-backend/models"
)

// Config bounds a scheduler run
type Config struct {
	PhaseQuotas        map[models.Phase]int `yaml:"phase_quotas"`
	MaxAttempts        int                  `yaml:"max_attempts"`
	WallClock          time.Duration        `yaml:"wall_clock"`
	AttemptTimeout     time.Duration        `yaml:"attempt_timeout"`
	MinCaseTarget      int                  `yaml:"min_case_target"`
	TargetStopEnabled  bool                 `yaml:"target_stop_enabled"`
	BlockedThreshold   int                  `yaml:"blocked_threshold"`
	RateLimitRetries   int                  `yaml:"rate_limit_retries"`
	RetryAfterCeiling  time.Duration        `yaml:"retry_after_ceiling"`
	GuaranteeAttempts  int                  `yaml:"guarantee_attempts"`
	GuaranteeWallClock time.Duration        `yaml:"guarantee_wall_clock"`
	UtilityWeight      float64              `yaml:"utility_weight"`
	CooldownKey        string               `yaml:"cooldown_key"`
}

// DefaultConfig returns the default scheduler budgets
func DefaultConfig() Config {
	return Config{
		PhaseQuotas: map[models.Phase]int{
			models.PhasePrimary:   4,
			models.PhaseFallback:  3,
			models.PhaseRescue:    2,
			models.PhaseMicro:     3,
			models.PhaseRevolving: 2,
			models.PhaseBrowse:    1,
		},
		MaxAttempts:        10,
		WallClock:          25 * time.Second,
		AttemptTimeout:     8 * time.Second,
		MinCaseTarget:      8,
		TargetStopEnabled:  true,
		BlockedThreshold:   2,
		RateLimitRetries:   1,
		RetryAfterCeiling:  3 * time.Second,
		GuaranteeAttempts:  3,
		GuaranteeWallClock: 10 * time.Second,
		UtilityWeight:      0.5,
		CooldownKey:        "lexical",
	}
}

// Validate replaces unusable values with defaults and reports what it changed
func (c *Config) Validate() []string {
	def := DefaultConfig()
	var warnings []string
	if c.PhaseQuotas == nil {
		c.PhaseQuotas = def.PhaseQuotas
	}
	for _, p := range models.PhaseOrder {
		if q, ok := c.PhaseQuotas[p]; !ok || q < 0 {
			c.PhaseQuotas[p] = def.PhaseQuotas[p]
			if ok {
				warnings = append(warnings, "scheduler: negative quota for phase "+string(p)+" replaced with default")
			}
		}
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = def.MaxAttempts
		warnings = append(warnings, "scheduler: negative max_attempts replaced with default")
	}
	if c.WallClock <= 0 {
		c.WallClock = def.WallClock
		warnings = append(warnings, "scheduler: non-positive wall_clock replaced with default")
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
		warnings = append(warnings, "scheduler: non-positive attempt_timeout replaced with default")
	}
	if c.BlockedThreshold <= 0 {
		c.BlockedThreshold = def.BlockedThreshold
		warnings = append(warnings, "scheduler: non-positive blocked_threshold replaced with default")
	}
	if c.RateLimitRetries < 0 {
		c.RateLimitRetries = 0
	}
	if c.GuaranteeAttempts < 0 {
		c.GuaranteeAttempts = 0
	}
	if c.GuaranteeWallClock <= 0 {
		c.GuaranteeWallClock = def.GuaranteeWallClock
	}
	if c.CooldownKey == "" {
		c.CooldownKey = def.CooldownKey
	}
	return warnings
}

func (c Config) quota(p models.Phase) int {
	return c.PhaseQuotas[p]
}
