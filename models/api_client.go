package models

import (
	"time"

	"github.com/google/uuid"
)

// APIClient represents a caller allowed to use the search API
type APIClient struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"key_prefix"`
	KeyHash         string     `json:"-"` // Never serialize key hash
	RateLimitPerMin int        `json:"rate_limit_per_min"`
	Disabled        bool       `json:"disabled"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}
