package domain

import "time"

// Feed is a named upstream JSON endpoint served through the gateway.
type Feed struct {
	Name          string
	URL           string
	Headers       map[string]string
	RetryAttempts int
	RetryDelay    time.Duration
	CacheTTL      time.Duration
}
