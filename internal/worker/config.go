// Package worker runs the portal's background jobs: periodic platform
// sweeps and dbt catalog warm-ups.
package worker

import (
	"time"
)

// Job types accepted on the Pub/Sub subscription.
const (
	JobTypeSweep       = "sweep"
	JobTypeCatalogWarm = "catalog_warm"
)

// JobConfig holds configuration for the sweep job.
type JobConfig struct {
	// Interval is the time between scheduled sweeps.
	// Default: 60 seconds
	Interval time.Duration

	// Timeout bounds a single sweep or warm-up.
	// Default: 30 seconds
	Timeout time.Duration

	// Project is the dbt project warmed when a message names none.
	Project string
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
	}
}

func (c JobConfig) withDefaults() JobConfig {
	d := DefaultJobConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
