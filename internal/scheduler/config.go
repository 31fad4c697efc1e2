package scheduler

import (
	"time"

	appconfig "github.com/gridora/gridora/internal/config"
)

// Config controls sweep cadence and per-job knobs.
type Config struct {
	RunInterval        time.Duration
	JobTimeout         time.Duration
	RetentionDays      int
	PaymentMaxAttempts int
	OrderConfirmAfter  time.Duration
	EnabledJobs        []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        time.Minute,
		JobTimeout:         30 * time.Second,
		RetentionDays:      90,
		PaymentMaxAttempts: 3,
		OrderConfirmAfter:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaults.RetentionDays
	}
	if c.PaymentMaxAttempts <= 0 {
		c.PaymentMaxAttempts = defaults.PaymentMaxAttempts
	}
	if c.OrderConfirmAfter <= 0 {
		c.OrderConfirmAfter = defaults.OrderConfirmAfter
	}
	return c
}

// ProvideConfig maps application configuration onto scheduler knobs.
func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval:        cfg.SchedulerInterval,
		RetentionDays:      cfg.ReadingRetentionDays,
		PaymentMaxAttempts: cfg.PaymentMaxAttempts,
		OrderConfirmAfter:  cfg.OrderConfirmAfter,
	}.withDefaults()
}
