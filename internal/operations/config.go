package operations

import (
	"time"
)

// Default stage timeouts
const (
	DefaultStageTimeout  = 5 * time.Minute
	DefaultReportTimeout = 10 * time.Minute
)

// Config represents the pipeline execution configuration
type Config struct {
	// Stage-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Timeout for stages without an entry in StageTimeouts
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// NewConfig returns the default pipeline configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StageIDReport: DefaultReportTimeout,
		},
		DefaultTimeout: DefaultStageTimeout,
	}
}

// GetStageTimeout returns the timeout for a specific stage
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific stage
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}
