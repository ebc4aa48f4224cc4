package config

import "time"

// ControlFlowConfig bounds do/while loops. The values are tunable defaults,
// not invariants.
type ControlFlowConfig struct {
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations,omitempty"`
	MaxDuration   string  `yaml:"max_duration" json:"max_duration,omitempty"`
	MaxCost       float64 `yaml:"max_cost" json:"max_cost,omitempty"`

	// cost = bytes processed * CostPerByte + elapsed ms * CostPerMillisecond
	CostPerByte        float64 `yaml:"cost_per_byte" json:"cost_per_byte,omitempty"`
	CostPerMillisecond float64 `yaml:"cost_per_millisecond" json:"cost_per_millisecond,omitempty"`
}

// DefaultControlFlowConfig returns the default do/while caps.
func DefaultControlFlowConfig() ControlFlowConfig {
	return ControlFlowConfig{
		MaxIterations:      100,
		MaxDuration:        "30s",
		MaxCost:            1000,
		CostPerByte:        0.001,
		CostPerMillisecond: 0.01,
	}
}

// GetMaxDuration returns the wall-clock cap as a duration.
func (c ControlFlowConfig) GetMaxDuration() time.Duration {
	return parseDuration(c.MaxDuration, 30*time.Second)
}
