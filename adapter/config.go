package adapter

import "log/slog"

// Config holds configuration for an Adapter.
type Config struct {
	// Hooks run around every operation. Default: NopHooks
	Hooks Hooks

	// Operators extends or overrides the default operator table for every call
	// made through the adapter. Per-call Options.Operators take precedence.
	Operators map[Operator]OperatorFunc

	// Logger receives operation diagnostics. Default: slog.Default()
	Logger *slog.Logger

	// MaxConcurrency bounds the per-record lookups issued by UpdateMany.
	// Default: 16
	MaxConcurrency int
}

// DefaultConfig returns a configuration with no hooks and no operator overrides.
func DefaultConfig() Config {
	return Config{
		Hooks:          NopHooks{},
		MaxConcurrency: 16,
	}
}

// validate fills unset values with defaults.
func (c *Config) validate() {
	if c.Hooks == nil {
		c.Hooks = NopHooks{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 16
	}
}
