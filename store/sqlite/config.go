package sqlite

import "log/slog"

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file. ":memory:" keeps the database in memory.
	// Default: "lattice.db"
	Path string

	// SequenceTable holds the key sequence of every kind.
	// Default: "lattice_sequences"
	SequenceTable string

	// Logger receives statement timings at debug level. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns a file-backed configuration.
func DefaultConfig() Config {
	return Config{
		Path:          "lattice.db",
		SequenceTable: "lattice_sequences",
	}
}

// validate fills unset values with defaults.
func (c *Config) validate() {
	if c.Path == "" {
		c.Path = "lattice.db"
	}
	if c.SequenceTable == "" {
		c.SequenceTable = "lattice_sequences"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
