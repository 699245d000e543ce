package dynamo

// Config holds configuration for the DynamoDB store.
type Config struct {
	// TablePrefix is prepended to every kind to form the table name.
	// Default: "" (table name = kind)
	TablePrefix string

	// SoftDelete marks items deleted by setting TTLAttribute to the current
	// time instead of removing them. Deleted items are hidden from reads and
	// removed later by DynamoDB's TTL sweeper.
	SoftDelete bool

	// TTLAttribute is the attribute used for soft deletes.
	// Default: "ttl"
	TTLAttribute string

	// MaxTransactItems caps the items per TransactWriteItems call.
	// Create fails with ErrBatchTooLarge beyond this; Put and DeleteMany chunk.
	// Default: 100 (the DynamoDB limit)
	// Max: 100
	MaxTransactItems int
}

// DefaultConfig returns hard-delete settings with the DynamoDB transaction limit.
func DefaultConfig() Config {
	return Config{
		TTLAttribute:     "ttl",
		MaxTransactItems: 100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
	if c.MaxTransactItems < 1 || c.MaxTransactItems > 100 {
		c.MaxTransactItems = 100
	}
}
