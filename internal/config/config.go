// Package config loads process settings for the lattice commands from the
// environment. A .env file in the working directory is loaded first.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/joho/godotenv/autoload"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/store/dynamo"
	"github.com/jacentio/lattice/store/memory"
	"github.com/jacentio/lattice/store/sqlite"
)

// Backend names accepted in LATTICE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds process configuration.
type Config struct {
	Backend          string
	SQLitePath       string
	TablePrefix      string
	SoftDelete       bool
	DynamoDBEndpoint string
	AWSProfile       string
	Mappers          []string
	Debug            bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	c := &Config{
		Backend:          getEnvWithDefault("LATTICE_BACKEND", BackendSQLite),
		SQLitePath:       getEnvWithDefault("LATTICE_SQLITE_PATH", sqlite.DefaultConfig().Path),
		TablePrefix:      getEnvWithDefault("LATTICE_TABLE_PREFIX", ""),
		DynamoDBEndpoint: getEnvWithDefault("LATTICE_DYNAMODB_ENDPOINT", ""),
		AWSProfile:       getEnvWithDefault("AWS_PROFILE", ""),
		Debug:            getBoolEnvWithDefault("LATTICE_DEBUG", false),
		SoftDelete:       getBoolEnvWithDefault("LATTICE_SOFT_DELETE", false),
	}
	for _, m := range strings.Split(os.Getenv("LATTICE_MAPPERS"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			c.Mappers = append(c.Mappers, m)
		}
	}

	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendDynamoDB:
	default:
		return nil, fmt.Errorf("config: unknown LATTICE_BACKEND %q", c.Backend)
	}
	return c, nil
}

// Logger returns a text logger on w, at debug level when Debug is set.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Registry builds a registry from the Mappers entries, each of the form
// name[:kind[:idAttribute]]. Kind defaults to the name.
func (c *Config) Registry() (*adapter.Registry, error) {
	reg := adapter.NewRegistry()
	for _, entry := range c.Mappers {
		parts := strings.Split(entry, ":")
		if len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("config: invalid mapper %q", entry)
		}
		m := &adapter.Mapper{Name: parts[0], Kind: parts[0]}
		if len(parts) > 1 && parts[1] != "" {
			m.Kind = parts[1]
		}
		if len(parts) > 2 && parts[2] != "" {
			m.IDAttribute = parts[2]
		}
		reg.Register(m)
	}
	return reg, nil
}

// OpenStore opens the configured backend. The returned close function
// releases its resources.
func (c *Config) OpenStore(ctx context.Context, logger *slog.Logger) (adapter.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.Backend {
	case BackendMemory:
		return memory.New(), noop, nil

	case BackendSQLite:
		cfg := sqlite.DefaultConfig()
		cfg.Path = c.SQLitePath
		cfg.Logger = logger
		s, err := sqlite.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case BackendDynamoDB:
		client, err := c.DynamoDBClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		cfg := dynamo.DefaultConfig()
		cfg.TablePrefix = c.TablePrefix
		cfg.SoftDelete = c.SoftDelete
		return dynamo.New(client, cfg), noop, nil
	}
	return nil, nil, fmt.Errorf("config: unknown backend %q", c.Backend)
}

// DynamoDBClient builds a client from the default AWS configuration chain.
func (c *Config) DynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWSProfile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDBEndpoint)
		}
	}), nil
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnvWithDefault gets a boolean environment variable with a default fallback
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
