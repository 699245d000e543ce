// Command lattice-stream is an AWS Lambda function that consumes DynamoDB
// Streams for lattice tables and logs each record change.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/lattice/internal/config"
	"github.com/jacentio/lattice/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stderr)

	registry, err := cfg.Registry()
	if err != nil {
		logger.Error("failed to build registry", "error", err)
		os.Exit(1)
	}

	scfg := stream.DefaultConfig()
	scfg.TablePrefix = cfg.TablePrefix
	h := stream.NewHandler(registry, stream.ListenerFunc(func(ctx context.Context, c stream.Change) error {
		logger.Info("record changed",
			"op", string(c.Op),
			"mapper", c.Mapper.Name,
			"key", c.Key[c.Mapper.ID()],
			"softDelete", c.SoftDelete,
			"eventID", c.EventID,
		)
		return nil
	}), scfg, logger)

	lambda.Start(h.HandleChanges)
}
