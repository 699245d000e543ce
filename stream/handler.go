// Package stream provides a DynamoDB Streams handler that reports record changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/store/dynamo"
)

// ChangeOp classifies a Change.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeModify ChangeOp = "modify"
	ChangeRemove ChangeOp = "remove"
)

// Change describes one record change observed on a stream.
type Change struct {
	Op      ChangeOp
	EventID string
	Mapper  *adapter.Mapper
	Key     adapter.Record

	// PK is Key in its native form, ready for a GetItem or DeleteItem on the
	// table the change came from.
	PK dynamo.PK

	// Old and New are the record images; either may be nil depending on Op
	// and the stream view type.
	Old adapter.Record
	New adapter.Record

	// SoftDelete is set when a remove was a TTL stamp rather than a physical delete.
	SoftDelete bool
}

// Listener receives changes. Returning an error fails the batch so the
// stream retries it.
type Listener interface {
	OnChange(ctx context.Context, c Change) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, c Change) error

// OnChange calls f.
func (f ListenerFunc) OnChange(ctx context.Context, c Change) error { return f(ctx, c) }

// Config holds configuration for the stream handler.
type Config struct {
	// TablePrefix must match the store's prefix so tables map back to kinds.
	TablePrefix string

	// TTLAttribute is the soft-delete attribute.
	// Default: "ttl"
	TTLAttribute string
}

// DefaultConfig returns the settings matching dynamo.DefaultConfig.
func DefaultConfig() Config {
	return Config{TTLAttribute: "ttl"}
}

func (c *Config) validate() {
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
}

// Handler processes DynamoDB stream events for tables written by dynamo.Store.
type Handler struct {
	registry *adapter.Registry
	listener Listener
	config   Config
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(registry *adapter.Registry, listener Listener, config Config, logger *slog.Logger) *Handler {
	config.validate()
	if registry == nil {
		registry = adapter.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		listener: listener,
		config:   config,
		logger:   logger,
	}
}

// HandleChanges processes a batch of stream records in order.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord classifies a single stream record and dispatches it.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	table := tableFromARN(record.EventSourceArn)
	kind, ok := strings.CutPrefix(table, h.config.TablePrefix)
	if !ok {
		return nil
	}
	m, ok := h.registry.ByKind(kind)
	if !ok {
		h.logger.Debug("skipping record for unmapped table", "table", table, "eventID", record.EventID)
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, h.config.TTLAttribute)
	newTTL := getNumberAttr(record.Change.NewImage, h.config.TTLAttribute)

	change := Change{EventID: record.EventID, Mapper: m}
	switch record.EventName {
	case "INSERT":
		change.Op = ChangeInsert
	case "MODIFY":
		switch {
		case oldTTL == 0 && newTTL != 0:
			change.Op = ChangeRemove
			change.SoftDelete = true
		case oldTTL != 0:
			// Already deleted; the write is not visible to readers.
			return nil
		default:
			change.Op = ChangeModify
		}
	case "REMOVE":
		if oldTTL != 0 {
			// TTL expiry of a soft-deleted item, reported when it was stamped.
			return nil
		}
		change.Op = ChangeRemove
	default:
		return nil
	}

	var err error
	if change.PK, err = ConvertStreamKey(record.Change.Keys); err != nil {
		return fmt.Errorf("convert keys: %w", err)
	}
	if change.Key, err = ConvertImage(record.Change.Keys); err != nil {
		return fmt.Errorf("convert keys: %w", err)
	}
	if change.Old, err = ConvertImage(record.Change.OldImage); err != nil {
		return fmt.Errorf("convert old image: %w", err)
	}
	if change.New, err = ConvertImage(record.Change.NewImage); err != nil {
		return fmt.Errorf("convert new image: %w", err)
	}

	h.logger.Debug("dispatching change",
		"op", string(change.Op),
		"mapper", m.Name,
		"key", change.Key[m.ID()],
	)
	if h.listener == nil {
		return nil
	}
	return h.listener.OnChange(ctx, change)
}

// tableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/NAME/stream/LABEL.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
