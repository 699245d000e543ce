package stream_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/stream"
)

const arn = "arn:aws:dynamodb:us-east-1:123456789012:table/posts/stream/2024-01-01T00:00:00.000"

func TestNewHandler(t *testing.T) {
	// Nil registry, listener and logger should not panic
	h := stream.NewHandler(nil, nil, stream.Config{}, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
	err := h.HandleChanges(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{EventName: "INSERT", EventSourceArn: arn}},
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// --- ConvertStreamKey Tests ---

func TestConvertStreamKey(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"id":      events.NewStringAttribute("test-id"),
		"version": events.NewNumberAttribute("42"),
		"data":    events.NewBinaryAttribute([]byte{0x01}),
	}

	pk, err := stream.ConvertStreamKey(streamKey)
	if err != nil {
		t.Fatalf("ConvertStreamKey: %v", err)
	}
	if len(pk) != 3 {
		t.Errorf("expected 3 keys, got %d", len(pk))
	}
	if v, ok := pk["id"].(*types.AttributeValueMemberS); !ok || v.Value != "test-id" {
		t.Error("expected string id")
	}
	if v, ok := pk["version"].(*types.AttributeValueMemberN); !ok || v.Value != "42" {
		t.Error("expected number version")
	}
	if _, ok := pk["data"].(*types.AttributeValueMemberB); !ok {
		t.Error("expected binary data")
	}
}

func TestConvertStreamKey_Nil(t *testing.T) {
	pk, err := stream.ConvertStreamKey(nil)
	if err != nil {
		t.Fatalf("ConvertStreamKey: %v", err)
	}
	if pk == nil {
		t.Fatal("expected non-nil PK for nil input")
	}
	if len(pk) != 0 {
		t.Errorf("expected empty PK, got %d keys", len(pk))
	}
}

func TestConvertStreamKey_DecimalNumber(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"price": events.NewNumberAttribute("19.99"),
	}

	pk, err := stream.ConvertStreamKey(streamKey)
	if err != nil {
		t.Fatalf("ConvertStreamKey: %v", err)
	}
	if v, ok := pk["price"].(*types.AttributeValueMemberN); !ok || v.Value != "19.99" {
		t.Error("expected decimal price")
	}
}

func TestConvertStreamKey_Composite(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"tenant": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"region": events.NewStringAttribute("eu"),
		}),
		"flag": events.NewBooleanAttribute(true),
	}

	pk, err := stream.ConvertStreamKey(streamKey)
	if err != nil {
		t.Fatalf("ConvertStreamKey: %v", err)
	}
	m, ok := pk["tenant"].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected map attribute, got %T", pk["tenant"])
	}
	if v, ok := m.Value["region"].(*types.AttributeValueMemberS); !ok || v.Value != "eu" {
		t.Errorf("expected nested region eu, got %v", m.Value["region"])
	}
	if v, ok := pk["flag"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Errorf("expected bool flag, got %v", pk["flag"])
	}
}

// --- ConvertImage Tests ---

func TestConvertImage(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id":     events.NewStringAttribute("p1"),
		"views":  events.NewNumberAttribute("3"),
		"draft":  events.NewBooleanAttribute(true),
		"note":   events.NewNullAttribute(),
		"tags":   events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("go")}),
		"author": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{"name": events.NewStringAttribute("ann")}),
	}

	rec, err := stream.ConvertImage(image)
	if err != nil {
		t.Fatalf("ConvertImage: %v", err)
	}
	want := adapter.Record{
		"id":     "p1",
		"views":  float64(3),
		"draft":  true,
		"note":   nil,
		"tags":   []any{"go"},
		"author": map[string]any{"name": "ann"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("expected %#v, got %#v", want, rec)
	}
}

func TestConvertImage_Nil(t *testing.T) {
	rec, err := stream.ConvertImage(nil)
	if err != nil || rec != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", rec, err)
	}
}

// --- HandleChanges Tests ---

func TestHandler_HandleChanges_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil, stream.DefaultConfig(), nil)

	err := h.HandleChanges(context.Background(), events.DynamoDBEvent{})
	if err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandler_HandleChanges_DispatchesInOrder(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&adapter.Mapper{Name: "post", Kind: "posts"})

	var ops []stream.ChangeOp
	h := stream.NewHandler(reg, stream.ListenerFunc(func(ctx context.Context, c stream.Change) error {
		ops = append(ops, c.Op)
		return nil
	}), stream.DefaultConfig(), nil)

	img := map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("p1")}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{EventName: "INSERT", EventSourceArn: arn, Change: events.DynamoDBStreamRecord{Keys: img, NewImage: img}},
			{EventName: "MODIFY", EventSourceArn: arn, Change: events.DynamoDBStreamRecord{Keys: img, OldImage: img, NewImage: img}},
			{EventName: "REMOVE", EventSourceArn: arn, Change: events.DynamoDBStreamRecord{Keys: img, OldImage: img}},
		},
	}

	if err := h.HandleChanges(context.Background(), event); err != nil {
		t.Fatalf("HandleChanges: %v", err)
	}
	want := []stream.ChangeOp{stream.ChangeInsert, stream.ChangeModify, stream.ChangeRemove}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("expected %v, got %v", want, ops)
	}
}

func TestHandler_HandleChanges_StopsOnError(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&adapter.Mapper{Name: "post", Kind: "posts"})

	boom := errors.New("boom")
	calls := 0
	h := stream.NewHandler(reg, stream.ListenerFunc(func(ctx context.Context, c stream.Change) error {
		calls++
		return boom
	}), stream.DefaultConfig(), nil)

	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{EventName: "INSERT", EventSourceArn: arn},
			{EventName: "INSERT", EventSourceArn: arn},
		},
	}

	if err := h.HandleChanges(context.Background(), event); !errors.Is(err, boom) {
		t.Errorf("expected listener error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before stopping, got %d", calls)
	}
}
