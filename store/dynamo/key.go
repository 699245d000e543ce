package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/adapter"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// keyFor builds the primary key of id in collection c.
func keyFor(c adapter.Collection, id any) (PK, error) {
	av, err := attributevalue.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return PK{c.IDAttribute: av}, nil
}

// toRecord converts a DynamoDB item to a record.
func toRecord(item map[string]types.AttributeValue) (adapter.Record, error) {
	rec := adapter.Record{}
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return rec, nil
}

// toItem converts a record to a DynamoDB item.
func toItem(rec adapter.Record) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}
