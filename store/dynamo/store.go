package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/valuecmp"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Store provides record persistence on DynamoDB.
type Store struct {
	client API
	config Config
	newKey func() string
}

var _ adapter.Store = (*Store)(nil)

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		newKey: uuid.NewString,
	}
}

// TableName returns the table holding records of kind.
func (s *Store) TableName(kind string) string {
	return s.config.TablePrefix + kind
}

// ScanStats is the metadata returned by Run.
type ScanStats struct {
	Pages        int
	ScannedCount int32
	Count        int32
}

// NewQuery starts a scan of c's table.
func (s *Store) NewQuery(c adapter.Collection) adapter.QueryBuilder {
	return newQuery(s.TableName(c.Kind), c.Kind)
}

// Run scans the table, then orders and paginates the matches.
func (s *Store) Run(ctx context.Context, qb adapter.QueryBuilder) (adapter.Result, error) {
	q, ok := qb.(*Query)
	if !ok {
		return adapter.Result{}, adapter.ErrForeignQuery
	}
	if q.err != nil {
		return adapter.Result{}, q.err
	}

	filterExpr, names, values := q.Expression()
	if s.config.SoftDelete {
		if filterExpr != "" {
			filterExpr = fmt.Sprintf("(%s) AND (%s)", filterExpr, TTLFilterExpr())
		} else {
			filterExpr = TTLFilterExpr()
		}
		names = mergeExprNames(names, TTLFilterNames(s.config.TTLAttribute))
		values = mergeExprValues(values, TTLFilterValues())
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(q.table),
		ConsistentRead:            aws.Bool(true),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if filterExpr != "" {
		input.FilterExpression = aws.String(filterExpr)
	}

	var (
		stats   ScanStats
		records []adapter.Record
	)
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return adapter.Result{}, err
		}
		stats.Pages++
		stats.ScannedCount += page.ScannedCount
		stats.Count += page.Count
		for _, raw := range page.Items {
			rec, err := toRecord(raw)
			if err != nil {
				return adapter.Result{}, err
			}
			records = append(records, rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		for _, o := range q.sorts {
			n := valuecmp.Order(records[i][o.Field], records[j][o.Field])
			if n == 0 {
				continue
			}
			if o.Desc {
				return n > 0
			}
			return n < 0
		}
		return false
	})
	if q.offset > 0 {
		if q.offset >= len(records) {
			records = nil
		} else {
			records = records[q.offset:]
		}
	}
	if q.limit >= 0 && q.limit < len(records) {
		records = records[:q.limit]
	}
	if records == nil {
		records = []adapter.Record{}
	}
	return adapter.Result{Records: records, Meta: stats}, nil
}

// Get retrieves a record by key. Missing and soft-deleted records are (nil, nil).
func (s *Store) Get(ctx context.Context, c adapter.Collection, id any) (adapter.Record, error) {
	key, err := keyFor(c, id)
	if err != nil {
		return nil, err
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.TableName(c.Kind)),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	if s.config.SoftDelete && IsDeleted(result.Item, s.config.TTLAttribute) {
		return nil, nil
	}
	return toRecord(result.Item)
}

// Create assigns a UUID key to each record and writes them in one transaction.
func (s *Store) Create(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	if len(records) > s.config.MaxTransactItems {
		return adapter.Result{}, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(records), s.config.MaxTransactItems)
	}
	if len(records) == 0 {
		return adapter.Result{Records: []adapter.Record{}}, nil
	}

	table := aws.String(s.TableName(c.Kind))
	items := make([]types.TransactWriteItem, 0, len(records))
	puts := make([]map[string]types.AttributeValue, 0, len(records))
	for _, r := range records {
		rec := r.Clone()
		if rec == nil {
			rec = adapter.Record{}
		}
		rec[c.IDAttribute] = s.newKey()
		item, err := toItem(rec)
		if err != nil {
			return adapter.Result{}, err
		}
		puts = append(puts, item)
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                table,
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": c.IDAttribute},
			},
		})
	}

	out, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return adapter.Result{}, mapCreateTransactionError(err)
	}

	created := make([]adapter.Record, 0, len(puts))
	for _, item := range puts {
		rec, err := toRecord(item)
		if err != nil {
			return adapter.Result{}, err
		}
		created = append(created, rec)
	}
	return adapter.Result{Records: created, Meta: out}, nil
}

// Put overwrites keyed records. Batches over MaxTransactItems are split into
// several transactions; each chunk is atomic, the whole batch is not.
func (s *Store) Put(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	table := aws.String(s.TableName(c.Kind))
	items := make([]types.TransactWriteItem, 0, len(records))
	written := make([]adapter.Record, 0, len(records))
	for i, r := range records {
		if r[c.IDAttribute] == nil {
			return adapter.Result{}, fmt.Errorf("%w: record %d has no %q", ErrMissingKey, i, c.IDAttribute)
		}
		item, err := toItem(r)
		if err != nil {
			return adapter.Result{}, err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: table, Item: item},
		})
		written = append(written, r.Clone())
	}
	if err := s.transact(ctx, items); err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Records: written}, nil
}

// Delete removes a record, or marks it deleted when SoftDelete is on.
func (s *Store) Delete(ctx context.Context, c adapter.Collection, id any) (adapter.Result, error) {
	key, err := keyFor(c, id)
	if err != nil {
		return adapter.Result{}, err
	}
	table := aws.String(s.TableName(c.Kind))

	if !s.config.SoftDelete {
		out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: table,
			Key:       key,
		})
		if err != nil {
			return adapter.Result{}, err
		}
		return adapter.Result{Meta: out}, nil
	}

	update := s.softDelete(c, key)
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 table,
		Key:                       key,
		UpdateExpression:          update.UpdateExpression,
		ConditionExpression:       aws.String("attribute_exists(#pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  update.ExpressionAttributeNames,
		ExpressionAttributeValues: update.ExpressionAttributeValues,
	})
	if err != nil {
		// Missing or already deleted.
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return adapter.Result{}, nil
		}
		return adapter.Result{}, err
	}
	return adapter.Result{Meta: out}, nil
}

// DeleteMany removes records in transactions of at most MaxTransactItems.
func (s *Store) DeleteMany(ctx context.Context, c adapter.Collection, ids []any) (adapter.Result, error) {
	table := aws.String(s.TableName(c.Kind))
	items := make([]types.TransactWriteItem, 0, len(ids))
	for _, id := range ids {
		key, err := keyFor(c, id)
		if err != nil {
			return adapter.Result{}, err
		}
		if s.config.SoftDelete {
			update := s.softDelete(c, key)
			update.TableName = table
			update.ConditionExpression = aws.String("attribute_exists(#pk)")
			items = append(items, types.TransactWriteItem{Update: update})
			continue
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{TableName: table, Key: key},
		})
	}
	if err := s.transact(ctx, items); err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{}, nil
}

// softDelete builds an update that stamps the TTL attribute with the current time.
func (s *Store) softDelete(c adapter.Collection, key PK) *types.Update {
	return &types.Update{
		Key:              key,
		UpdateExpression: aws.String("SET #ttl = :now"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  c.IDAttribute,
			"#ttl": s.config.TTLAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(time.Now().Unix(), 10),
			},
		},
	}
}

// transact writes items in chunks of MaxTransactItems.
func (s *Store) transact(ctx context.Context, items []types.TransactWriteItem) error {
	for start := 0; start < len(items); start += s.config.MaxTransactItems {
		end := min(start+s.config.MaxTransactItems, len(items))
		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		}); err != nil {
			return err
		}
	}
	return nil
}

// mapCreateTransactionError maps a failed key condition to ErrAlreadyExists.
func mapCreateTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return ErrAlreadyExists
			}
		}
	}
	return err
}
