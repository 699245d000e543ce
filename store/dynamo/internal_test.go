package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/adapter"
)

// fakeAPI keeps items per table keyed by the string value of "id". Scan ignores
// the filter expression and returns every item in a single page.
type fakeAPI struct {
	tables   map[string]map[string]map[string]types.AttributeValue
	order    map[string][]string
	scans    []*dynamodb.ScanInput
	updates  []*dynamodb.UpdateItemInput
	txs      []*dynamodb.TransactWriteItemsInput
	txErr    error
	updErr   error
	scanPage int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
		order:  make(map[string][]string),
	}
}

func (f *fakeAPI) put(table string, item map[string]types.AttributeValue) {
	t := f.tables[table]
	if t == nil {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[table] = t
	}
	id := item["id"].(*types.AttributeValueMemberS).Value
	if _, ok := t[id]; !ok {
		f.order[table] = append(f.order[table], id)
	}
	t[id] = item
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.tables[*in.TableName][id]}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	var items []map[string]types.AttributeValue
	for _, id := range f.order[*in.TableName] {
		if item, ok := f.tables[*in.TableName][id]; ok {
			items = append(items, item)
		}
	}
	return &dynamodb.ScanOutput{
		Items:        items,
		Count:        int32(len(items)),
		ScannedCount: int32(len(items)),
	}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	delete(f.tables[*in.TableName], id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.updErr != nil {
		return nil, f.updErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.txs = append(f.txs, in)
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, item := range in.TransactItems {
		switch {
		case item.Put != nil:
			f.put(*item.Put.TableName, item.Put.Item)
		case item.Delete != nil:
			id := item.Delete.Key["id"].(*types.AttributeValueMemberS).Value
			delete(f.tables[*item.Delete.TableName], id)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var posts = adapter.Collection{Kind: "posts", IDAttribute: "id"}

func newTestStore(t *testing.T, cfg Config) (*Store, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	s := New(api, cfg)
	n := 0
	s.newKey = func() string {
		n++
		return fmt.Sprintf("k%d", n)
	}
	return s, api
}

// --- Config.validate Tests ---

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.validate()

	if cfg.TTLAttribute != "ttl" {
		t.Errorf("expected default TTLAttribute, got %q", cfg.TTLAttribute)
	}
	if cfg.MaxTransactItems != 100 {
		t.Errorf("expected MaxTransactItems 100, got %d", cfg.MaxTransactItems)
	}
}

func TestConfigValidate_MaxTransactItemsOverMax(t *testing.T) {
	cfg := Config{MaxTransactItems: 500}
	cfg.validate()

	if cfg.MaxTransactItems != 100 {
		t.Errorf("expected MaxTransactItems 100 for 500, got %d", cfg.MaxTransactItems)
	}
}

func TestConfigValidate_PreservesCustom(t *testing.T) {
	cfg := Config{TablePrefix: "app_", TTLAttribute: "expires", MaxTransactItems: 10}
	cfg.validate()

	if cfg.TablePrefix != "app_" || cfg.TTLAttribute != "expires" || cfg.MaxTransactItems != 10 {
		t.Errorf("custom values not preserved: %+v", cfg)
	}
}

// --- mapCreateTransactionError Tests ---

func TestMapCreateTransactionError_NilError(t *testing.T) {
	if err := mapCreateTransactionError(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapCreateTransactionError_NonTransactionError(t *testing.T) {
	originalErr := errors.New("some other error")
	if err := mapCreateTransactionError(originalErr); err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestMapCreateTransactionError_ConditionalCheckFailed(t *testing.T) {
	code := "ConditionalCheckFailed"
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{},
			{Code: &code},
		},
	}
	if err := mapCreateTransactionError(txErr); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMapCreateTransactionError_OtherCancellationCode(t *testing.T) {
	code := "ThrottlingError"
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}
	if err := mapCreateTransactionError(txErr); err != txErr {
		t.Errorf("expected original error, got %v", err)
	}
}

// --- Query Tests ---

func TestQuery_Expression(t *testing.T) {
	q := newQuery("posts", "posts")
	q.Where("title", adapter.Equal, "hello")
	q.Where("views", adapter.GreaterOrEqual, 10)

	expr, names, values := q.Expression()
	if expr != "(#f0 = :v0) AND (#f1 >= :v1)" {
		t.Errorf("unexpected expression %q", expr)
	}
	if names["#f0"] != "title" || names["#f1"] != "views" {
		t.Errorf("unexpected names %v", names)
	}
	if v, ok := values[":v1"].(*types.AttributeValueMemberN); !ok || v.Value != "10" {
		t.Errorf("unexpected :v1 %#v", values[":v1"])
	}
}

func TestQuery_NilEquality(t *testing.T) {
	q := newQuery("posts", "posts")
	q.Where("deleted", adapter.Equal, nil)

	expr, names, values := q.Expression()
	if expr != "(attribute_not_exists(#f0) OR attribute_type(#f0, :null0))" {
		t.Errorf("unexpected expression %q", expr)
	}
	if names["#f0"] != "deleted" {
		t.Errorf("unexpected names %v", names)
	}
	if v, ok := values[":null0"].(*types.AttributeValueMemberS); !ok || v.Value != "NULL" {
		t.Errorf("unexpected :null0 %#v", values[":null0"])
	}
}

func TestQuery_EmptyExpression(t *testing.T) {
	expr, names, values := newQuery("posts", "posts").Expression()
	if expr != "" || names != nil || values != nil {
		t.Errorf("expected empty expression, got %q %v %v", expr, names, values)
	}
}

// --- Store Tests ---

func TestStore_CreateSingleTransaction(t *testing.T) {
	s, api := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	res, err := s.Create(ctx, posts, []adapter.Record{{"title": "a"}, {"title": "b"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(api.txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(api.txs))
	}
	if n := len(api.txs[0].TransactItems); n != 2 {
		t.Fatalf("expected 2 transact items, got %d", n)
	}
	put := api.txs[0].TransactItems[0].Put
	if aws.ToString(put.ConditionExpression) != "attribute_not_exists(#pk)" || put.ExpressionAttributeNames["#pk"] != "id" {
		t.Errorf("unexpected put condition %q %v", aws.ToString(put.ConditionExpression), put.ExpressionAttributeNames)
	}
	if res.Records[0]["id"] != "k1" || res.Records[1]["id"] != "k2" {
		t.Errorf("unexpected keys %v %v", res.Records[0]["id"], res.Records[1]["id"])
	}
	if res.Records[0]["title"] != "a" {
		t.Errorf("unexpected record %v", res.Records[0])
	}
}

func TestStore_CreateBatchTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTransactItems = 2
	s, api := newTestStore(t, cfg)

	_, err := s.Create(context.Background(), posts, []adapter.Record{{}, {}, {}})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if len(api.txs) != 0 {
		t.Errorf("expected no transaction, got %d", len(api.txs))
	}
}

func TestStore_CreateFailureWritesNothing(t *testing.T) {
	s, api := newTestStore(t, DefaultConfig())
	code := "ConditionalCheckFailed"
	api.txErr = &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{}, {Code: &code}},
	}

	_, err := s.Create(context.Background(), posts, []adapter.Record{{"title": "a"}, {"title": "b"}})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if len(api.tables["posts"]) != 0 {
		t.Errorf("expected no items, got %d", len(api.tables["posts"]))
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t, DefaultConfig())

	rec, err := s.Get(context.Background(), posts, "nope")
	if err != nil || rec != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", rec, err)
	}
}

func TestStore_GetSoftDeleted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDelete = true
	s, api := newTestStore(t, cfg)
	api.put("posts", map[string]types.AttributeValue{
		"id":  &types.AttributeValueMemberS{Value: "k1"},
		"ttl": &types.AttributeValueMemberN{Value: "1"},
	})

	rec, err := s.Get(context.Background(), posts, "k1")
	if err != nil || rec != nil {
		t.Errorf("expected soft-deleted item hidden, got (%v, %v)", rec, err)
	}
}

func TestStore_RunOrdersAndPaginates(t *testing.T) {
	s, _ := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	if _, err := s.Create(ctx, posts, []adapter.Record{
		{"title": "c", "views": 3},
		{"title": "a", "views": 1},
		{"title": "b", "views": 2},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	q := s.NewQuery(posts).OrderBy("views", true).Offset(1).Limit(1)
	res, err := s.Run(ctx, q)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0]["title"] != "b" {
		t.Errorf("expected [b], got %v", res.Records)
	}
	stats, ok := res.Meta.(ScanStats)
	if !ok || stats.Pages != 1 || stats.ScannedCount != 3 {
		t.Errorf("unexpected meta %#v", res.Meta)
	}
}

func TestStore_RunSoftDeleteFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDelete = true
	cfg.TTLAttribute = "expires"
	s, api := newTestStore(t, cfg)

	q := s.NewQuery(posts).Where("title", adapter.Equal, "a")
	if _, err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("Run: %v", err)
	}

	in := api.scans[0]
	want := "((#f0 = :v0)) AND (" + TTLFilterExpr() + ")"
	if aws.ToString(in.FilterExpression) != want {
		t.Errorf("expected filter %q, got %q", want, aws.ToString(in.FilterExpression))
	}
	if in.ExpressionAttributeNames["#ttl"] != "expires" {
		t.Errorf("expected #ttl name, got %v", in.ExpressionAttributeNames)
	}
	if _, ok := in.ExpressionAttributeValues[":now"]; !ok {
		t.Error("expected :now value")
	}
}

func TestStore_RunForeignQuery(t *testing.T) {
	s, _ := newTestStore(t, DefaultConfig())
	other, _ := newTestStore(t, DefaultConfig())

	if _, err := s.Run(context.Background(), nil); !errors.Is(err, adapter.ErrForeignQuery) {
		t.Errorf("expected ErrForeignQuery for nil, got %v", err)
	}
	// Queries are plain values, so a builder from another Store still runs.
	if _, err := s.Run(context.Background(), other.NewQuery(posts)); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestStore_PutMissingKey(t *testing.T) {
	s, api := newTestStore(t, DefaultConfig())

	_, err := s.Put(context.Background(), posts, []adapter.Record{{"title": "a"}})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if len(api.txs) != 0 {
		t.Errorf("expected no transaction, got %d", len(api.txs))
	}
}

func TestStore_DeleteManyChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTransactItems = 2
	s, api := newTestStore(t, cfg)

	_, err := s.DeleteMany(context.Background(), posts, []any{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if len(api.txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(api.txs))
	}
	if n := len(api.txs[2].TransactItems); n != 1 {
		t.Errorf("expected 1 item in last chunk, got %d", n)
	}
}

func TestStore_SoftDeleteIgnoresConditionFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDelete = true
	s, api := newTestStore(t, cfg)
	api.updErr = &types.ConditionalCheckFailedException{}

	if _, err := s.Delete(context.Background(), posts, "k1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	in := api.updates[0]
	if !strings.HasPrefix(aws.ToString(in.UpdateExpression), "SET #ttl") {
		t.Errorf("unexpected update %q", aws.ToString(in.UpdateExpression))
	}
}

func TestStore_SoftDeleteMany(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDelete = true
	s, api := newTestStore(t, cfg)

	if _, err := s.DeleteMany(context.Background(), posts, []any{"a", "b"}); err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	for i, item := range api.txs[0].TransactItems {
		if item.Update == nil || item.Delete != nil {
			t.Errorf("item %d: expected update, got %+v", i, item)
		}
	}
}
