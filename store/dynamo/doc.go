// Package dynamo provides a Store backed by Amazon DynamoDB.
//
// Each kind maps to one table (Config.TablePrefix + kind) whose partition key
// is the mapper's IDAttribute. Keys are random UUIDs allocated client side.
//
// # Atomicity
//
// Create writes every record in a single TransactWriteItems call with an
// attribute_not_exists condition per item, so either all records are saved or
// none are. Batches larger than Config.MaxTransactItems are rejected with
// [ErrBatchTooLarge] rather than split.
//
// # Queries
//
// Queries are paginated Scans with a FilterExpression built from the where
// clauses. DynamoDB cannot order or offset a Scan, so ordering, skip and limit
// are applied after the scan completes.
//
// # Soft Deletes
//
// With Config.SoftDelete, deletes set the TTL attribute to the current time
// and reads exclude items whose TTL has passed:
//
//	cfg := dynamo.DefaultConfig()
//	cfg.SoftDelete = true
//	s := dynamo.New(client, cfg)
//
// # Errors
//
//   - [ErrAlreadyExists] - an allocated key collided with an existing item
//   - [ErrBatchTooLarge] - Create called with more items than one transaction allows
//   - [ErrMissingKey] - Put called with a record lacking its primary key
package dynamo
