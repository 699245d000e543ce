// Package adapter translates backend-neutral CRUD and query operations into
// calls against a pluggable [Store].
//
// An [Adapter] runs nine operations (Create, CreateMany, Find, FindAll,
// Destroy, DestroyAll, Update, UpdateAll, UpdateMany). Each one runs the
// configured [Hooks] before and after the core action and returns a
// [Response] carrying the data, the store metadata and an operation counter.
//
// # Queries
//
// A [Query] is a map with the reserved keys where, orderBy (alias sort),
// limit and skip (alias offset). Any other key is shorthand for an equality
// clause:
//
//	adapter.Query{
//	    "where":   map[string]any{"age": map[string]any{">=": 18}},
//	    "status":  "active",
//	    "orderBy": [][]string{{"age", "desc"}, {"name", "asc"}},
//	    "limit":   10,
//	}
//
// Operators resolve per call ([Options].Operators), then per adapter
// ([Config].Operators), then from [DefaultOperators]. Disjunctive operators
// (prefixed with "|") and unknown operators fail before the store is touched.
//
// # Relations
//
// [Adapter.Find] loads the relations named in [Options].With. Only [BelongsTo] and the
// foreign-key forms of [HasOne] and [HasMany] are loadable;
// [HasManyByLocalKeys] and [HasManyByForeignKeys] fail with an
// [UnsupportedError]. FindAll never eager-loads.
//
// # Errors
//
//   - [ErrNotFound] - Update targeted a missing record ([NotFoundError])
//   - [ErrUnsupported] - rejected relation or operator ([UnsupportedError], [OperatorError])
//   - [ErrUnknownOperator] - operator not present in any table ([OperatorError])
//   - [ErrInvalidQuery] - malformed query
//
// Store failures are returned unchanged.
package adapter
