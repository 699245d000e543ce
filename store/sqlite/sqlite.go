// Package sqlite provides a Store backed by SQLite. Every kind is a table of
// JSON documents:
//
//	<kind>(pk TEXT PRIMARY KEY, data TEXT NOT NULL)
//	lattice_sequences(kind TEXT PRIMARY KEY, next INTEGER NOT NULL)
//
// Table names are the snake_case form of the kind.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/valuecmp"
)

// maxDeleteParams bounds the IN list of a single DELETE statement.
const maxDeleteParams = 500

// Store persists records in SQLite.
type Store struct {
	db     *sql.DB
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]bool
}

var _ adapter.Store = (*Store)(nil)

// Open opens (creating if needed) the database at config.Path.
func Open(config Config) (*Store, error) {
	config.validate()
	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, err
	}
	if config.Path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	s, err := New(db, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB, config Config) (*Store, error) {
	config.validate()
	s := &Store{
		db:     db,
		config: config,
		logger: config.Logger,
		tables: make(map[string]bool),
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		kind TEXT PRIMARY KEY,
		next INTEGER NOT NULL
	)`, quoteIdent(config.SequenceTable))
	if _, err := db.Exec(stmt); err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// TableName returns the table that holds kind.
func TableName(kind string) string {
	return strcase.ToSnake(kind)
}

func (s *Store) ensureTable(ctx context.Context, kind string) (string, error) {
	table := TableName(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return table, nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		pk TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`, quoteIdent(table))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("create table %s: %w", table, err)
	}
	s.tables[table] = true
	return table, nil
}

// NewQuery starts a query against c.
func (s *Store) NewQuery(c adapter.Collection) adapter.QueryBuilder {
	return &Query{kind: c.Kind, table: TableName(c.Kind)}
}

// Run executes q.
func (s *Store) Run(ctx context.Context, qb adapter.QueryBuilder) (adapter.Result, error) {
	q, ok := qb.(*Query)
	if !ok {
		return adapter.Result{}, adapter.ErrForeignQuery
	}
	if q.err != nil {
		return adapter.Result{}, q.err
	}
	if _, err := s.ensureTable(ctx, q.kind); err != nil {
		return adapter.Result{}, err
	}
	stmt, args := q.SQL()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.logError(stmt, args, start, err)
		return adapter.Result{}, fmt.Errorf("query %s: %w", q.table, err)
	}
	defer rows.Close()

	records := []adapter.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return adapter.Result{}, fmt.Errorf("scan %s: %w", q.table, err)
		}
		rec, err := decode(raw)
		if err != nil {
			return adapter.Result{}, fmt.Errorf("decode %s: %w", q.table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return adapter.Result{}, fmt.Errorf("iterate %s: %w", q.table, err)
	}
	s.logQuery(stmt, args, start, len(records))
	return adapter.Result{Records: records, Meta: Stats{RowsAffected: int64(len(records))}}, nil
}

// Stats is the metadata returned by every operation.
type Stats struct {
	RowsAffected int64
}

// Get fetches a record by key.
func (s *Store) Get(ctx context.Context, c adapter.Collection, id any) (adapter.Record, error) {
	table, err := s.ensureTable(ctx, c.Kind)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT data FROM %s WHERE pk = ?", quoteIdent(table))
	args := []any{valuecmp.KeyString(id)}

	start := time.Now()
	var raw string
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		s.logQuery(stmt, args, start, 0)
		return nil, nil
	}
	if err != nil {
		s.logError(stmt, args, start, err)
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	s.logQuery(stmt, args, start, 1)
	return decode(raw)
}

// Create allocates keys from the sequence table and inserts every record in
// the same transaction.
func (s *Store) Create(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	table, err := s.ensureTable(ctx, c.Kind)
	if err != nil {
		return adapter.Result{}, err
	}

	var created []adapter.Record
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		last, err := s.allocate(ctx, tx, c.Kind, len(records))
		if err != nil {
			return err
		}
		first := last - int64(len(records)) + 1

		stmt := fmt.Sprintf("INSERT INTO %s (pk, data) VALUES (?, ?)", quoteIdent(table))
		created = make([]adapter.Record, 0, len(records))
		for i, r := range records {
			rec := r.Clone()
			if rec == nil {
				rec = adapter.Record{}
			}
			id := first + int64(i)
			rec[c.IDAttribute] = id
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
			if err := s.exec(ctx, tx, stmt, valuecmp.KeyString(id), string(raw)); err != nil {
				return fmt.Errorf("insert %s: %w", table, err)
			}
			out, err := decode(string(raw))
			if err != nil {
				return err
			}
			created = append(created, out)
		}
		return nil
	})
	if err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Records: created, Meta: Stats{RowsAffected: int64(len(created))}}, nil
}

// allocate reserves n keys for kind and returns the last one.
func (s *Store) allocate(ctx context.Context, tx *sql.Tx, kind string, n int) (int64, error) {
	seq := quoteIdent(s.config.SequenceTable)
	if err := s.exec(ctx, tx,
		fmt.Sprintf("INSERT INTO %s (kind, next) VALUES (?, 0) ON CONFLICT(kind) DO NOTHING", seq),
		kind,
	); err != nil {
		return 0, fmt.Errorf("allocate keys: %w", err)
	}
	if err := s.exec(ctx, tx,
		fmt.Sprintf("UPDATE %s SET next = next + ? WHERE kind = ?", seq),
		n, kind,
	); err != nil {
		return 0, fmt.Errorf("allocate keys: %w", err)
	}
	var last int64
	if err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT next FROM %s WHERE kind = ?", seq), kind,
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("allocate keys: %w", err)
	}
	return last, nil
}

// Put upserts keyed records in one transaction.
func (s *Store) Put(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	table, err := s.ensureTable(ctx, c.Kind)
	if err != nil {
		return adapter.Result{}, err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (pk, data) VALUES (?, ?)
		ON CONFLICT(pk) DO UPDATE SET data = excluded.data`, quoteIdent(table))

	written := make([]adapter.Record, 0, len(records))
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for i, rec := range records {
			id := rec[c.IDAttribute]
			if id == nil {
				return fmt.Errorf("put %s: record %d has no %q", table, i, c.IDAttribute)
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
			if err := s.exec(ctx, tx, stmt, valuecmp.KeyString(id), string(raw)); err != nil {
				return fmt.Errorf("put %s: %w", table, err)
			}
			out, err := decode(string(raw))
			if err != nil {
				return err
			}
			written = append(written, out)
		}
		return nil
	})
	if err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Records: written, Meta: Stats{RowsAffected: int64(len(written))}}, nil
}

// Delete removes a record by key.
func (s *Store) Delete(ctx context.Context, c adapter.Collection, id any) (adapter.Result, error) {
	table, err := s.ensureTable(ctx, c.Kind)
	if err != nil {
		return adapter.Result{}, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE pk = ?", quoteIdent(table))
	args := []any{valuecmp.KeyString(id)}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		s.logError(stmt, args, start, err)
		return adapter.Result{}, fmt.Errorf("delete %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	s.logExec(stmt, args, start, n)
	return adapter.Result{Meta: Stats{RowsAffected: n}}, nil
}

// DeleteMany removes records by key in one transaction.
func (s *Store) DeleteMany(ctx context.Context, c adapter.Collection, ids []any) (adapter.Result, error) {
	table, err := s.ensureTable(ctx, c.Kind)
	if err != nil {
		return adapter.Result{}, err
	}
	var total int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += maxDeleteParams {
			end := min(start+maxDeleteParams, len(ids))
			chunk := ids[start:end]
			args := make([]any, len(chunk))
			for i, id := range chunk {
				args[i] = valuecmp.KeyString(id)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
			stmt := fmt.Sprintf("DELETE FROM %s WHERE pk IN (%s)", quoteIdent(table), placeholders)

			began := time.Now()
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				s.logError(stmt, args, began, err)
				return fmt.Errorf("delete %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			s.logExec(stmt, args, began, n)
			total += n
		}
		return nil
	})
	if err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Meta: Stats{RowsAffected: total}}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, stmt string, args ...any) error {
	start := time.Now()
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		s.logError(stmt, args, start, err)
		return err
	}
	n, _ := res.RowsAffected()
	s.logExec(stmt, args, start, n)
	return nil
}

func (s *Store) logQuery(stmt string, args []any, start time.Time, rows int) {
	s.logger.Debug("sql query",
		"sql", compact(stmt),
		"args", args,
		"duration", time.Since(start),
		"rows", rows,
	)
}

func (s *Store) logExec(stmt string, args []any, start time.Time, affected int64) {
	s.logger.Debug("sql exec",
		"sql", compact(stmt),
		"args", args,
		"duration", time.Since(start),
		"rows", affected,
	)
}

func (s *Store) logError(stmt string, args []any, start time.Time, err error) {
	s.logger.Debug("sql error",
		"sql", compact(stmt),
		"args", args,
		"duration", time.Since(start),
		"error", err,
	)
}

// compact collapses whitespace so statements log on one line.
func compact(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

func decode(raw string) (adapter.Record, error) {
	var rec adapter.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
