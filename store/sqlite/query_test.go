package sqlite

import (
	"reflect"
	"testing"
	"time"

	"github.com/jacentio/lattice/adapter"
)

func TestQuery_SQL(t *testing.T) {
	tests := []struct {
		name     string
		build    func(q *Query)
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "empty",
			build:    func(q *Query) {},
			wantSQL:  `SELECT data FROM "people" ORDER BY rowid ASC`,
			wantArgs: []any{},
		},
		{
			name: "where and order",
			build: func(q *Query) {
				q.Where("age", adapter.Greater, 30)
				q.OrderBy("name", true)
			},
			wantSQL:  `SELECT data FROM "people" WHERE (json_extract(data, ?) > ?) ORDER BY json_extract(data, ?) DESC, rowid ASC`,
			wantArgs: []any{`$."age"`, 30, `$."name"`},
		},
		{
			name: "nil equality",
			build: func(q *Query) {
				q.Where("nick", adapter.Equal, nil)
			},
			wantSQL:  `SELECT data FROM "people" WHERE (json_extract(data, ?) IS NULL) ORDER BY rowid ASC`,
			wantArgs: []any{`$."nick"`},
		},
		{
			name: "offset without limit",
			build: func(q *Query) {
				q.Offset(5)
			},
			wantSQL:  `SELECT data FROM "people" ORDER BY rowid ASC LIMIT -1 OFFSET ?`,
			wantArgs: []any{5},
		},
		{
			name: "limit and offset",
			build: func(q *Query) {
				q.Limit(2)
				q.Offset(1)
			},
			wantSQL:  `SELECT data FROM "people" ORDER BY rowid ASC LIMIT ? OFFSET ?`,
			wantArgs: []any{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Query{kind: "people", table: "people"}
			tt.build(q)
			sql, args := q.SQL()
			if sql != tt.wantSQL {
				t.Errorf("expected SQL\n%s\ngot\n%s", tt.wantSQL, sql)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("expected args %v, got %v", tt.wantArgs, args)
			}
		})
	}
}

func TestJSONPath(t *testing.T) {
	if got := jsonPath(`we"ird`); got != `$."we\"ird"` {
		t.Errorf("unexpected path %s", got)
	}
}

func TestBindValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   any
		want any
	}{
		{true, 1},
		{false, 0},
		{"x", "x"},
		{int64(7), int64(7)},
		{ts, "2024-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		got, err := bindValue(tt.in)
		if err != nil {
			t.Errorf("bindValue(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("bindValue(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
	if _, err := bindValue(map[string]any{}); err == nil {
		t.Error("expected error for map comparand")
	}
}

func TestCompact(t *testing.T) {
	got := compact("SELECT  a\n\t FROM b")
	if got != "SELECT a FROM b" {
		t.Errorf("unexpected %q", got)
	}
}
