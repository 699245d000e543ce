// Package storetest is a conformance suite run against every adapter.Store
// implementation through the Adapter.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/valuecmp"
)

// Kinds lists every collection the suite writes to. Backends that need
// tables created up front must create these.
var Kinds = []string{"people", "posts", "comments", "archive"}

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) adapter.Store

type fixture struct {
	a        *adapter.Adapter
	people   *adapter.Mapper
	posts    *adapter.Mapper
	comments *adapter.Mapper
}

func setup(t *testing.T, factory Factory) *fixture {
	t.Helper()
	a, err := adapter.New(factory(t), adapter.DefaultConfig())
	if err != nil {
		t.Fatalf("adapter.New: %v", err)
	}
	posts := &adapter.Mapper{Name: "post", Kind: "posts"}
	comments := &adapter.Mapper{Name: "comment", Kind: "comments"}
	posts.Relations = []adapter.Relation{
		adapter.HasMany{Local: "comments", ForeignKey: "postId", To: comments},
		adapter.HasOne{Local: "firstComment", ForeignKey: "postId", To: comments},
	}
	comments.Relations = []adapter.Relation{
		adapter.BelongsTo{Local: "post", ForeignKey: "postId", To: posts},
	}
	return &fixture{
		a:        a,
		people:   &adapter.Mapper{Name: "person", Kind: "people"},
		posts:    posts,
		comments: comments,
	}
}

// seedPeople creates ann (30), bob (25) and cy (35) in that order.
func (f *fixture) seedPeople(t *testing.T) []adapter.Record {
	t.Helper()
	resp, err := f.a.CreateMany(context.Background(), f.people, []adapter.Record{
		{"name": "ann", "age": 30, "team": "red"},
		{"name": "bob", "age": 25, "team": "blue"},
		{"name": "cy", "age": 35, "team": "red"},
	}, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return resp.Records()
}

func (f *fixture) names(t *testing.T, query adapter.Query) []string {
	t.Helper()
	resp, err := f.a.FindAll(context.Background(), f.people, query, nil)
	if err != nil {
		t.Fatalf("FindAll(%v): %v", query, err)
	}
	var out []string
	for _, rec := range resp.Records() {
		name, _ := rec["name"].(string)
		out = append(out, name)
	}
	return out
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Run executes the suite.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, f *fixture)
	}{
		{"CreateThenFind", testCreateThenFind},
		{"CreateManyDistinctKeys", testCreateManyDistinctKeys},
		{"CreateStripsRelations", testCreateStripsRelations},
		{"FindMissing", testFindMissing},
		{"FindAllOperators", testFindAllOperators},
		{"FindAllShorthandEqualsExplicit", testFindAllShorthand},
		{"FindAllOrdering", testFindAllOrdering},
		{"FindAllPagination", testFindAllPagination},
		{"FindAllNilEquality", testFindAllNilEquality},
		{"FindAllRejectsEagerLoad", testFindAllRejectsEagerLoad},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateAll", testUpdateAll},
		{"UpdateManyMixed", testUpdateManyMixed},
		{"Destroy", testDestroy},
		{"DestroyAll", testDestroyAll},
		{"KindOverride", testKindOverride},
		{"EagerLoad", testEagerLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, setup(t, factory))
		})
	}
}

func testCreateThenFind(t *testing.T, f *fixture) {
	ctx := context.Background()
	resp, err := f.a.Create(ctx, f.people, adapter.Record{
		"name": "ann",
		"tags": []any{"x", "y"},
		"meta": map[string]any{"score": 1.5},
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.Op != adapter.OpCreate || resp.Created != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	created := resp.Record()
	id := created["id"]
	if id == nil {
		t.Fatal("expected allocated key")
	}

	found, err := f.a.Find(ctx, f.people, id, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	rec := found.Record()
	if rec == nil || found.Found != 1 {
		t.Fatalf("expected record, got %+v", found)
	}
	if rec["name"] != "ann" || valuecmp.KeyString(rec["id"]) != valuecmp.KeyString(id) {
		t.Errorf("unexpected record %v", rec)
	}
	if !valuecmp.Equal(rec["tags"], []any{"x", "y"}) {
		t.Errorf("expected tags round trip, got %#v", rec["tags"])
	}
	if !valuecmp.Equal(rec["meta"], map[string]any{"score": 1.5}) {
		t.Errorf("expected meta round trip, got %#v", rec["meta"])
	}
}

func testCreateManyDistinctKeys(t *testing.T, f *fixture) {
	created := f.seedPeople(t)
	if len(created) != 3 {
		t.Fatalf("expected 3 records, got %d", len(created))
	}
	seen := make(map[string]bool)
	for _, rec := range created {
		k := valuecmp.KeyString(rec["id"])
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
	if got := f.names(t, nil); !equal(sorted(got), []string{"ann", "bob", "cy"}) {
		t.Errorf("unexpected names %v", got)
	}

	resp, err := f.a.CreateMany(context.Background(), f.people, nil, nil)
	if err != nil {
		t.Fatalf("empty CreateMany: %v", err)
	}
	if n := len(resp.Records()); n != 0 || resp.Created != 0 {
		t.Errorf("expected empty result, got %+v", resp)
	}
}

func testCreateStripsRelations(t *testing.T, f *fixture) {
	ctx := context.Background()
	resp, err := f.a.Create(ctx, f.posts, adapter.Record{
		"title":    "hello",
		"comments": []any{map[string]any{"body": "inline"}},
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, err := f.a.Find(ctx, f.posts, resp.Record()["id"], nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, ok := found.Record()["comments"]; ok {
		t.Errorf("relation field reached the store: %v", found.Record())
	}
}

func testFindMissing(t *testing.T, f *fixture) {
	resp, err := f.a.Find(context.Background(), f.people, "missing-key", nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if resp.Data != nil || resp.Found != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
}

func testFindAllOperators(t *testing.T, f *fixture) {
	f.seedPeople(t)

	tests := []struct {
		name  string
		where map[string]any
		want  []string
	}{
		{"eq", map[string]any{"age": map[string]any{"==": 30}}, []string{"ann"}},
		{"strict eq", map[string]any{"name": map[string]any{"===": "bob"}}, []string{"bob"}},
		{"gt", map[string]any{"age": map[string]any{">": 30}}, []string{"cy"}},
		{"gte", map[string]any{"age": map[string]any{">=": 30}}, []string{"ann", "cy"}},
		{"lt", map[string]any{"age": map[string]any{"<": 30}}, []string{"bob"}},
		{"lte", map[string]any{"age": map[string]any{"<=": 30}}, []string{"ann", "bob"}},
		{"range", map[string]any{"age": map[string]any{">": 25, "<": 35}}, []string{"ann"}},
		{"multiple fields", map[string]any{"team": "red", "age": map[string]any{">": 30}}, []string{"cy"}},
		{"no match", map[string]any{"name": "zed"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.names(t, adapter.Query{"where": tt.where})
			if !equal(sorted(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func testFindAllShorthand(t *testing.T, f *fixture) {
	f.seedPeople(t)

	bare := f.names(t, adapter.Query{"team": "red"})
	explicit := f.names(t, adapter.Query{"where": map[string]any{"team": map[string]any{"==": "red"}}})
	if !equal(sorted(bare), []string{"ann", "cy"}) || !equal(sorted(bare), sorted(explicit)) {
		t.Errorf("bare %v and explicit %v differ", bare, explicit)
	}
}

func testFindAllOrdering(t *testing.T, f *fixture) {
	f.seedPeople(t)

	bare := f.names(t, adapter.Query{"orderBy": "age"})
	pair := f.names(t, adapter.Query{"orderBy": [][]string{{"age", "asc"}}})
	desc := f.names(t, adapter.Query{"orderBy": [][]string{{"age", "desc"}}})

	if !equal(bare, []string{"bob", "ann", "cy"}) {
		t.Errorf("unexpected ascending order %v", bare)
	}
	if !equal(bare, pair) {
		t.Errorf("bare %v and pair %v differ", bare, pair)
	}
	if !equal(desc, []string{"cy", "ann", "bob"}) {
		t.Errorf("unexpected descending order %v", desc)
	}

	multi := f.names(t, adapter.Query{"orderBy": []any{[]any{"team", "desc"}, "age"}})
	if !equal(multi, []string{"ann", "cy", "bob"}) {
		t.Errorf("unexpected multi-field order %v", multi)
	}
}

func testFindAllPagination(t *testing.T, f *fixture) {
	f.seedPeople(t)

	tests := []struct {
		name  string
		query adapter.Query
		want  []string
	}{
		{"limit", adapter.Query{"orderBy": "age", "limit": 2}, []string{"bob", "ann"}},
		{"skip", adapter.Query{"orderBy": "age", "skip": 1}, []string{"ann", "cy"}},
		{"offset alias", adapter.Query{"orderBy": "age", "offset": 2}, []string{"cy"}},
		{"skip and limit", adapter.Query{"orderBy": "age", "skip": 1, "limit": 1}, []string{"ann"}},
		{"limit zero", adapter.Query{"orderBy": "age", "limit": 0}, nil},
		{"skip past end", adapter.Query{"orderBy": "age", "skip": 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.names(t, tt.query); !equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func testFindAllNilEquality(t *testing.T, f *fixture) {
	ctx := context.Background()
	if _, err := f.a.CreateMany(ctx, f.people, []adapter.Record{
		{"name": "ann", "nick": "a"},
		{"name": "bob"},
	}, nil); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	got := f.names(t, adapter.Query{"where": map[string]any{"nick": map[string]any{"==": nil}}})
	if !equal(got, []string{"bob"}) {
		t.Errorf("expected [bob], got %v", got)
	}
}

func testFindAllRejectsEagerLoad(t *testing.T, f *fixture) {
	_, err := f.a.FindAll(context.Background(), f.posts, nil, &adapter.Options{With: []string{"comments"}})
	if !errors.Is(err, adapter.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func testUpdateMerges(t *testing.T, f *fixture) {
	ctx := context.Background()
	resp, err := f.a.Create(ctx, f.people, adapter.Record{
		"name": "ann",
		"meta": map[string]any{"a": 1.0, "b": 2.0},
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := resp.Record()["id"]

	upd, err := f.a.Update(ctx, f.people, id, adapter.Record{
		"meta": map[string]any{"b": 3.0},
		"age":  31.0,
	}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Updated != 1 {
		t.Errorf("expected updated 1, got %d", upd.Updated)
	}

	found, err := f.a.Find(ctx, f.people, id, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	rec := found.Record()
	if rec["name"] != "ann" || !valuecmp.Equal(rec["age"], 31) {
		t.Errorf("unexpected record %v", rec)
	}
	if !valuecmp.Equal(rec["meta"], map[string]any{"a": 1.0, "b": 3.0}) {
		t.Errorf("expected deep merge, got %#v", rec["meta"])
	}
	if valuecmp.KeyString(rec["id"]) != valuecmp.KeyString(id) {
		t.Errorf("key changed from %v to %v", id, rec["id"])
	}
}

func testUpdateMissing(t *testing.T, f *fixture) {
	f.seedPeople(t)

	_, err := f.a.Update(context.Background(), f.people, "missing-key", adapter.Record{"name": "zed"}, nil)
	var nf *adapter.NotFoundError
	if !errors.As(err, &nf) || !errors.Is(err, adapter.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if got := f.names(t, nil); len(got) != 3 {
		t.Errorf("expected 3 records after failed update, got %v", got)
	}
}

func testUpdateAll(t *testing.T, f *fixture) {
	f.seedPeople(t)

	resp, err := f.a.UpdateAll(context.Background(), f.people, adapter.Record{"team": "green"}, adapter.Query{"team": "red"}, nil)
	if err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if resp.Updated != 2 {
		t.Errorf("expected updated 2, got %d", resp.Updated)
	}
	if got := f.names(t, adapter.Query{"team": "green"}); !equal(sorted(got), []string{"ann", "cy"}) {
		t.Errorf("unexpected green team %v", got)
	}

	none, err := f.a.UpdateAll(context.Background(), f.people, adapter.Record{"team": "x"}, adapter.Query{"team": "none"}, nil)
	if err != nil {
		t.Fatalf("UpdateAll no match: %v", err)
	}
	if none.Updated != 0 {
		t.Errorf("expected updated 0, got %d", none.Updated)
	}
}

func testUpdateManyMixed(t *testing.T, f *fixture) {
	seeded := f.seedPeople(t)

	resp, err := f.a.UpdateMany(context.Background(), f.people, []adapter.Record{
		{"id": seeded[0]["id"], "age": 40},
		{"id": seeded[2]["id"], "age": 41},
		{"id": "missing-key", "age": 50},
		{"age": 60},
	}, nil)
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if resp.Updated != 2 {
		t.Errorf("expected updated 2, got %d", resp.Updated)
	}
	if got := f.names(t, adapter.Query{"where": map[string]any{"age": map[string]any{">=": 40}}}); !equal(sorted(got), []string{"ann", "cy"}) {
		t.Errorf("unexpected updated set %v", got)
	}
	if got := f.names(t, nil); len(got) != 3 {
		t.Errorf("UpdateMany must not create records, got %v", got)
	}
}

func testDestroy(t *testing.T, f *fixture) {
	seeded := f.seedPeople(t)
	ctx := context.Background()

	resp, err := f.a.Destroy(ctx, f.people, seeded[1]["id"], nil)
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if resp.Op != adapter.OpDestroy || resp.Data != nil {
		t.Errorf("unexpected response %+v", resp)
	}
	if got := f.names(t, nil); !equal(sorted(got), []string{"ann", "cy"}) {
		t.Errorf("unexpected names %v", got)
	}
	if _, err := f.a.Destroy(ctx, f.people, "missing-key", nil); err != nil {
		t.Errorf("destroying a missing key: %v", err)
	}
}

func testDestroyAll(t *testing.T, f *fixture) {
	f.seedPeople(t)
	ctx := context.Background()

	if _, err := f.a.DestroyAll(ctx, f.people, adapter.Query{"team": "none"}, nil); err != nil {
		t.Fatalf("DestroyAll no match: %v", err)
	}
	if got := f.names(t, nil); len(got) != 3 {
		t.Errorf("expected 3 records, got %v", got)
	}

	if _, err := f.a.DestroyAll(ctx, f.people, adapter.Query{"team": "red"}, nil); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if got := f.names(t, nil); !equal(got, []string{"bob"}) {
		t.Errorf("expected [bob], got %v", got)
	}

	if _, err := f.a.DestroyAll(ctx, f.people, nil, nil); err != nil {
		t.Fatalf("DestroyAll everything: %v", err)
	}
	if got := f.names(t, nil); len(got) != 0 {
		t.Errorf("expected no records, got %v", got)
	}
}

func testKindOverride(t *testing.T, f *fixture) {
	ctx := context.Background()
	opts := &adapter.Options{Kind: "archive"}

	if _, err := f.a.Create(ctx, f.people, adapter.Record{"name": "old"}, opts); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := f.names(t, nil); len(got) != 0 {
		t.Errorf("expected default kind untouched, got %v", got)
	}
	resp, err := f.a.FindAll(ctx, f.people, nil, opts)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if n := len(resp.Records()); n != 1 {
		t.Errorf("expected 1 archived record, got %d", n)
	}
}

func testEagerLoad(t *testing.T, f *fixture) {
	ctx := context.Background()
	post, err := f.a.Create(ctx, f.posts, adapter.Record{"title": "hello"}, nil)
	if err != nil {
		t.Fatalf("Create post: %v", err)
	}
	postID := post.Record()["id"]
	if _, err := f.a.CreateMany(ctx, f.comments, []adapter.Record{
		{"postId": postID, "body": "first"},
		{"postId": postID, "body": "second"},
		{"postId": "other", "body": "elsewhere"},
	}, nil); err != nil {
		t.Fatalf("Create comments: %v", err)
	}

	resp, err := f.a.Find(ctx, f.posts, postID, &adapter.Options{With: []string{"comments", "firstComment", "unknown"}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	rec := resp.Record()
	comments, ok := rec["comments"].([]adapter.Record)
	if !ok || len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %#v", rec["comments"])
	}
	if _, ok := rec["firstComment"].(adapter.Record); !ok {
		t.Errorf("expected firstComment record, got %#v", rec["firstComment"])
	}
	if _, ok := rec["unknown"]; ok {
		t.Error("unknown relation names must be ignored")
	}

	c, err := f.a.Find(ctx, f.comments, comments[0]["id"], &adapter.Options{With: []string{"post"}})
	if err != nil {
		t.Fatalf("Find comment: %v", err)
	}
	parent, ok := c.Record()["post"].(adapter.Record)
	if !ok || parent["title"] != "hello" {
		t.Errorf("expected parent post, got %#v", c.Record()["post"])
	}
}
