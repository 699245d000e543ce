package adapter_test

import (
	"reflect"
	"testing"

	"github.com/jacentio/lattice/adapter"
)

func TestRecord_CloneIsDeep(t *testing.T) {
	orig := adapter.Record{
		"nested": map[string]any{"a": []any{1.0, map[string]any{"b": "c"}}},
		"list":   []string{"x"},
		"recs":   []adapter.Record{{"k": "v"}},
	}
	c := orig.Clone()

	c["nested"].(map[string]any)["a"].([]any)[1].(map[string]any)["b"] = "changed"
	c["list"].([]string)[0] = "changed"
	c["recs"].([]adapter.Record)[0]["k"] = "changed"

	if orig["nested"].(map[string]any)["a"].([]any)[1].(map[string]any)["b"] != "c" {
		t.Error("nested map shared with clone")
	}
	if orig["list"].([]string)[0] != "x" {
		t.Error("string slice shared with clone")
	}
	if orig["recs"].([]adapter.Record)[0]["k"] != "v" {
		t.Error("record slice shared with clone")
	}

	var nilRec adapter.Record
	if nilRec.Clone() != nil {
		t.Error("expected nil clone of nil record")
	}
}

func TestStripRelations(t *testing.T) {
	m := &adapter.Mapper{
		Name:           "posts",
		RelationFields: []string{"cache"},
		Relations:      []adapter.Relation{adapter.HasMany{Local: "comments", ForeignKey: "postId"}},
	}
	in := adapter.Record{"title": "t", "cache": 1, "comments": []any{}}

	out := adapter.StripRelations(m, in)

	if want := (adapter.Record{"title": "t"}); !reflect.DeepEqual(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
	if len(in) != 3 {
		t.Errorf("input modified: %v", in)
	}
}

func TestMergeUpdate(t *testing.T) {
	tests := []struct {
		name    string
		record  adapter.Record
		partial adapter.Record
		want    adapter.Record
	}{
		{
			name:    "overwrites scalars",
			record:  adapter.Record{"a": 1, "b": 2},
			partial: adapter.Record{"b": 3},
			want:    adapter.Record{"a": 1, "b": 3},
		},
		{
			name:    "merges nested maps",
			record:  adapter.Record{"m": map[string]any{"x": 1, "y": map[string]any{"z": 1}}},
			partial: adapter.Record{"m": map[string]any{"y": map[string]any{"w": 2}}},
			want:    adapter.Record{"m": map[string]any{"x": 1, "y": map[string]any{"z": 1, "w": 2}}},
		},
		{
			name:    "replaces lists",
			record:  adapter.Record{"l": []any{1, 2}},
			partial: adapter.Record{"l": []any{3}},
			want:    adapter.Record{"l": []any{3}},
		},
		{
			name:    "map replaces scalar",
			record:  adapter.Record{"m": "s"},
			partial: adapter.Record{"m": map[string]any{"k": 1}},
			want:    adapter.Record{"m": map[string]any{"k": 1}},
		},
		{
			name:    "merges typed nested maps",
			record:  adapter.Record{"m": map[string]any{"a": 1}},
			partial: adapter.Record{"m": map[string]int{"b": 2}},
			want:    adapter.Record{"m": map[string]any{"a": 1, "b": 2}},
		},
		{
			name:    "nil record",
			record:  nil,
			partial: adapter.Record{"a": 1},
			want:    adapter.Record{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.MergeUpdate(tt.record, tt.partial)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMergeUpdate_DoesNotAliasPartial(t *testing.T) {
	partial := adapter.Record{"m": map[string]any{"k": 1}}
	rec := adapter.MergeUpdate(adapter.Record{}, partial)

	rec["m"].(map[string]any)["k"] = 2
	if partial["m"].(map[string]any)["k"] != 1 {
		t.Error("merged record shares nested maps with the partial")
	}
}

func TestRegistry(t *testing.T) {
	r := adapter.NewRegistry()
	r.Register(&adapter.Mapper{Name: "people"})
	r.Register(&adapter.Mapper{Name: "posts", Kind: "blog_posts", IDAttribute: "slug"})

	m, ok := r.Lookup("posts")
	if !ok || m.ID() != "slug" {
		t.Fatalf("expected posts mapper with slug key, got %+v", m)
	}
	if _, ok := r.ByKind("blog_posts"); !ok {
		t.Error("expected lookup by kind")
	}
	if _, ok := r.ByKind("posts"); ok {
		t.Error("kind lookup must use the backend kind, not the name")
	}
	if p, _ := r.Lookup("people"); p.ID() != adapter.DefaultIDAttribute {
		t.Errorf("expected default id attribute, got %q", p.ID())
	}
	if n := len(r.Mappers()); n != 2 {
		t.Errorf("expected 2 mappers, got %d", n)
	}
}

func TestMapper_KindFor(t *testing.T) {
	m := &adapter.Mapper{Name: "people", Kind: "persons"}

	if got := m.KindFor(nil); got != "persons" {
		t.Errorf("expected persons, got %q", got)
	}
	if got := m.KindFor(&adapter.Options{Kind: "archive"}); got != "archive" {
		t.Errorf("expected archive, got %q", got)
	}
	if got := (&adapter.Mapper{Name: "people"}).KindFor(&adapter.Options{}); got != "people" {
		t.Errorf("expected people, got %q", got)
	}
}
