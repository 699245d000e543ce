package adapter

import (
	"reflect"
	"slices"
)

// Record maps field names to values.
type Record map[string]any

// Clone returns a deep copy of nested maps and slices.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Query:
		return Query(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, e := range t {
			out[i] = e.Clone()
		}
		return out
	case []string:
		return slices.Clone(t)
	}
	return v
}

// asMap returns v's underlying map when it can be modified in place.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case Query:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// toMap is asMap extended to any map with string keys, such as
// map[string]int. Those are copied.
func toMap(v any) (map[string]any, bool) {
	if m, ok := asMap(v); ok {
		return m, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// StripRelations returns a copy of record without the mapper's relation fields.
// The input is not modified.
func StripRelations(m *Mapper, record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, f := range m.RelationFields {
		delete(out, f)
	}
	for _, rel := range m.Relations {
		delete(out, rel.LocalField())
	}
	return out
}

// MergeUpdate deep-merges partial onto record in place and returns record.
// Nested mappings merge recursively; everything else overwrites.
func MergeUpdate(record Record, partial Record) Record {
	if record == nil {
		record = make(Record, len(partial))
	}
	mergeInto(record, partial)
	return record
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		sm, srcIsMap := toMap(v)
		dm, dstIsMap := asMap(dst[k])
		if srcIsMap && dstIsMap {
			mergeInto(dm, sm)
			continue
		}
		dst[k] = cloneValue(v)
	}
}
