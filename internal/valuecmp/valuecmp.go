// Package valuecmp orders dynamically typed record values.
package valuecmp

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Normalize maps every numeric type to float64 so numbers compare by value.
func Normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	}
	return v
}

// Compare orders a and b when they share a comparable type (numbers, strings,
// bools, times, or both nil). ok is false otherwise.
func Compare(a, b any) (n int, ok bool) {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0, true
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y)), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

// Equal reports whether a and b hold the same value.
func Equal(a, b any) bool {
	if n, ok := Compare(a, b); ok {
		return n == 0
	}
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Order is a total order for sorting: nil < bool < number < string < time <
// anything else, with values of the same class compared by Compare.
func Order(a, b any) int {
	if n, ok := Compare(a, b); ok {
		return n
	}
	ra, rb := rank(Normalize(a)), rank(Normalize(b))
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	}
	return 5
}

// KeyString renders a primary key so that equal numbers of different Go types
// map to the same string.
func KeyString(id any) string {
	switch v := Normalize(id).(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(id)
}
