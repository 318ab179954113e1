// Package docval defines the ordered value domain that field ranges and
// index bounds are built from. It mirrors the comparison rules a document
// store's index encoding would apply, without touching the wire encoding
// itself (that lives with the storage layer, not the planner).
package docval

import (
	"fmt"
	"reflect"
)

// MinKey and MaxKey are sentinel values that sort below and above every
// other value in the domain. Index bounds are padded with these when a
// key pattern position isn't constrained by a predicate.
type minKeyType struct{}
type maxKeyType struct{}

var (
	MinKey Value = minKeyType{}
	MaxKey Value = maxKeyType{}
)

// Value is any comparable document field value: nil, bool, a numeric type,
// string, or a nested structure treated as opaque for range purposes.
type Value = interface{}

// Document is a single stored document, keyed by top-level field name.
// The planner never mutates one; it only reads field values to derive
// bounds and hands documents back to the caller unchanged.
type Document map[string]Value

// typeRank orders value kinds the way a canonical document encoding would:
// MinKey, null, numbers, strings, objects/arrays, boolean, MaxKey. Booleans
// rank above compound values.
func typeRank(v Value) int {
	switch v.(type) {
	case minKeyType:
		return 0
	case nil:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		return 3
	case bool:
		return 5
	case maxKeyType:
		return 6
	default:
		return 4
	}
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Compare returns -1, 0, or 1 for a<b, a==b, a>b under the domain's
// canonical ordering. Values of different kinds order by typeRank first.
func Compare(a, b Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0, 1, 6: // MinKey, null, MaxKey: all equal within their own rank
		return 0
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 3:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	case 5:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba && bb {
			return -1
		}
		return 1
	default:
		// Opaque compound values only compare equal to themselves.
		if reflect.DeepEqual(a, b) {
			return 0
		}
		return typeRank(a) - typeRank(b) + stableTiebreak(a, b)
	}
}

// stableTiebreak gives unequal opaque values a total order without
// asserting any domain meaning to it; it only needs to be consistent
// within a process so interval sets can be sorted deterministically.
func stableTiebreak(a, b Value) int {
	sa, sb := fmt.Sprintf("%#v", a), fmt.Sprintf("%#v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two values compare equal under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// IsExactMatchType reports whether index-key equality on a value of this
// type implies document-level equality. Strings qualify; numbers do not,
// because numeric index keys are stored under a coercing representation
// (e.g. int32 32-bit encodes to the same key as float64 32.0) that the
// exactKeyMatch optimization must not trust blindly. This asymmetry is
// intentional -- see the design notes on exactKeyMatch before changing it.
func IsExactMatchType(v Value) bool {
	switch v.(type) {
	case string:
		return true
	default:
		return false
	}
}
