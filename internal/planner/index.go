package planner

// KeyField is one (field, direction) component of an index key pattern.
type KeyField struct {
	Field     string
	Direction int // +1 ascending, -1 descending
}

// SpecialKind names a non-btree access path. The planner treats it as
// opaque: it knows the rules for when a special plan is selected (§4.4)
// but not how the index itself is stored or scanned.
type SpecialKind string

// KindNone means this is an ordinary btree index.
const KindNone SpecialKind = ""

// IndexSpec describes one index defined on a collection (§3, §4.2).
type IndexSpec struct {
	Name     string
	Key      []KeyField
	Sparse   bool
	Multikey bool
	Special  SpecialKind
}

// IsIDIndex reports the distinguished `_id` index (§3, invariant 4).
func (ix IndexSpec) IsIDIndex() bool {
	return len(ix.Key) == 1 && ix.Key[0].Field == "_id"
}

// FieldAt returns the field name at ordinal position i in the key
// pattern, or "" if out of range.
func (ix IndexSpec) FieldAt(i int) string {
	if i < 0 || i >= len(ix.Key) {
		return ""
	}
	return ix.Key[i].Field
}

// KeyFieldSet returns the set of field names in the index key, used by
// exactKeyMatch and keyFieldsOnly checks.
func (ix IndexSpec) KeyFieldSet() map[string]bool {
	out := make(map[string]bool, len(ix.Key))
	for _, kf := range ix.Key {
		out[kf.Field] = true
	}
	return out
}

// MaxIndexesPerCollection mirrors the source system's fixed cap (§4.2);
// the catalog adapter enforces it at index-creation time, not here.
const MaxIndexesPerCollection = 10

// IndexCatalog is a read-only view over the indexes defined on a
// collection (§4.2). Implementations are provided by the storage layer;
// the planner only ever calls these three methods.
type IndexCatalog interface {
	Indexes() []IndexSpec
	FindByKey(key []KeyField) (IndexSpec, bool)
	FindByName(name string) (IndexSpec, bool)
}

// SameKeyPattern reports whether two key patterns match field-for-field,
// including direction, used by hint resolution and FindByKey.
func SameKeyPattern(a, b []KeyField) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Field != b[i].Field || a[i].Direction != b[i].Direction {
			return false
		}
	}
	return true
}
