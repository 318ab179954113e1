package planner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nullstore/docdb/internal/docval"
)

// FieldKind classifies a field's range shape for pattern purposes: two
// predicates that agree on kind for every field, and on sort, share a
// QueryPattern even if their literal bounds differ.
type FieldKind int

const (
	KindUniversal FieldKind = iota
	KindPoint
	KindFiniteSet
	KindRange
	KindEmpty
)

// SortField is one component of a requested sort order.
type SortField struct {
	Field     string
	Direction int // +1 or -1
}

// QueryPattern is the canonical, hashable summary of a (FieldRangeSet
// shape, sort) pair used as the PlanCache key (§3). Equality is by Key(),
// which depends only on field kinds and sort -- never on literal values.
type QueryPattern struct {
	key   string
	kinds map[string]FieldKind
	sort  []SortField
}

// Key returns the pattern's cache key.
func (p QueryPattern) Key() string { return p.key }

// Kind returns the classified shape of a field, or KindUniversal if the
// pattern never touched it.
func (p QueryPattern) Kind(field string) FieldKind {
	if k, ok := p.kinds[field]; ok {
		return k
	}
	return KindUniversal
}

// Sort returns the pattern's requested sort order.
func (p QueryPattern) Sort() []SortField { return p.sort }

// Equal reports whether two patterns share a cache key.
func (p QueryPattern) Equal(other QueryPattern) bool { return p.key == other.key }

// NewQueryPattern classifies frs's touched fields and combines that with
// the sort order into a canonical key.
func NewQueryPattern(frs *FieldRangeSet, sort_ []SortField) QueryPattern {
	kinds := make(map[string]FieldKind, len(frs.touched))
	fields := frs.TouchedFields()
	sortStrings(fields)
	for _, f := range fields {
		u := frs.Range(f)
		switch {
		case u.IsEmpty():
			kinds[f] = KindEmpty
		case isUniversal(u):
			kinds[f] = KindUniversal
		case u.IsSingleton():
			kinds[f] = KindPoint
		case u.IsFinite():
			kinds[f] = KindFiniteSet
		default:
			kinds[f] = KindRange
		}
	}
	return QueryPattern{key: encodePattern(fields, kinds, sort_), kinds: kinds, sort: append([]SortField(nil), sort_...)}
}

func isUniversal(u docval.IntervalUnion) bool {
	return len(u) == 1 && docval.Equal(u[0].Low, docval.MinKey) && docval.Equal(u[0].High, docval.MaxKey) &&
		u[0].LowInclusive && u[0].HighInclusive
}

func sortStrings(s []string) {
	sort.Strings(s)
}

func encodePattern(fields []string, kinds map[string]FieldKind, sort_ []SortField) string {
	var b strings.Builder
	for _, f := range fields {
		if kinds[f] == KindUniversal {
			continue
		}
		b.WriteString(f)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(kinds[f])))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, s := range sort_ {
		b.WriteString(s.Field)
		b.WriteByte(':')
		if s.Direction >= 0 {
			b.WriteByte('+')
		} else {
			b.WriteByte('-')
		}
		b.WriteByte(',')
	}
	return b.String()
}
