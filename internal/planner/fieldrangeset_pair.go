package planner

import (
	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// FieldRangeSetPair holds the two views of a predicate that §4.1 calls
// for: a pessimistic single-range view used to derive index bounds (an
// $or is folded into the union of its branches per field, which may
// overstate what actually matches) and one range set per top-level $or
// branch. Bound derivation always reads Pessimistic, and nothing in this
// package reads Branches; re-checking documents is the residual
// Matcher's job (interfaces.go).
type FieldRangeSetPair struct {
	Pessimistic *FieldRangeSet
	Branches    []*FieldRangeSet // one per top-level $or alternative; nil when there is none
	Predicate   *predicate.Predicate
}

// NewFieldRangeSetPair builds both views by recursive descent over the
// predicate tree (§4.1).
func NewFieldRangeSetPair(pred *predicate.Predicate) *FieldRangeSetPair {
	pessimistic := buildRangeSet(pred)
	var branches []*FieldRangeSet
	if orBranches := pred.TopLevelOr(); orBranches != nil {
		branches = make([]*FieldRangeSet, len(orBranches))
		for i, b := range orBranches {
			branches[i] = buildRangeSet(b)
		}
	}
	return &FieldRangeSetPair{Pessimistic: pessimistic, Branches: branches, Predicate: pred}
}

// buildRangeSet performs the recursive descent for one predicate node.
// `and` intersects; `or` contributes the union of its branches (§4.1)
// into the pessimistic view, since any document satisfying any one branch
// must fall within the union of what each branch allows; `nor` only marks
// its fields as touched (see below).
func buildRangeSet(pred *predicate.Predicate) *FieldRangeSet {
	frs := NewFieldRangeSet()
	if pred == nil {
		return frs
	}
	for _, c := range pred.Clauses {
		applyClause(frs, c)
	}
	for _, sub := range pred.And {
		frs.mergeAnd(buildRangeSet(sub))
	}
	if len(pred.Or) > 0 {
		frs.mergeOr(pred.Or)
	}
	if len(pred.Nor) > 0 {
		// A $nor over n branches only narrows a field when every branch is a
		// negatable equality/range on it; modeling that precisely belongs to
		// the residual matcher. The planner conservatively treats $nor
		// fields as touched-but-unconstrained so it never derives bounds
		// that could exclude a matching document.
		for _, sub := range pred.Nor {
			for _, f := range sub.Fields() {
				frs.touch(f)
			}
		}
	}
	return frs
}

func (frs *FieldRangeSet) mergeAnd(other *FieldRangeSet) {
	for field := range other.touched {
		frs.setRange(field, other.Range(field))
	}
	if other.special != "" {
		frs.special = other.special
	}
}

func (frs *FieldRangeSet) mergeOr(branches []*predicate.Predicate) {
	var union *FieldRangeSet
	for _, b := range branches {
		bfrs := buildRangeSet(b)
		if union == nil {
			union = bfrs
			continue
		}
		union.unionInto(bfrs)
	}
	if union != nil {
		frs.mergeAnd(union)
	}
}

func applyClause(frs *FieldRangeSet, c predicate.Clause) {
	switch c.Op {
	case predicate.OpEq:
		frs.setRange(c.Field, docval.PointUnion(c.Value))
	case predicate.OpIn:
		frs.setRange(c.Field, docval.PointUnion(c.Values...))
	case predicate.OpLt:
		frs.setRange(c.Field, docval.IntervalUnion{{Low: docval.MinKey, LowInclusive: true, High: c.Value, HighInclusive: false}})
	case predicate.OpLte:
		frs.setRange(c.Field, docval.IntervalUnion{{Low: docval.MinKey, LowInclusive: true, High: c.Value, HighInclusive: true}})
	case predicate.OpGt:
		frs.setRange(c.Field, docval.IntervalUnion{{Low: c.Value, LowInclusive: false, High: docval.MaxKey, HighInclusive: true}})
	case predicate.OpGte:
		frs.setRange(c.Field, docval.IntervalUnion{{Low: c.Value, LowInclusive: true, High: docval.MaxKey, HighInclusive: true}})
	case predicate.OpExists:
		// Existence alone doesn't narrow the value range; it only matters
		// to sparse-index exclusion (predicate.ExcludesSparseField), so we
		// just mark the field touched for pattern purposes.
		frs.touch(c.Field)
	case predicate.OpRegex:
		if c.RegexAnchored {
			frs.setRange(c.Field, regexPrefixRange(c.RegexPrefix))
		} else {
			frs.touch(c.Field)
		}
	case predicate.OpNot:
		// A bare $not is a residual-only constraint from the range set's
		// point of view; touch the field so the pattern reflects its
		// presence without asserting a bound the matcher must still check.
		frs.touch(c.Field)
	case predicate.OpNear:
		frs.touch(c.Field)
		frs.special = c.Field
	}
}

// regexPrefixRange returns the half-open range [prefix, prefix++) that
// bounds every string with the given literal prefix (§4.1).
func regexPrefixRange(prefix string) docval.IntervalUnion {
	if prefix == "" {
		return docval.UniversalUnion()
	}
	upper := incrementString(prefix)
	return docval.IntervalUnion{{Low: prefix, LowInclusive: true, High: upper, HighInclusive: false}}
}

// incrementString returns the lexicographically smallest string greater
// than every string with the given prefix, by bumping the last byte (and
// carrying, dropping trailing 0xFF bytes). If the prefix is all 0xFF, the
// range is effectively open-ended above.
func incrementString(s string) docval.Value {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			b[i]++
			return string(b[:i+1])
		}
	}
	return docval.MaxKey
}
