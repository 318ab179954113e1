// Package planner implements the query planner core: field range analysis,
// plan construction and scoring, plan set enumeration, the plan cache, and
// the multi-plan scanner that races candidate plans. See the package's
// design notes (SPEC_FULL.md at the module root) for the split between
// this core and the storage/matcher collaborators it's built against.
package planner

import "github.com/nullstore/docdb/internal/docval"

// FieldRangeSet canonicalizes a predicate into a per-field union of
// disjoint intervals. It's the planner's view of "what values can this
// field take for this predicate to match" -- everything downstream (bound
// derivation, utility scoring, pattern hashing) is built on top of it.
type FieldRangeSet struct {
	ranges  map[string]docval.IntervalUnion
	touched map[string]bool
	special string // non-empty when a special-access clause (e.g. $near) constrains a field
}

// NewFieldRangeSet returns an empty range set: every field maps to the
// universal range, matching every document.
func NewFieldRangeSet() *FieldRangeSet {
	return &FieldRangeSet{ranges: map[string]docval.IntervalUnion{}, touched: map[string]bool{}}
}

// Range returns the interval union for a field. Fields never mentioned by
// the predicate return the universal range (invariant: missing field maps
// to the universal range, §3).
func (frs *FieldRangeSet) Range(field string) docval.IntervalUnion {
	if u, ok := frs.ranges[field]; ok {
		return u
	}
	return docval.UniversalUnion()
}

// setRange intersects the field's current range with u, recording the
// field as touched even if the intersection turns out universal (a lone
// $exists clause, for instance, doesn't narrow the range but still shapes
// the query pattern).
func (frs *FieldRangeSet) setRange(field string, u docval.IntervalUnion) {
	frs.touched[field] = true
	cur, ok := frs.ranges[field]
	if !ok {
		frs.ranges[field] = u
		return
	}
	frs.ranges[field] = cur.Intersect(u)
}

func (frs *FieldRangeSet) touch(field string) {
	frs.touched[field] = true
}

// unionInto merges another range set into this one field-by-field via
// union rather than intersection; used when folding $or alternatives into
// the pessimistic view (§4.1).
func (frs *FieldRangeSet) unionInto(other *FieldRangeSet) {
	fields := make(map[string]bool, len(frs.touched)+len(other.touched))
	for field := range frs.touched {
		fields[field] = true
	}
	for field := range other.touched {
		fields[field] = true
	}
	for field := range fields {
		frs.touched[field] = true
		a := frs.Range(field)
		b := other.Range(field)
		frs.ranges[field] = a.Union(b)
	}
}

// IsEmpty reports whether any field's range is empty, i.e. the predicate
// can never match (§3 invariant 2 / §4.3 utility rule 1).
func (frs *FieldRangeSet) IsEmpty() bool {
	for _, u := range frs.ranges {
		if u.IsEmpty() {
			return true
		}
	}
	return false
}

// IsSingleton reports the field constrained to exactly one value.
func (frs *FieldRangeSet) IsSingleton(field string) bool { return frs.Range(field).IsSingleton() }

// IsFinite reports the field constrained to a finite set of values
// (equality or `in`).
func (frs *FieldRangeSet) IsFinite(field string) bool { return frs.Range(field).IsFinite() }

// IsEmptyField reports a specific field's range being impossible.
func (frs *FieldRangeSet) IsEmptyField(field string) bool { return frs.Range(field).IsEmpty() }

// TouchedFields returns every field the predicate referenced, in no
// particular order.
func (frs *FieldRangeSet) TouchedFields() []string {
	out := make([]string, 0, len(frs.touched))
	for f := range frs.touched {
		out = append(out, f)
	}
	return out
}

// Special returns the field carrying a special-access (geospatial) clause,
// and whether one exists.
func (frs *FieldRangeSet) Special() (string, bool) {
	return frs.special, frs.special != ""
}
