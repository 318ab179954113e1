package docval

// Interval is a single bound pair over the value domain. Low/High may be
// MinKey/MaxKey to denote an open end.
type Interval struct {
	Low          Value
	LowInclusive bool
	High         Value
	HighInclusive bool
}

// Universal is the unconstrained interval spanning the whole domain.
func Universal() Interval {
	return Interval{Low: MinKey, LowInclusive: true, High: MaxKey, HighInclusive: true}
}

// Point returns a single-value interval, used for equality and each member
// of an `in` set.
func Point(v Value) Interval {
	return Interval{Low: v, LowInclusive: true, High: v, HighInclusive: true}
}

// IsPoint reports whether the interval denotes exactly one value.
func (iv Interval) IsPoint() bool {
	return iv.LowInclusive && iv.HighInclusive && Equal(iv.Low, iv.High)
}

// IsEmpty reports whether the interval can contain no value.
func (iv Interval) IsEmpty() bool {
	c := Compare(iv.Low, iv.High)
	if c > 0 {
		return true
	}
	if c == 0 && !(iv.LowInclusive && iv.HighInclusive) {
		return true
	}
	return false
}

// Reversed swaps Low/High, used when a bound is projected through a
// descending index key direction.
func (iv Interval) Reversed() Interval {
	return Interval{Low: iv.High, LowInclusive: iv.HighInclusive, High: iv.Low, HighInclusive: iv.LowInclusive}
}

// intersectPair returns the intersection of two intervals, which may be empty.
func intersectPair(a, b Interval) Interval {
	lo, loInc := a.Low, a.LowInclusive
	if c := Compare(b.Low, lo); c > 0 || (c == 0 && !b.LowInclusive) {
		lo, loInc = b.Low, b.LowInclusive
	}
	hi, hiInc := a.High, a.HighInclusive
	if c := Compare(b.High, hi); c < 0 || (c == 0 && !b.HighInclusive) {
		hi, hiInc = b.High, b.HighInclusive
	}
	return Interval{Low: lo, LowInclusive: loInc, High: hi, HighInclusive: hiInc}
}

// IntervalUnion is a sorted, disjoint union of intervals over one field.
type IntervalUnion []Interval

// UniversalUnion is the range a field carries when no predicate clause
// constrains it.
func UniversalUnion() IntervalUnion { return IntervalUnion{Universal()} }

// EmptyUnion is the range that can never match any document.
func EmptyUnion() IntervalUnion { return IntervalUnion{} }

// PointUnion builds a finite-set range from the given values, deduplicating
// and sorting them.
func PointUnion(values ...Value) IntervalUnion {
	u := make(IntervalUnion, 0, len(values))
	for _, v := range values {
		u = append(u, Point(v))
	}
	return u.normalize()
}

// normalize sorts intervals by Low and merges any that touch or overlap,
// restoring invariant 1 (§3): non-overlapping, sorted intervals per field.
func (u IntervalUnion) normalize() IntervalUnion {
	filtered := make(IntervalUnion, 0, len(u))
	for _, iv := range u {
		if !iv.IsEmpty() {
			filtered = append(filtered, iv)
		}
	}
	if len(filtered) < 2 {
		return filtered
	}
	sortIntervals(filtered)
	out := make(IntervalUnion, 0, len(filtered))
	cur := filtered[0]
	for _, iv := range filtered[1:] {
		if touches(cur, iv) {
			cur = mergeTouching(cur, iv)
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	out = append(out, cur)
	return out
}

func touches(a, b Interval) bool {
	c := Compare(a.High, b.Low)
	if c > 0 {
		return true
	}
	if c == 0 && (a.HighInclusive || b.LowInclusive) {
		return true
	}
	return false
}

func mergeTouching(a, b Interval) Interval {
	hi, hiInc := a.High, a.HighInclusive
	if c := Compare(b.High, hi); c > 0 || (c == 0 && b.HighInclusive) {
		hi, hiInc = b.High, b.HighInclusive
	}
	return Interval{Low: a.Low, LowInclusive: a.LowInclusive, High: hi, HighInclusive: hiInc}
}

func sortIntervals(u IntervalUnion) {
	// insertion sort over one field's intervals; avoids pulling in
	// sort.Slice's closure overhead.
	for i := 1; i < len(u); i++ {
		for j := i; j > 0 && lessInterval(u[j], u[j-1]); j-- {
			u[j], u[j-1] = u[j-1], u[j]
		}
	}
}

func lessInterval(a, b Interval) bool {
	if c := Compare(a.Low, b.Low); c != 0 {
		return c < 0
	}
	if a.LowInclusive != b.LowInclusive {
		return a.LowInclusive
	}
	return Compare(a.High, b.High) < 0
}

// Intersect returns the intersection of two field ranges (used to fold an
// `and` of clauses on the same field into a single range set).
func (u IntervalUnion) Intersect(other IntervalUnion) IntervalUnion {
	out := make(IntervalUnion, 0, len(u)+len(other))
	for _, a := range u {
		for _, b := range other {
			p := intersectPair(a, b)
			if !p.IsEmpty() {
				out = append(out, p)
			}
		}
	}
	return out.normalize()
}

// Union returns the union of two field ranges (used when folding `or`
// alternatives into the pessimistic single-range view, see FieldRangeSet).
func (u IntervalUnion) Union(other IntervalUnion) IntervalUnion {
	out := make(IntervalUnion, 0, len(u)+len(other))
	out = append(out, u...)
	out = append(out, other...)
	return out.normalize()
}

// IsEmpty reports the field range as impossible to satisfy.
func (u IntervalUnion) IsEmpty() bool { return len(u) == 0 }

// IsSingleton reports exactly one point interval.
func (u IntervalUnion) IsSingleton() bool { return len(u) == 1 && u[0].IsPoint() }

// IsFinite reports a finite union of point intervals (equality or `in`).
func (u IntervalUnion) IsFinite() bool {
	if len(u) == 0 {
		return false
	}
	for _, iv := range u {
		if !iv.IsPoint() {
			return false
		}
	}
	return true
}

// Min and Max return the overall low/high bound of the union, used when
// projecting a finite-set clause's [min,max] into an index bound (§4.3).
func (u IntervalUnion) Min() (Value, bool) {
	if len(u) == 0 {
		return nil, false
	}
	return u[0].Low, u[0].LowInclusive
}

func (u IntervalUnion) Max() (Value, bool) {
	if len(u) == 0 {
		return nil, false
	}
	last := u[len(u)-1]
	return last.High, last.HighInclusive
}

// Points returns the enumerated point values of a finite union, in sorted
// order. Callers must check IsFinite first.
func (u IntervalUnion) Points() []Value {
	pts := make([]Value, 0, len(u))
	for _, iv := range u {
		pts = append(pts, iv.Low)
	}
	return pts
}

// Reversed flips every interval and reverses the ordering, used to project
// a range into a descending index-key slot.
func (u IntervalUnion) Reversed() IntervalUnion {
	out := make(IntervalUnion, len(u))
	for i, iv := range u {
		out[len(u)-1-i] = iv.Reversed()
	}
	return out
}
