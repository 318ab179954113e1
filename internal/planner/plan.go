package planner

import (
	"fmt"
	"strings"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// Utility rates a plan's quality, in ascending order of desirability. The
// numeric values matter: BestGuess compares ratings with `>` to pick the
// highest-rated plan.
type Utility int

const (
	Impossible Utility = iota
	Disallowed
	Unhelpful
	Helpful
	Optimal
)

func (u Utility) String() string {
	switch u {
	case Impossible:
		return "Impossible"
	case Disallowed:
		return "Disallowed"
	case Unhelpful:
		return "Unhelpful"
	case Helpful:
		return "Helpful"
	case Optimal:
		return "Optimal"
	default:
		return "Unknown"
	}
}

// CollectionScanIndex is the sentinel index ordinal denoting a full
// collection scan (§3).
const CollectionScanIndex = -1

// QueryPlan is one candidate access path, immutable once built (§3).
type QueryPlan struct {
	Index      *IndexSpec // nil for a collection scan
	IndexOrdinal int
	Direction  int // +1, -1, or 0 (scan-and-sort required)
	StartKey   []docval.Value
	EndKey     []docval.Value

	UtilityRating Utility

	ScanAndOrderRequired    bool
	ExactKeyMatch           bool
	KeyFieldsOnly           bool
	QueryFiniteSetOrderSuffix bool

	predicate *predicate.Predicate
	sort      []SortField
}

// Projection lists the fields a caller asked to have returned, used only
// to check keyFieldsOnly coverage. A nil projection means "no projection
// requested" and never sets KeyFieldsOnly.
type Projection struct {
	Fields []string
}

// IsCollectionScan reports the sentinel full-scan plan.
func (p *QueryPlan) IsCollectionScan() bool { return p.Index == nil }

// NewCollectionScanPlan builds the sentinel full-scan plan for a
// predicate and sort. Direction is always +1 (natural order) and any sort
// sets ScanAndOrderRequired; a `$natural` hint overrides the direction
// from its sign.
func NewCollectionScanPlan(frsp *FieldRangeSetPair, sort_ []SortField) *QueryPlan {
	dir := 1
	scanAndOrder := false
	if len(sort_) > 0 {
		scanAndOrder = true
	}
	utility := Helpful
	if frsp.Pessimistic.IsEmpty() {
		utility = Impossible
	}
	return &QueryPlan{
		Index:                 nil,
		IndexOrdinal:          CollectionScanIndex,
		Direction:             dir,
		UtilityRating:         utility,
		ScanAndOrderRequired:  scanAndOrder,
		predicate:             frsp.Predicate,
		sort:                  sort_,
	}
}

// NewQueryPlan constructs a candidate plan for one index against a
// predicate and sort (§4.3). ordinal is the index's position in catalog
// enumeration order, stored as IndexOrdinal; QueryPlanSet's "first
// Optimal plan wins ties" rule follows enumeration order directly.
func NewQueryPlan(idx IndexSpec, ordinal int, frsp *FieldRangeSetPair, proj *Projection, sort_ []SortField) *QueryPlan {
	p := &QueryPlan{
		Index:        &idx,
		IndexOrdinal: ordinal,
		predicate:    frsp.Predicate,
		sort:         sort_,
	}
	p.deriveBounds(frsp.Pessimistic)
	p.deriveDirection(idx)
	p.UtilityRating = p.computeUtility(idx, frsp.Pessimistic)
	p.ExactKeyMatch = p.computeExactKeyMatch(idx)
	p.KeyFieldsOnly = p.computeKeyFieldsOnly(idx, proj)
	p.QueryFiniteSetOrderSuffix = p.computeFiniteSetOrderSuffix(idx)
	return p
}

// deriveBounds walks the index key pattern position by position,
// projecting the pessimistic range for each field into start/end,
// flipping for descending key directions, and padding unconstrained
// trailing positions with minKey/maxKey (§4.3).
func (p *QueryPlan) deriveBounds(frs *FieldRangeSet) {
	n := len(p.Index.Key)
	p.StartKey = make([]docval.Value, n)
	p.EndKey = make([]docval.Value, n)
	for i, kf := range p.Index.Key {
		u := frs.Range(kf.Field)
		lo, _ := u.Min()
		hi, _ := u.Max()
		if u.IsEmpty() {
			lo, hi = docval.MaxKey, docval.MinKey // an inverted, unsatisfiable bound
		}
		if kf.Direction < 0 {
			lo, hi = hi, lo
		}
		p.StartKey[i] = lo
		p.EndKey[i] = hi
	}
}

// deriveDirection reports +1/-1 when every requested sort component is a
// prefix of the index key with uniformly matching or uniformly flipped
// signs, else 0 meaning scan-and-sort is required (§4.3).
func (p *QueryPlan) deriveDirection(idx IndexSpec) {
	if len(p.sort) == 0 {
		p.Direction = 1
		p.ScanAndOrderRequired = false
		return
	}
	// A leading run of the index key pinned to a point or a finite set by
	// the predicate carries no ordering obligation of its own, so the
	// sort only needs to match the index key run that follows it.
	finite := p.predicate.FiniteSetFields()
	lead := 0
	for ; lead < len(idx.Key); lead++ {
		if !finite[idx.Key[lead].Field] {
			break
		}
	}
	if len(p.sort) > len(idx.Key)-lead {
		p.Direction = 0
		p.ScanAndOrderRequired = true
		return
	}
	sameSign, flipped := true, true
	for i, sf := range p.sort {
		if idx.Key[lead+i].Field != sf.Field {
			p.Direction = 0
			p.ScanAndOrderRequired = true
			return
		}
		if idx.Key[lead+i].Direction != sf.Direction {
			sameSign = false
		}
		if idx.Key[lead+i].Direction == sf.Direction {
			flipped = false
		}
	}
	switch {
	case sameSign:
		p.Direction = 1
		p.ScanAndOrderRequired = false
	case flipped:
		p.Direction = -1
		p.ScanAndOrderRequired = false
	default:
		p.Direction = 0
		p.ScanAndOrderRequired = true
	}
}

// satisfiesSort reports whether this index, ignoring bounds, can serve
// the requested sort in either direction (used by the Unhelpful check).
func satisfiesSort(idx IndexSpec, sort_ []SortField) bool {
	if len(sort_) == 0 {
		return true
	}
	if len(sort_) > len(idx.Key) {
		return false
	}
	sameSign, flipped := true, true
	for i, sf := range sort_ {
		if idx.Key[i].Field != sf.Field {
			return false
		}
		if idx.Key[i].Direction != sf.Direction {
			sameSign = false
		}
		if idx.Key[i].Direction == sf.Direction {
			flipped = false
		}
	}
	return sameSign || flipped
}

// computeUtility applies the five-rule precedence chain of §4.3.
func (p *QueryPlan) computeUtility(idx IndexSpec, frs *FieldRangeSet) Utility {
	for _, kf := range idx.Key {
		if frs.IsEmptyField(kf.Field) {
			return Impossible
		}
	}
	if idx.Sparse && p.predicate.ExcludesSparseField() {
		return Disallowed
	}
	hasNonUniversalRange := false
	for _, kf := range idx.Key {
		if !isUniversal(frs.Range(kf.Field)) {
			hasNonUniversalRange = true
			break
		}
	}
	satisfiesTheSort := satisfiesSort(idx, p.sort)
	if !hasNonUniversalRange && !satisfiesTheSort {
		return Unhelpful
	}
	if p.isOptimalShape(idx) {
		return Optimal
	}
	return Helpful
}

// isOptimalShape checks §4.3 rule 4: the index key is a prefix of
// (equality fields) ++ (sort fields), and every predicate clause on a
// covered field is a single interval.
func (p *QueryPlan) isOptimalShape(idx IndexSpec) bool {
	covered := idx.KeyFieldSet()
	for _, f := range p.predicate.Fields() {
		if !covered[f] {
			// A field the predicate constrains but the index doesn't cover
			// means some filtering happens outside the index key, so the
			// index alone can never be the single best access path.
			return false
		}
	}

	eqFields := p.predicate.EqualityFields()
	prefix := make([]string, 0, len(eqFields)+len(p.sort))
	// Equality fields have no fixed order in the predicate; try every
	// index key field in turn -- an index key qualifies as long as its
	// leading run is entirely drawn from the equality set (in whatever
	// order the index declares them), followed by the sort fields.
	i := 0
	for ; i < len(idx.Key); i++ {
		f := idx.Key[i].Field
		if !eqFields[f] {
			break
		}
		prefix = append(prefix, f)
	}
	for _, sf := range p.sort {
		if i >= len(idx.Key) || idx.Key[i].Field != sf.Field {
			return false
		}
		prefix = append(prefix, sf.Field)
		i++
	}
	if len(prefix) == 0 {
		return false
	}
	if i > len(idx.Key) {
		return false
	}
	return everyClauseOnCoveredFieldIsSingleInterval(p.predicate, idx.KeyFieldSet())
}

func everyClauseOnCoveredFieldIsSingleInterval(pred *predicate.Predicate, covered map[string]bool) bool {
	if pred == nil {
		return true
	}
	if len(pred.Or) != 0 || len(pred.Nor) != 0 {
		for _, f := range pred.Fields() {
			if covered[f] {
				return false
			}
		}
	}
	for _, c := range pred.Clauses {
		if !covered[c.Field] {
			continue
		}
		switch c.Op {
		case predicate.OpEq, predicate.OpLt, predicate.OpLte, predicate.OpGt, predicate.OpGte:
			// single interval
		default:
			return false
		}
	}
	for _, sub := range pred.And {
		if !everyClauseOnCoveredFieldIsSingleInterval(sub, covered) {
			return false
		}
	}
	return true
}

// computeExactKeyMatch applies §4.3's exactKeyMatch rule: every clause
// references only index-key fields, is a scalar equality of an exact
// match type (docval.IsExactMatchType), no regex/not/exists/or/nor, and
// no nested object value.
func (p *QueryPlan) computeExactKeyMatch(idx IndexSpec) bool {
	if p.IsCollectionScan() {
		return false
	}
	return p.predicate.UsesOnlyEqualityOn(idx.KeyFieldSet())
}

// computeKeyFieldsOnly reports whether a requested projection is
// satisfiable purely from the index key (§4.3): every projected field is
// in the key, and the index isn't multikey (a multikey index doesn't
// store one key entry per document, so it can't stand in for the whole
// document's field value).
func (p *QueryPlan) computeKeyFieldsOnly(idx IndexSpec, proj *Projection) bool {
	if proj == nil || idx.Multikey {
		return false
	}
	keyFields := idx.KeyFieldSet()
	for _, f := range proj.Fields {
		if !keyFields[f] {
			return false
		}
	}
	return true
}

// computeFiniteSetOrderSuffix implements §4.3's flag: the index key
// partitions into a prefix wholly constrained to finite sets, followed by
// a contiguous run matching the sort (same or uniformly flipped
// direction); trailing fields may be unconstrained.
func (p *QueryPlan) computeFiniteSetOrderSuffix(idx IndexSpec) bool {
	finite := p.predicate.FiniteSetFields()

	// Any field the predicate pins to a finite set but the index never
	// mentions can't be folded into a per-value index scan, so no split
	// of the key can satisfy the sort this way.
	keyFields := idx.KeyFieldSet()
	for f := range finite {
		if !keyFields[f] {
			return false
		}
	}

	if len(p.sort) == 0 {
		i := 0
		for ; i < len(idx.Key); i++ {
			if !finite[idx.Key[i].Field] {
				break
			}
		}
		return i > 0
	}

	// The finite prefix and the sort suffix may overlap (a field already
	// pinned to one value trivially satisfies any sort direction), so try
	// every split point rather than greedily consuming every finite field
	// before checking the sort run.
	for i := 0; i+len(p.sort) <= len(idx.Key); i++ {
		allFinite := true
		for j := 0; j < i; j++ {
			if !finite[idx.Key[j].Field] {
				allFinite = false
				break
			}
		}
		if !allFinite {
			continue
		}

		matched, sameSign, flipped := true, true, true
		for j, sf := range p.sort {
			if idx.Key[i+j].Field != sf.Field {
				matched = false
				break
			}
			if idx.Key[i+j].Direction != sf.Direction {
				sameSign = false
			}
			if idx.Key[i+j].Direction == sf.Direction {
				flipped = false
			}
		}
		if matched && (sameSign || flipped) {
			return true
		}
	}
	return false
}

// String renders a human-readable summary of the plan. Per §6 this must
// never panic on a legal input, including a nil-Index collection scan.
func (p *QueryPlan) String() string {
	if p == nil {
		return "<nil plan>"
	}
	var b strings.Builder
	if p.IsCollectionScan() {
		b.WriteString("COLLSCAN")
	} else {
		fmt.Fprintf(&b, "IXSCAN(%s)", p.Index.Name)
	}
	fmt.Fprintf(&b, " dir=%d utility=%s", p.Direction, p.UtilityRating)
	if p.ScanAndOrderRequired {
		b.WriteString(" scanAndOrder")
	}
	if p.ExactKeyMatch {
		b.WriteString(" exactKeyMatch")
	}
	if p.KeyFieldsOnly {
		b.WriteString(" keyFieldsOnly")
	}
	if p.QueryFiniteSetOrderSuffix {
		b.WriteString(" finiteSetOrderSuffix")
	}
	if !p.IsCollectionScan() {
		fmt.Fprintf(&b, " start=%v end=%v", p.StartKey, p.EndKey)
	}
	return b.String()
}
