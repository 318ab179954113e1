package planner

import (
	"fmt"
	"strings"
)

// CandidatePlanCharacter summarizes, across a plan set, whether the winner
// could run in the requested sort order or must scan-and-sort. Both bits
// may be set (some candidates qualify, some don't).
type CandidatePlanCharacter struct {
	MayRunInOrder    bool
	MayRunOutOfOrder bool
}

// RecordedPlanPolicy controls whether QueryPlanSet consults the PlanCache
// during construction (§4.4 step 4).
type RecordedPlanPolicy int

const (
	UseRecordedPlan RecordedPlanPolicy = iota
	IgnoreRecordedPlan
)

// Options bundles the per-query knobs QueryPlanSet construction reads
// (§6): whether a special (geospatial) plan may be chosen, and how to
// treat a cached winner.
type Options struct {
	AllowSpecial  bool
	RecordedPlan  RecordedPlanPolicy
}

// QueryPlanSet is the ordered list of candidate plans for one
// (predicate, sort, hint, allowSpecial) tuple (§3, §4.4).
type QueryPlanSet struct {
	plans                 []*QueryPlan
	usingCachedPlan        bool
	hasPossiblyExcludedPlans bool
	character              CandidatePlanCharacter
}

func (ps *QueryPlanSet) NPlans() int          { return len(ps.plans) }
func (ps *QueryPlanSet) FirstPlan() *QueryPlan {
	if len(ps.plans) == 0 {
		return nil
	}
	return ps.plans[0]
}
func (ps *QueryPlanSet) Plans() []*QueryPlan { return ps.plans }
func (ps *QueryPlanSet) UsingCachedPlan() bool { return ps.usingCachedPlan }
func (ps *QueryPlanSet) HasPossiblyExcludedPlans() bool { return ps.hasPossiblyExcludedPlans }
func (ps *QueryPlanSet) HaveInOrderPlan() bool {
	for _, p := range ps.plans {
		if !p.ScanAndOrderRequired {
			return true
		}
	}
	return false
}
func (ps *QueryPlanSet) PossibleInOrderPlan() *QueryPlan {
	for _, p := range ps.plans {
		if !p.ScanAndOrderRequired {
			return p
		}
	}
	return nil
}
func (ps *QueryPlanSet) PossibleOutOfOrderPlan() *QueryPlan {
	for _, p := range ps.plans {
		if p.ScanAndOrderRequired {
			return p
		}
	}
	return nil
}

// String renders every plan in the set; per §6 must never panic.
func (ps *QueryPlanSet) String() string {
	if ps == nil {
		return "<nil plan set>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PlanSet(n=%d cached=%v){", len(ps.plans), ps.usingCachedPlan)
	for i, p := range ps.plans {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("}")
	return b.String()
}

// BuildQueryPlanSet implements the construction algorithm of §4.4.
func BuildQueryPlanSet(cat IndexCatalog, frsp *FieldRangeSetPair, sort_ []SortField, hint Hint, proj *Projection, opts Options, cache *PlanCache) (*QueryPlanSet, error) {
	// Step 1-2: hint resolution short-circuits everything else.
	if !hint.IsZero() {
		idxSpec, isScan, dir, err := hint.resolve(cat)
		if err != nil {
			return nil, err
		}
		var p *QueryPlan
		if isScan {
			p = NewCollectionScanPlan(frsp, sort_)
			p.Direction = dir
		} else {
			p = NewQueryPlan(*idxSpec, indexOrdinal(cat, *idxSpec), frsp, proj, sort_)
		}
		return &QueryPlanSet{plans: []*QueryPlan{p}}, nil
	}

	special, hasSpecial := frsp.Pessimistic.Special()
	geoNear := frsp.Predicate.HasGeoNear()
	if geoNear && !opts.AllowSpecial {
		return nil, ErrSpecialNotAllowed
	}

	// Step 3: special-access predicate with allowSpecial.
	if hasSpecial && opts.AllowSpecial {
		if specIdx, ok := findSpecialIndex(cat, special); ok {
			// Rule 8: a coexisting viable btree plan excludes the special
			// plan unless the predicate actually used a geospatial
			// operator (a bare-value "near-shaped" field with no $near
			// clause doesn't force the special path).
			btreePlans := buildIndexPlans(cat, frsp, proj, sort_)
			viableBtree := firstViable(btreePlans)
			if !geoNear && viableBtree != nil {
				return finishPlanSet(cat, frsp, sort_, proj, opts, cache, btreePlans)
			}
			p := NewQueryPlan(specIdx, indexOrdinal(cat, specIdx), frsp, proj, sort_)
			return &QueryPlanSet{plans: []*QueryPlan{p}}, nil
		}
		if geoNear {
			return nil, ErrNoSpecialIndex
		}
	}

	// Step 4: consult the plan cache.
	if cache != nil && opts.RecordedPlan == UseRecordedPlan {
		pattern := NewQueryPattern(frsp.Pessimistic, sort_)
		if cached, ok := cache.Lookup(pattern); ok {
			if spec, ok := cat.FindByKey(cached.IndexKey); ok {
				p := NewQueryPlan(spec, indexOrdinal(cat, spec), frsp, proj, sort_)
				if p.UtilityRating != Impossible && p.UtilityRating != Disallowed {
					ps := &QueryPlanSet{plans: []*QueryPlan{p}, usingCachedPlan: true}
					inOrder := !p.ScanAndOrderRequired
					if inOrder != cached.Character.MayRunInOrder && cached.Character.MayRunOutOfOrder {
						ps.hasPossiblyExcludedPlans = true
					}
					return ps, nil
				}
			}
		}
	}

	// Steps 5-7: enumerate indexes.
	plans := buildIndexPlans(cat, frsp, proj, sort_)
	return finishPlanSet(cat, frsp, sort_, proj, opts, cache, plans)
}

func firstViable(plans []*QueryPlan) *QueryPlan {
	for _, p := range plans {
		if p.UtilityRating != Impossible && p.UtilityRating != Disallowed {
			return p
		}
	}
	return nil
}

// buildIndexPlans constructs one QueryPlan per catalog index, in catalog
// enumeration order, without yet applying the drop/collapse rules.
func buildIndexPlans(cat IndexCatalog, frsp *FieldRangeSetPair, proj *Projection, sort_ []SortField) []*QueryPlan {
	indexes := cat.Indexes()
	plans := make([]*QueryPlan, 0, len(indexes))
	for i, idx := range indexes {
		if idx.Special != KindNone {
			continue // special indexes are only selected via the dedicated path
		}
		plans = append(plans, NewQueryPlan(idx, i, frsp, proj, sort_))
	}
	return plans
}

func finishPlanSet(cat IndexCatalog, frsp *FieldRangeSetPair, sort_ []SortField, proj *Projection, opts Options, cache *PlanCache, built []*QueryPlan) (*QueryPlanSet, error) {
	// Step 5: drop Impossible/Disallowed.
	viable := make([]*QueryPlan, 0, len(built))
	for _, p := range built {
		if p.UtilityRating != Impossible && p.UtilityRating != Disallowed {
			viable = append(viable, p)
		}
	}

	// Step 6: collapse to the first Optimal plan.
	for _, p := range viable {
		if p.UtilityRating == Optimal {
			return &QueryPlanSet{plans: []*QueryPlan{p}}, nil
		}
	}

	// Step 7: keep Helpful plans; add a collection scan when none of them
	// runs in sort order, except when the query is sort-less and has
	// equality fields.
	helpful := make([]*QueryPlan, 0, len(viable))
	anyInOrder := false
	anyEqualityCoverage := len(frsp.Predicate.EqualityFields()) > 0
	for _, p := range viable {
		if p.UtilityRating == Helpful {
			helpful = append(helpful, p)
			if !p.ScanAndOrderRequired {
				anyInOrder = true
			}
		}
	}
	if len(helpful) == 0 {
		// No usable index at all: fall back to a lone collection scan
		// (covers the Unhelpful-only and no-index cases, including the
		// sparse-exclusion scenario in §8.4).
		cs := NewCollectionScanPlan(frsp, sort_)
		return &QueryPlanSet{plans: []*QueryPlan{cs}}, nil
	}
	needsScan := !anyInOrder
	if len(sort_) == 0 && anyEqualityCoverage {
		needsScan = false
	}
	plans := helpful
	if needsScan {
		plans = append(plans, NewCollectionScanPlan(frsp, sort_))
	}
	return &QueryPlanSet{plans: plans}, nil
}

func indexOrdinal(cat IndexCatalog, spec IndexSpec) int {
	for i, idx := range cat.Indexes() {
		if idx.Name == spec.Name {
			return i
		}
	}
	return -1
}

func findSpecialIndex(cat IndexCatalog, field string) (IndexSpec, bool) {
	for _, idx := range cat.Indexes() {
		if idx.Special != KindNone && idx.FieldAt(0) == field {
			return idx, true
		}
	}
	return IndexSpec{}, false
}
