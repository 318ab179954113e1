package planner

import "context"

// BestGuess consults the PlanCache and, failing that, picks the first
// Helpful-or-better index plan by the same enumeration order §4.4 uses.
// It never races (§4.7): used by read paths where racing overhead is
// unacceptable, such as singleton lookups on the write path.
func BestGuess(ctx context.Context, engine StorageEngine, cat IndexCatalog, registry *CacheRegistry, ns string, frsp *FieldRangeSetPair, sort_ []SortField, proj *Projection) (Cursor, error) {
	pattern := NewQueryPattern(frsp.Pessimistic, sort_)
	var cache *PlanCache
	if registry != nil {
		cache = registry.ForNamespace(ns)
	}

	if cache != nil {
		if cached, ok := cache.Lookup(pattern); ok {
			if spec, ok := cat.FindByKey(cached.IndexKey); ok {
				p := NewQueryPlan(spec, indexOrdinal(cat, spec), frsp, proj, sort_)
				if p.UtilityRating != Disallowed && p.UtilityRating != Impossible {
					return openSingle(ctx, engine, frsp, p)
				}
			}
		}
	}

	plans := buildIndexPlans(cat, frsp, proj, sort_)
	var best *QueryPlan
	for _, p := range plans {
		if p.UtilityRating == Impossible || p.UtilityRating == Disallowed || p.UtilityRating == Unhelpful {
			continue
		}
		if best == nil || p.UtilityRating > best.UtilityRating {
			best = p
		}
	}
	if best == nil {
		best = NewCollectionScanPlan(frsp, sort_)
	}
	return openSingle(ctx, engine, frsp, best)
}

func openSingle(ctx context.Context, engine StorageEngine, frsp *FieldRangeSetPair, p *QueryPlan) (Cursor, error) {
	cursor, err := engine.OpenCursor(ctx, p)
	if err != nil {
		return nil, err
	}
	var matcher Matcher
	if !p.ExactKeyMatch {
		matcher = engine.NewMatcher(frsp.Predicate)
	}
	exec := newPlanExecution(p, cursor, matcher)
	cur := &scannerCursor{scanner: &MultiPlanScanner{}, exec: exec}
	cur.primeFirst()
	return cur, nil
}
