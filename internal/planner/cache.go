package planner

import "sync"

// CachedQueryPlan is the tuple a PlanCache stores per pattern (§3): the
// winning index's key, the number of documents it scanned on its last
// win, and whether it ran in-order or out-of-order.
type CachedQueryPlan struct {
	IndexKey  []KeyField
	NScanned  int
	Character CandidatePlanCharacter
}

// invalidationFactor is the tuning knob ShouldInvalidate applies (§4.6,
// §9 open question): an observed scan count exceeding a cached plan's
// recorded count by more than this multiple. 10x is a deliberately
// generous default -- it tolerates normal data growth between queries
// while still catching a plan that has become a clear loser. The scanner
// does not call ShouldInvalidate or Invalidate, and does not re-race an
// underperforming cached plan: an entry changes only when a later race
// records a new winner for its pattern, or when Clear empties the cache.
const invalidationFactor = 10

// PlanCache is a per-collection mapping from QueryPattern to
// CachedQueryPlan (§4.5), guarded by a single mutex per the "consistency
// over throughput" note in §5.
type PlanCache struct {
	mu      sync.Mutex
	entries map[string]CachedQueryPlan
}

// NewPlanCache returns an empty cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{entries: map[string]CachedQueryPlan{}}
}

// Lookup returns the cached plan for a pattern, if any.
func (c *PlanCache) Lookup(pattern QueryPattern) (CachedQueryPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp, ok := c.entries[pattern.Key()]
	return cp, ok
}

// Record stores a winning plan under its pattern. Per invariant 5 (§3),
// callers must never record a plan whose utility was Impossible or
// Disallowed; Record enforces that defensively.
func (c *PlanCache) Record(pattern QueryPattern, plan *QueryPlan, nScanned int, character CandidatePlanCharacter) {
	if plan == nil || plan.IsCollectionScan() {
		return
	}
	if plan.UtilityRating == Impossible || plan.UtilityRating == Disallowed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pattern.Key()] = CachedQueryPlan{
		IndexKey:  plan.Index.Key,
		NScanned:  nScanned,
		Character: character,
	}
}

// ShouldInvalidate reports the adaptive-fallback condition (§4.6): the
// observed scan count for a cached plan exceeds its recorded count by
// more than invalidationFactor.
func ShouldInvalidate(cached CachedQueryPlan, observedScanned int) bool {
	if cached.NScanned <= 0 {
		return false
	}
	return observedScanned > cached.NScanned*invalidationFactor
}

// Invalidate removes one pattern's entry.
func (c *PlanCache) Invalidate(pattern QueryPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pattern.Key())
}

// Clear empties the cache, called on index creation, index drop, or
// collection drop (§4.5).
func (c *PlanCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]CachedQueryPlan{}
}

// Len reports the number of cached patterns, used by diagnostics.
func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
