package planner

import "sync"

// CacheRegistry is the process-wide, namespace-partitioned home for
// PlanCache instances (§5, §9 "global singletons"). It's the one
// deliberate global in the core: the lifecycle it manages (create a
// partition lazily, clear it on schema change, drop it on collection
// drop) is explicit and small enough to reason about without hiding
// state behind package-level variables.
type CacheRegistry struct {
	mu         sync.Mutex
	partitions map[string]*PlanCache
}

// NewCacheRegistry returns an empty registry.
func NewCacheRegistry() *CacheRegistry {
	return &CacheRegistry{partitions: map[string]*PlanCache{}}
}

// ForNamespace returns the PlanCache for a namespace, creating it on
// first use.
func (r *CacheRegistry) ForNamespace(ns string) *PlanCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.partitions[ns]
	if !ok {
		pc = NewPlanCache()
		r.partitions[ns] = pc
	}
	return pc
}

// ClearNamespace clears (but keeps) a namespace's cache, called on index
// creation or drop.
func (r *CacheRegistry) ClearNamespace(ns string) {
	r.mu.Lock()
	pc, ok := r.partitions[ns]
	r.mu.Unlock()
	if ok {
		pc.Clear()
	}
}

// DropNamespace removes a namespace's cache entirely, called on
// collection drop.
func (r *CacheRegistry) DropNamespace(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.partitions, ns)
}
