package planner

import (
	"testing"

	"github.com/nullstore/docdb/internal/predicate"
)

func TestCacheNeverRecordsImpossibleOrDisallowed(t *testing.T) {
	cache := NewPlanCache()
	idxSpec := idx("a_1", KeyField{"a", 1})
	impossiblePred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpIn, Values: nil}}}
	frsp := NewFieldRangeSetPair(impossiblePred)
	p := NewQueryPlan(idxSpec, 0, frsp, nil, nil)
	pattern := NewQueryPattern(frsp.Pessimistic, nil)

	cache.Record(pattern, p, 10, CandidatePlanCharacter{MayRunInOrder: true})
	if _, ok := cache.Lookup(pattern); ok {
		t.Fatal("expected no cache entry for an Impossible plan")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewPlanCache()
	idxSpec := idx("a_1", KeyField{"a", 1})
	frsp := NewFieldRangeSetPair(predicate.Eq("a", 1))
	p := NewQueryPlan(idxSpec, 0, frsp, nil, nil)
	pattern := NewQueryPattern(frsp.Pessimistic, nil)

	cache.Record(pattern, p, 1, CandidatePlanCharacter{MayRunInOrder: true})
	cached, ok := cache.Lookup(pattern)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !SameKeyPattern(cached.IndexKey, idxSpec.Key) || cached.NScanned != 1 {
		t.Fatalf("unexpected cached entry: %+v", cached)
	}
}

func TestPatternIgnoresLiteralConstants(t *testing.T) {
	frsp1 := NewFieldRangeSetPair(predicate.Eq("a", 1))
	frsp2 := NewFieldRangeSetPair(predicate.Eq("a", 999))
	p1 := NewQueryPattern(frsp1.Pessimistic, nil)
	p2 := NewQueryPattern(frsp2.Pessimistic, nil)
	if !p1.Equal(p2) {
		t.Fatalf("expected patterns to match regardless of constant: %q vs %q", p1.Key(), p2.Key())
	}
}

func TestPatternDiffersOnShape(t *testing.T) {
	frsp1 := NewFieldRangeSetPair(predicate.Eq("a", 1))
	rangePred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpGt, Value: 1}}}
	frsp2 := NewFieldRangeSetPair(rangePred)
	p1 := NewQueryPattern(frsp1.Pessimistic, nil)
	p2 := NewQueryPattern(frsp2.Pessimistic, nil)
	if p1.Equal(p2) {
		t.Fatal("expected point vs range clauses to produce different patterns")
	}
}

func TestShouldInvalidate(t *testing.T) {
	cached := CachedQueryPlan{NScanned: 10}
	if ShouldInvalidate(cached, 100) {
		t.Fatal("100 should not exceed the 10x threshold on nScanned=10")
	}
	if !ShouldInvalidate(cached, 101) {
		t.Fatal("101 should exceed the 10x threshold on nScanned=10")
	}
}

func TestCacheRegistryPartitionsByNamespace(t *testing.T) {
	reg := NewCacheRegistry()
	a := reg.ForNamespace("db.a")
	b := reg.ForNamespace("db.b")
	if a == b {
		t.Fatal("expected distinct cache partitions per namespace")
	}
	if reg.ForNamespace("db.a") != a {
		t.Fatal("expected the same partition on repeat lookup")
	}
}
