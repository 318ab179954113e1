package planner

import (
	"context"
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

func drain(t *testing.T, cur Cursor) []docval.Document {
	t.Helper()
	var out []docval.Document
	for cur.Ok() {
		out = append(out, cur.Current())
		if err := cur.Advance(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	return out
}

// Scenario 7: cache reuse after a race.
func TestCacheReuseAfterRace(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{
		{Name: "_id_", Key: []KeyField{{"_id", 1}}},
		{Name: "a_1", Key: []KeyField{{"a", 1}}},
	}}
	for i := 0; i < 200; i++ {
		cat.docs = append(cat.docs, docval.Document{"_id": i + 1, "a": 2})
	}
	cat.docs = append(cat.docs, docval.Document{"_id": 1000, "a": 1})

	engine := &fakeEngine{cat: cat}
	registry := NewCacheRegistry()
	const ns = "test.coll"

	pred := &predicate.Predicate{And: []*predicate.Predicate{
		predicate.Eq("a", 1),
		{Clauses: []predicate.Clause{{Field: "_id", Op: predicate.OpNot, Inner: &predicate.Clause{Field: "_id", Op: predicate.OpEq, Value: 0}}}},
	}}
	frsp := NewFieldRangeSetPair(pred)
	pattern := NewQueryPattern(frsp.Pessimistic, nil)
	cache := registry.ForNamespace(ns)

	ps, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{}, cache)
	if err != nil {
		t.Fatal(err)
	}
	scanner := NewMultiPlanScanner(engine, ns, registry, pattern)
	cur, err := scanner.Run(context.Background(), ps, func(p *QueryPlan) Matcher {
		if p.ExactKeyMatch {
			return nil
		}
		return engine.NewMatcher(pred)
	})
	if err != nil {
		t.Fatal(err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 || docs[0]["_id"] != 1000 {
		t.Fatalf("expected the single a=1 document, got %v", docs)
	}

	cached, ok := cache.Lookup(pattern)
	if !ok {
		t.Fatal("expected a cache entry after the race completes")
	}
	if !SameKeyPattern(cached.IndexKey, []KeyField{{"a", 1}}) {
		t.Fatalf("expected winning index a_1, got %v", cached.IndexKey)
	}
	if cached.NScanned != 1 {
		t.Fatalf("expected nScanned=1, got %d", cached.NScanned)
	}

	ps2, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{}, cache)
	if err != nil {
		t.Fatal(err)
	}
	if !ps2.UsingCachedPlan() {
		t.Fatal("expected the second identical query to report usingCachedPlan=true")
	}
}

func TestBestGuessNeverRaces(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{{Name: "a_1", Key: []KeyField{{"a", 1}}}}}
	cat.docs = []docval.Document{{"_id": 1, "a": 5}, {"_id": 2, "a": 7}}
	engine := &fakeEngine{cat: cat}
	frsp := NewFieldRangeSetPair(predicate.Eq("a", 7))
	cur, err := BestGuess(context.Background(), engine, cat, nil, "test.coll", frsp, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 || docs[0]["_id"] != 2 {
		t.Fatalf("expected the single a=7 document, got %v", docs)
	}
}

func TestOrDecompositionSuppressesDuplicates(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{
		{Name: "a_1", Key: []KeyField{{"a", 1}}},
		{Name: "b_1", Key: []KeyField{{"b", 1}}},
	}}
	cat.docs = []docval.Document{
		{"_id": 1, "a": 1, "b": 1},
		{"_id": 2, "a": 2, "b": 2},
	}
	engine := &fakeEngine{cat: cat}
	pred := predicate.Or(predicate.Eq("a", 1), predicate.Eq("b", 1))
	cur := NewOrDecomposedCursor(engine, cat, nil, "test.coll", pred, nil, nil, Options{})
	if cur == nil {
		t.Fatal("expected an or-decomposed cursor for a top-level $or")
	}
	if err := cur.Advance(context.Background()); err != nil {
		t.Fatal(err)
	}
	docs := drain(t, cur)
	seen := map[interface{}]int{}
	for _, d := range docs {
		seen[d["_id"]]++
	}
	if seen[1] != 1 {
		t.Fatalf("expected doc _id=1 exactly once across both branches, got %d", seen[1])
	}
}
