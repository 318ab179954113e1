package planner

import (
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

func idx(name string, keys ...KeyField) IndexSpec {
	return IndexSpec{Name: name, Key: keys}
}

// Scenario 1: Simple order.
func TestSimpleOrder(t *testing.T) {
	frsp := NewFieldRangeSetPair(&predicate.Predicate{})
	p := NewQueryPlan(idx("a_1", KeyField{"a", 1}), 0, frsp, nil, []SortField{{"a", 1}})
	if p.Direction != 1 {
		t.Fatalf("expected direction +1, got %d", p.Direction)
	}
	if p.ScanAndOrderRequired {
		t.Fatal("expected scanAndOrderRequired=false")
	}
	if !docval.Equal(p.StartKey[0], docval.MinKey) || !docval.Equal(p.EndKey[0], docval.MaxKey) {
		t.Fatalf("expected minKey/maxKey bounds, got %v/%v", p.StartKey, p.EndKey)
	}
}

// Scenario 2: Reverse suffix.
func TestReverseSuffix(t *testing.T) {
	frsp := NewFieldRangeSetPair(&predicate.Predicate{})
	p := NewQueryPlan(idx("ab", KeyField{"a", -1}, KeyField{"b", 1}), 0, frsp,
		nil, []SortField{{"a", 1}, {"b", -1}})
	if p.Direction != -1 {
		t.Fatalf("expected direction -1, got %d", p.Direction)
	}
	if p.ScanAndOrderRequired {
		t.Fatal("expected scanAndOrderRequired=false")
	}
}

// Scenario 3: Impossible $in.
func TestImpossibleEmptyIn(t *testing.T) {
	pred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpIn, Values: nil}}}
	frsp := NewFieldRangeSetPair(pred)
	p := NewQueryPlan(idx("a_1", KeyField{"a", 1}), 0, frsp, nil, nil)
	if p.UtilityRating != Impossible {
		t.Fatalf("expected Impossible, got %s", p.UtilityRating)
	}
}

// Scenario 4: Sparse exclusion.
func TestSparseExclusion(t *testing.T) {
	pred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpExists, ExistsWant: false}}}
	frsp := NewFieldRangeSetPair(pred)
	sparse := idx("a_1", KeyField{"a", 1})
	sparse.Sparse = true
	p := NewQueryPlan(sparse, 0, frsp, nil, nil)
	if p.UtilityRating != Disallowed {
		t.Fatalf("expected Disallowed, got %s", p.UtilityRating)
	}
}

// Scenario 5: Finite-set order suffix.
func TestFiniteSetOrderSuffix(t *testing.T) {
	pred := &predicate.Predicate{Clauses: []predicate.Clause{
		{Field: "a", Op: predicate.OpEq, Value: 10},
		{Field: "b", Op: predicate.OpIn, Values: []docval.Value{0, 1}},
	}}
	frsp := NewFieldRangeSetPair(pred)
	p := NewQueryPlan(idx("abc", KeyField{"a", 1}, KeyField{"b", 1}, KeyField{"c", 1}), 0, frsp,
		nil, []SortField{{"c", 1}})
	if !p.QueryFiniteSetOrderSuffix {
		t.Fatal("expected queryFiniteSetOrderSuffix=true")
	}
	if p.ScanAndOrderRequired {
		t.Fatal("expected scanAndOrderRequired=false")
	}
}

func TestExactKeyMatchStringVsNumber(t *testing.T) {
	strPred := predicate.Eq("a", "b")
	frsp := NewFieldRangeSetPair(strPred)
	p := NewQueryPlan(idx("a_1", KeyField{"a", 1}), 0, frsp, nil, nil)
	if !p.ExactKeyMatch {
		t.Fatal("expected exactKeyMatch for string equality")
	}

	numPred := predicate.Eq("a", 4)
	frsp2 := NewFieldRangeSetPair(numPred)
	p2 := NewQueryPlan(idx("a_1", KeyField{"a", 1}), 0, frsp2, nil, nil)
	if p2.ExactKeyMatch {
		t.Fatal("expected exactKeyMatch=false for numeric equality")
	}
}

func TestOptimalIDEquality(t *testing.T) {
	pred := predicate.Eq("_id", 7)
	frsp := NewFieldRangeSetPair(pred)
	p := NewQueryPlan(idx("_id_", KeyField{"_id", 1}), 0, frsp, nil, nil)
	if p.UtilityRating != Optimal {
		t.Fatalf("expected Optimal for _id equality, got %s", p.UtilityRating)
	}
}

func TestStringNeverCrashes(t *testing.T) {
	var p *QueryPlan
	_ = p.String()
	frsp := NewFieldRangeSetPair(&predicate.Predicate{})
	cs := NewCollectionScanPlan(frsp, nil)
	_ = cs.String()
}
