package planner

import (
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

func TestSpecialVsBtreeCoexistence(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{
		{Name: "a_2d", Key: []KeyField{{"a", 1}}, Special: "2d"},
		{Name: "a_1", Key: []KeyField{{"a", 1}}},
	}}

	// No geo operator: both plans are in play, special is excluded.
	pred := &predicate.Predicate{Clauses: []predicate.Clause{
		{Field: "a", Op: predicate.OpEq, Value: []docval.Value{0, 0}},
		{Field: "b", Op: predicate.OpEq, Value: 1},
	}}
	frsp := NewFieldRangeSetPair(pred)
	ps, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{AllowSpecial: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps.FirstPlan().Index != nil && ps.FirstPlan().Index.Special != KindNone {
		t.Fatal("expected non-special plan to win when no $near is present")
	}

	// With a $near operator: only the special plan survives.
	nearPred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpNear, Near: &predicate.Point{X: 0, Y: 0}}}}
	frsp2 := NewFieldRangeSetPair(nearPred)
	ps2, err := BuildQueryPlanSet(cat, frsp2, nil, NoHint(), nil, Options{AllowSpecial: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps2.NPlans() != 1 {
		t.Fatalf("expected exactly 1 plan for $near query, got %d", ps2.NPlans())
	}
	if ps2.FirstPlan().Index == nil || ps2.FirstPlan().Index.Special == KindNone {
		t.Fatal("expected the special plan to be selected for a $near query")
	}
}

func TestGeoNearWithoutAllowSpecialErrors(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{{Name: "a_2d", Key: []KeyField{{"a", 1}}, Special: "2d"}}}
	nearPred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpNear, Near: &predicate.Point{X: 0, Y: 0}}}}
	frsp := NewFieldRangeSetPair(nearPred)
	_, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{AllowSpecial: false}, nil)
	if err != ErrSpecialNotAllowed {
		t.Fatalf("expected ErrSpecialNotAllowed, got %v", err)
	}
}

func TestUnresolvedHintErrors(t *testing.T) {
	cat := &fakeCatalog{}
	frsp := NewFieldRangeSetPair(&predicate.Predicate{})
	_, err := BuildQueryPlanSet(cat, frsp, nil, Hint{Name: "nope"}, nil, Options{}, nil)
	if err != ErrUnresolvedHint {
		t.Fatalf("expected ErrUnresolvedHint, got %v", err)
	}
}

func TestHintForcesSinglePlan(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{{Name: "a_1", Key: []KeyField{{"a", 1}}}, {Name: "b_1", Key: []KeyField{{"b", 1}}}}}
	frsp := NewFieldRangeSetPair(predicate.Eq("a", 1))
	ps, err := BuildQueryPlanSet(cat, frsp, nil, Hint{Name: "b_1"}, nil, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps.NPlans() != 1 || ps.FirstPlan().Index.Name != "b_1" {
		t.Fatalf("expected forced b_1 plan, got %v", ps)
	}
}

func TestOptimalCollapsesToOnePlan(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{
		{Name: "_id_", Key: []KeyField{{"_id", 1}}},
		{Name: "a_1", Key: []KeyField{{"a", 1}}},
	}}
	frsp := NewFieldRangeSetPair(predicate.Eq("_id", 5))
	ps, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps.NPlans() != 1 {
		t.Fatalf("expected nPlans=1 when an Optimal plan exists, got %d", ps.NPlans())
	}
}

func TestSparseFallsBackToCollectionScan(t *testing.T) {
	cat := &fakeCatalog{indexes: []IndexSpec{{Name: "a_1", Key: []KeyField{{"a", 1}}, Sparse: true}}}
	pred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpExists, ExistsWant: false}}}
	frsp := NewFieldRangeSetPair(pred)
	ps, err := BuildQueryPlanSet(cat, frsp, nil, NoHint(), nil, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps.NPlans() != 1 || !ps.FirstPlan().IsCollectionScan() {
		t.Fatalf("expected a lone collection scan plan, got %v", ps)
	}
}

func TestStringNeverCrashesOnPlanSet(t *testing.T) {
	var ps *QueryPlanSet
	_ = ps.String()
}
