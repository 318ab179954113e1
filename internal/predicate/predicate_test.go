package predicate

import "testing"

func TestExcludesSparseFieldTopLevel(t *testing.T) {
	p := &Predicate{Clauses: []Clause{{Field: "a", Op: OpExists, ExistsWant: false}}}
	if !p.ExcludesSparseField() {
		t.Fatal("expected exists:false to exclude sparse index")
	}
}

func TestExcludesSparseFieldNestedInOr(t *testing.T) {
	p := Or(Eq("a", 1), &Predicate{Clauses: []Clause{{Field: "b", Op: OpNot, Inner: &Clause{Field: "b", Op: OpExists, ExistsWant: true}}}})
	if !p.ExcludesSparseField() {
		t.Fatal("expected nested not-exists in $or to exclude sparse index")
	}
}

func TestExcludesSparseFieldClean(t *testing.T) {
	p := Eq("a", 1)
	if p.ExcludesSparseField() {
		t.Fatal("plain equality should not exclude a sparse index")
	}
}

func TestEqualityFields(t *testing.T) {
	p := And(Eq("a", 1), Eq("b", "x"))
	fields := p.EqualityFields()
	if !fields["a"] || !fields["b"] {
		t.Fatalf("expected a and b, got %v", fields)
	}
}

func TestTopLevelOr(t *testing.T) {
	p := Or(Eq("a", 1), Eq("b", 2))
	if len(p.TopLevelOr()) != 2 {
		t.Fatal("expected two or branches")
	}
	mixed := &Predicate{Clauses: []Clause{{Field: "c", Op: OpEq, Value: 1}}, Or: []*Predicate{Eq("a", 1)}}
	if mixed.TopLevelOr() != nil {
		t.Fatal("mixed and+or should not be treated as a pure top-level or")
	}
}

func TestUsesOnlyEqualityOnStringVsNumber(t *testing.T) {
	fields := map[string]bool{"a": true}
	strPred := Eq("a", "b")
	if !strPred.UsesOnlyEqualityOn(fields) {
		t.Fatal("string equality on indexed field should qualify")
	}
	numPred := Eq("a", 4)
	if numPred.UsesOnlyEqualityOn(fields) {
		t.Fatal("numeric equality must not qualify for exactKeyMatch (see docval.IsExactMatchType)")
	}
}

func TestHasGeoNearNested(t *testing.T) {
	p := And(&Predicate{Clauses: []Clause{{Field: "loc", Op: OpNear, Near: &Point{X: 0, Y: 0}}}})
	if !p.HasGeoNear() {
		t.Fatal("expected nested $near to be detected")
	}
}
