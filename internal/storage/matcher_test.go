package storage

import (
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

func TestResidualMatcherEquality(t *testing.T) {
	m := &residualMatcher{pred: predicate.Eq("a", 1)}
	if !m.Matches(docval.Document{"a": 1}) {
		t.Fatal("expected match")
	}
	if m.Matches(docval.Document{"a": 2}) {
		t.Fatal("expected no match")
	}
}

func TestResidualMatcherInAgainstArrayField(t *testing.T) {
	pred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "tags", Op: predicate.OpIn, Values: []docval.Value{"y"}}}}
	m := &residualMatcher{pred: pred}
	if !m.Matches(docval.Document{"tags": []docval.Value{"x", "y"}}) {
		t.Fatal("expected containment match on array field")
	}
}

func TestResidualMatcherRegexPrefix(t *testing.T) {
	pred := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "name", Op: predicate.OpRegex, RegexPrefix: "jo", RegexAnchored: true}}}
	m := &residualMatcher{pred: pred}
	if !m.Matches(docval.Document{"name": "john"}) {
		t.Fatal("expected prefix match")
	}
	if m.Matches(docval.Document{"name": "mary"}) {
		t.Fatal("expected no match")
	}
}

func TestResidualMatcherNorExcludesMatchingBranch(t *testing.T) {
	pred := &predicate.Predicate{Nor: []*predicate.Predicate{predicate.Eq("a", 1)}}
	m := &residualMatcher{pred: pred}
	if m.Matches(docval.Document{"a": 1}) {
		t.Fatal("expected nor branch to exclude a match")
	}
	if !m.Matches(docval.Document{"a": 2}) {
		t.Fatal("expected non-matching branch to pass nor")
	}
}
