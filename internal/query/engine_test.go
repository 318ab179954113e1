package query

import (
	"context"
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
	"github.com/nullstore/docdb/internal/predicate"
)

func TestRunCountMissingNamespace(t *testing.T) {
	e := NewEngine()
	n, err := e.RunCount(context.Background(), "db.nope", predicate.Eq("a", 1))
	if err != nil {
		t.Fatal(err)
	}
	if n != -1 {
		t.Fatalf("expected -1 for a missing namespace, got %d", n)
	}
}

func TestRunCountImpossibleMatch(t *testing.T) {
	e := NewEngine()
	e.Insert("db.c", docval.Document{"a": 1})
	impossible := &predicate.Predicate{Clauses: []predicate.Clause{{Field: "a", Op: predicate.OpIn, Values: nil}}}
	n, err := e.RunCount(context.Background(), "db.c", impossible)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 for an impossible match, got %d", n)
	}
}

func TestRunCountCountsMatches(t *testing.T) {
	e := NewEngine()
	e.Insert("db.c", docval.Document{"a": 1})
	e.Insert("db.c", docval.Document{"a": 2})
	e.Insert("db.c", docval.Document{"a": 1})
	n, err := e.RunCount(context.Background(), "db.c", predicate.Eq("a", 1))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 matches, got %d", n)
	}
}

func TestQueryOnMissingNamespaceReturnsEmptyCursor(t *testing.T) {
	e := NewEngine()
	cur, err := e.Query(context.Background(), "db.nope", predicate.Eq("a", 1), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cur.Ok() {
		t.Fatal("expected an empty cursor for a missing namespace")
	}
}

func TestQueryUsesIndexAfterCreation(t *testing.T) {
	e := NewEngine()
	e.Insert("db.c", docval.Document{"a": 1})
	e.Insert("db.c", docval.Document{"a": 2})
	if err := e.CreateIndex("db.c", planner.IndexSpec{Name: "a_1", Key: []planner.KeyField{{Field: "a", Direction: 1}}}); err != nil {
		t.Fatal(err)
	}
	cur, err := e.Query(context.Background(), "db.c", predicate.Eq("a", 2), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var docs []docval.Document
	for cur.Ok() {
		docs = append(docs, cur.Current())
		if err := cur.Advance(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(docs) != 1 || docs[0]["a"] != 2 {
		t.Fatalf("expected exactly the a=2 document, got %v", docs)
	}
}

func TestExplainNeverErrorsOnEmptyPredicate(t *testing.T) {
	e := NewEngine()
	e.Insert("db.c", docval.Document{"a": 1})
	out, err := e.Explain("db.c", &predicate.Predicate{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Fatal("expected a non-empty explain string")
	}
}

func TestOrDecompositionThroughEngine(t *testing.T) {
	e := NewEngine()
	if err := e.CreateIndex("db.c", planner.IndexSpec{Name: "a_1", Key: []planner.KeyField{{Field: "a", Direction: 1}}}); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateIndex("db.c", planner.IndexSpec{Name: "b_1", Key: []planner.KeyField{{Field: "b", Direction: 1}}}); err != nil {
		t.Fatal(err)
	}
	e.Insert("db.c", docval.Document{"a": 1, "b": 9})
	e.Insert("db.c", docval.Document{"a": 9, "b": 1})
	e.Insert("db.c", docval.Document{"a": 9, "b": 9})

	pred := predicate.Or(predicate.Eq("a", 1), predicate.Eq("b", 1))
	cur, err := e.Query(context.Background(), "db.c", pred, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var n int
	for cur.Ok() {
		n++
		if err := cur.Advance(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 documents across both $or branches, got %d", n)
	}
}
