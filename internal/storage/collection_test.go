package storage

import (
	"context"
	"testing"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
)

func TestCollectionIDIndexAlwaysPresent(t *testing.T) {
	c := NewCollection()
	indexes := c.Indexes()
	if len(indexes) != 1 || indexes[0].Name != "_id_" {
		t.Fatalf("expected a lone _id_ index on a fresh collection, got %v", indexes)
	}
}

func TestCollectionInsertAssignsID(t *testing.T) {
	c := NewCollection()
	id := c.Insert(docval.Document{"a": 1})
	doc, ok := c.Get(id)
	if !ok || doc["a"] != 1 {
		t.Fatalf("expected document to round-trip, got %v, %v", doc, ok)
	}
}

func TestCollectionSecondaryIndexRangeScan(t *testing.T) {
	c := NewCollection()
	if err := c.CreateIndex(planner.IndexSpec{Name: "a_1", Key: []planner.KeyField{{Field: "a", Direction: 1}}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		c.Insert(docval.Document{"a": i})
	}

	plan := planner.NewQueryPlan(mustFind(t, c, "a_1"), 1, planner.NewFieldRangeSetPair(nil), nil, nil)
	plan.StartKey = []docval.Value{2}
	plan.EndKey = []docval.Value{4}
	plan.Direction = 1

	cur, err := c.OpenCursor(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for {
		doc, ok, err := cur.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, doc["a"].(int))
	}
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Fatalf("expected a in [2,4], got %v", got)
	}
}

func TestCollectionMultikeyIndexing(t *testing.T) {
	c := NewCollection()
	if err := c.CreateIndex(planner.IndexSpec{Name: "tags_1", Key: []planner.KeyField{{Field: "tags", Direction: 1}}}); err != nil {
		t.Fatal(err)
	}
	c.Insert(docval.Document{"tags": []docval.Value{"x", "y"}})
	spec, ok := c.FindByName("tags_1")
	if !ok || !spec.Multikey {
		t.Fatalf("expected tags_1 to be marked multikey, got %v, %v", spec, ok)
	}
}

func TestCollectionDeleteRemovesFromNaturalOrder(t *testing.T) {
	c := NewCollection()
	id := c.Insert(docval.Document{"a": 1})
	if !c.Delete(id) {
		t.Fatal("expected delete to succeed")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty collection after delete, got %d", c.Len())
	}
}

func mustFind(t *testing.T, c *Collection, name string) planner.IndexSpec {
	t.Helper()
	spec, ok := c.FindByName(name)
	if !ok {
		t.Fatalf("index %q not found", name)
	}
	return spec
}
