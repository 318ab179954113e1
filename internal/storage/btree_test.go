package storage

import "testing"

func TestBTreeInsertAndRangeAscending(t *testing.T) {
	tr := newBTree([]int{1})
	for _, v := range []int{5, 1, 3, 2, 4} {
		tr.Insert(compositeKey{v}, v*10)
	}
	ids := tr.newRangeIterator(compositeKey{2}, compositeKey{4}).All()
	if len(ids) != 3 || ids[0] != 20 || ids[1] != 30 || ids[2] != 40 {
		t.Fatalf("unexpected range result: %v", ids)
	}
}

func TestBTreeDuplicateKeysAccumulatePostings(t *testing.T) {
	tr := newBTree([]int{1})
	tr.Insert(compositeKey{"x"}, 1)
	tr.Insert(compositeKey{"x"}, 2)
	ids := tr.newRangeIterator(compositeKey{"x"}, compositeKey{"x"}).All()
	if len(ids) != 2 {
		t.Fatalf("expected 2 postings under the same key, got %v", ids)
	}
}

func TestBTreeSplitsAcrossManyKeys(t *testing.T) {
	tr := newBTree([]int{1})
	const n = 500
	for i := 0; i < n; i++ {
		tr.Insert(compositeKey{i}, i)
	}
	ids := tr.newRangeIterator(compositeKey{0}, compositeKey{n - 1}).All()
	if len(ids) != n {
		t.Fatalf("expected %d ids after splitting, got %d", n, len(ids))
	}
	for i, id := range ids {
		if id != i {
			t.Fatalf("expected ascending order, got %v at %d", id, i)
		}
	}
}

func TestBTreeDescendingDirection(t *testing.T) {
	tr := newBTree([]int{-1})
	for i := 0; i < 10; i++ {
		tr.Insert(compositeKey{i}, i)
	}
	// With a descending direction, key 0 sorts after key 9 in tree order.
	ids := tr.newRangeIterator(compositeKey{9}, compositeKey{0}).All()
	if len(ids) != 10 {
		t.Fatalf("expected all 10 ids in range, got %v", ids)
	}
	if ids[0] != 9 || ids[len(ids)-1] != 0 {
		t.Fatalf("expected descending tree order 9..0, got %v", ids)
	}
}
