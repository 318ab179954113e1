package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
)

// indexEntry pairs a catalog-visible IndexSpec with its backing tree.
// Special (non-btree) indexes have a nil tree; Collection keeps a flat
// postings list for them instead (geoPostings), since the planner
// treats their internals as opaque (§1 non-goals).
type indexEntry struct {
	spec         planner.IndexSpec
	tree         *btree
	geoPostings  []int // special-index docIDs, unordered; only populated when spec.Special != KindNone
}

// Collection is the in-memory document table and index set for one
// namespace. It implements both planner.IndexCatalog and
// planner.StorageEngine: the planner never talks to anything else to
// read indexes or open a scan.
type Collection struct {
	mu     sync.RWMutex
	docs   map[int]docval.Document
	order  []int // insertion order, for $natural collection scans
	nextID int

	indexes     map[string]*indexEntry
	indexOrder  []string // catalog enumeration order, _id first
}

// NewCollection returns an empty collection with its mandatory _id
// index already created (§4.2: "the _id index is always present").
func NewCollection() *Collection {
	c := &Collection{
		docs:    map[int]docval.Document{},
		indexes: map[string]*indexEntry{},
	}
	c.createIndexLocked(planner.IndexSpec{Name: "_id_", Key: []planner.KeyField{{Field: "_id", Direction: 1}}})
	return c
}

// CreateIndex registers a new index and backfills it from existing
// documents. Returns an error if the collection is already at the fixed
// cap (§4.2) or the name is taken.
func (c *Collection) CreateIndex(spec planner.IndexSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[spec.Name]; exists {
		return fmt.Errorf("storage: index %q already exists", spec.Name)
	}
	if len(c.indexes) >= planner.MaxIndexesPerCollection {
		return fmt.Errorf("storage: collection already has the maximum of %d indexes", planner.MaxIndexesPerCollection)
	}
	c.createIndexLocked(spec)
	return nil
}

func (c *Collection) createIndexLocked(spec planner.IndexSpec) {
	entry := &indexEntry{spec: spec}
	if spec.Special == planner.KindNone {
		dirs := make([]int, len(spec.Key))
		for i, kf := range spec.Key {
			dirs[i] = kf.Direction
		}
		entry.tree = newBTree(dirs)
	}
	for _, id := range c.order {
		c.indexDocLocked(entry, id, c.docs[id])
	}
	c.indexes[spec.Name] = entry
	c.indexOrder = append(c.indexOrder, spec.Name)
}

// DropIndex removes an index. Collection holds no plan-cache reference,
// so it doesn't clear cached plans; the caller clears the PlanCache
// (§4.5).
func (c *Collection) DropIndex(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, name)
	for i, n := range c.indexOrder {
		if n == name {
			c.indexOrder = append(c.indexOrder[:i], c.indexOrder[i+1:]...)
			break
		}
	}
}

// Insert adds a document, assigning it the next auto-increment _id when
// the caller didn't supply one, and threads it into every index.
func (c *Collection) Insert(doc docval.Document) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if _, has := doc["_id"]; !has {
		doc = cloneDoc(doc)
		doc["_id"] = id
	}
	c.docs[id] = doc
	c.order = append(c.order, id)
	for _, entry := range c.indexes {
		c.indexDocLocked(entry, id, doc)
	}
	return id
}

func cloneDoc(doc docval.Document) docval.Document {
	out := make(docval.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (c *Collection) indexDocLocked(entry *indexEntry, id int, doc docval.Document) {
	if entry.spec.Special != planner.KindNone {
		if _, present := doc[entry.spec.Key[0].Field]; present {
			entry.geoPostings = append(entry.geoPostings, id)
		}
		return
	}
	keys, multikey := projectKeys(entry.spec.Key, doc)
	if multikey {
		entry.spec.Multikey = true
	}
	for _, k := range keys {
		entry.tree.Insert(k, id)
	}
}

// projectKeys builds one composite key per document for an index key
// pattern, expanding to one key per array element on any multikey field
// (the Cartesian product across multiple array fields, matching the
// source system's multikey semantics). A document missing any key field
// entirely is not indexed (sparse-like at the storage layer; the
// planner's own sparse utility rule operates on the declared Sparse
// flag, independent of this).
func projectKeys(pattern []planner.KeyField, doc docval.Document) ([]compositeKey, bool) {
	keys := []compositeKey{{}}
	multikey := false
	for _, kf := range pattern {
		v, present := doc[kf.Field]
		if !present {
			return nil, multikey
		}
		arr, isArray := v.([]docval.Value)
		if isArray {
			multikey = true
			next := make([]compositeKey, 0, len(keys)*len(arr))
			for _, k := range keys {
				for _, elem := range arr {
					nk := append(append(compositeKey{}, k...), elem)
					next = append(next, nk)
				}
			}
			keys = next
			continue
		}
		for i := range keys {
			keys[i] = append(keys[i], v)
		}
	}
	return keys, multikey
}

// --- planner.IndexCatalog ---

func (c *Collection) Indexes() []planner.IndexSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]planner.IndexSpec, 0, len(c.indexOrder))
	for _, name := range c.indexOrder {
		out = append(out, c.indexes[name].spec)
	}
	return out
}

func (c *Collection) FindByKey(key []planner.KeyField) (planner.IndexSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range c.indexOrder {
		if planner.SameKeyPattern(c.indexes[name].spec.Key, key) {
			return c.indexes[name].spec, true
		}
	}
	return planner.IndexSpec{}, false
}

func (c *Collection) FindByName(name string) (planner.IndexSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.indexes[name]
	if !ok {
		return planner.IndexSpec{}, false
	}
	return entry.spec, true
}

// --- planner.StorageEngine (single-collection half; Engine in engine.go
// dispatches by namespace to the right Collection) ---

// OpenCursor implements planner.StorageEngine, scoped to this one
// collection (the planner's StorageEngine contract carries no namespace
// parameter -- internal/query.Engine resolves the namespace to a
// Collection before handing it to the planner).
func (c *Collection) OpenCursor(ctx context.Context, plan *planner.QueryPlan) (planner.StorageCursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if plan.IsCollectionScan() {
		ids := append([]int(nil), c.order...)
		if plan.Direction < 0 {
			reverseInts(ids)
		}
		return c.newIDCursor(ids), nil
	}

	entry, ok := c.indexes[plan.Index.Name]
	if !ok {
		return nil, fmt.Errorf("storage: index %q not found", plan.Index.Name)
	}
	if entry.spec.Special != planner.KindNone {
		ids := append([]int(nil), entry.geoPostings...)
		return c.newIDCursor(ids), nil
	}

	lo := compositeKey(plan.StartKey)
	hi := compositeKey(plan.EndKey)
	dirs := make([]int, len(entry.spec.Key))
	for i, kf := range entry.spec.Key {
		dirs[i] = kf.Direction
	}
	// The tree orders keys ascending-per-direction already; a descending
	// plan direction walks the same range but the caller wants documents
	// back in the opposite emission order.
	rangeLo, rangeHi := lo, hi
	if compareKeys(lo, hi, dirs) > 0 {
		rangeLo, rangeHi = hi, lo
	}
	ids := entry.tree.newRangeIterator(rangeLo, rangeHi).All()
	if plan.Direction < 0 {
		reverseInts(ids)
	}
	return c.newIDCursor(ids), nil
}

func reverseInts(ids []int) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// idCursor adapts a pre-materialized list of doc ids to
// planner.StorageCursor, resolving each id against the live document
// table lazily so a document updated between plan construction and scan
// is still read fresh.
type idCursor struct {
	c   *Collection
	ids []int
	pos int
}

func (c *Collection) newIDCursor(ids []int) *idCursor {
	return &idCursor{c: c, ids: ids}
}

func (cur *idCursor) Next(ctx context.Context) (docval.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	cur.c.mu.RLock()
	defer cur.c.mu.RUnlock()
	for cur.pos < len(cur.ids) {
		id := cur.ids[cur.pos]
		cur.pos++
		if doc, ok := cur.c.docs[id]; ok {
			return doc, true, nil
		}
		// Deleted since the scan's id list was materialized; skip it.
	}
	return nil, false, nil
}

func (cur *idCursor) Close() {}

// Len reports the live document count, used by diagnostics and tests.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Get returns one document by the store-assigned id Insert returned.
func (c *Collection) Get(id int) (docval.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	return d, ok
}

// Delete removes a document by the store-assigned id Insert returned.
// Index postings are left stale and
// filtered out lazily by idCursor; a compacting rebuild is out of scope
// for this in-memory stand-in.
func (c *Collection) Delete(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// AllSorted returns every live document sorted by store-assigned id,
// outside the query path.
func (c *Collection) AllSorted() []docval.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]docval.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.docs[id])
	}
	return out
}
