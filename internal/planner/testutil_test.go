package planner

import (
	"context"
	"sort"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// fakeCatalog and fakeEngine are minimal, linear-scan stand-ins for the
// storage layer, used only to exercise BuildQueryPlanSet/MultiPlanScanner
// end-to-end in this package's tests. The real storage layer's B-tree
// backed implementation lives in internal/storage.
type fakeCatalog struct {
	indexes []IndexSpec
	docs    []docval.Document
}

func (c *fakeCatalog) Indexes() []IndexSpec { return c.indexes }
func (c *fakeCatalog) FindByKey(key []KeyField) (IndexSpec, bool) {
	for _, ix := range c.indexes {
		if SameKeyPattern(ix.Key, key) {
			return ix, true
		}
	}
	return IndexSpec{}, false
}
func (c *fakeCatalog) FindByName(name string) (IndexSpec, bool) {
	for _, ix := range c.indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return IndexSpec{}, false
}

type fakeMatcher struct{ pred *predicate.Predicate }

func (m *fakeMatcher) Matches(doc docval.Document) bool {
	return evalPredicate(m.pred, doc)
}

func evalPredicate(p *predicate.Predicate, doc docval.Document) bool {
	if p == nil {
		return true
	}
	for _, c := range p.Clauses {
		if !evalClause(c, doc) {
			return false
		}
	}
	for _, sub := range p.And {
		if !evalPredicate(sub, doc) {
			return false
		}
	}
	if len(p.Or) > 0 {
		any := false
		for _, sub := range p.Or {
			if evalPredicate(sub, doc) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, sub := range p.Nor {
		if evalPredicate(sub, doc) {
			return false
		}
	}
	return true
}

func evalClause(c predicate.Clause, doc docval.Document) bool {
	v, present := doc[c.Field]
	switch c.Op {
	case predicate.OpEq:
		return present && docval.Equal(v, c.Value)
	case predicate.OpLt:
		return present && docval.Compare(v, c.Value) < 0
	case predicate.OpLte:
		return present && docval.Compare(v, c.Value) <= 0
	case predicate.OpGt:
		return present && docval.Compare(v, c.Value) > 0
	case predicate.OpGte:
		return present && docval.Compare(v, c.Value) >= 0
	case predicate.OpIn:
		if !present {
			return false
		}
		for _, want := range c.Values {
			if docval.Equal(v, want) {
				return true
			}
		}
		return false
	case predicate.OpExists:
		return present == c.ExistsWant
	case predicate.OpNot:
		return !evalClause(*c.Inner, doc)
	default:
		return true
	}
}

type fakeCursor struct {
	docs []docval.Document
	pos  int
}

func (c *fakeCursor) Next(ctx context.Context) (docval.Document, bool, error) {
	if c.pos >= len(c.docs) {
		return nil, false, nil
	}
	d := c.docs[c.pos]
	c.pos++
	return d, true, nil
}
func (c *fakeCursor) Close() {}

type fakeEngine struct {
	cat *fakeCatalog
}

func (e *fakeEngine) OpenCursor(ctx context.Context, plan *QueryPlan) (StorageCursor, error) {
	docs := append([]docval.Document(nil), e.cat.docs...)
	if !plan.IsCollectionScan() {
		docs = filterByBounds(docs, *plan.Index, plan.StartKey, plan.EndKey)
		sortByKey(docs, *plan.Index, plan.Direction)
	}
	return &fakeCursor{docs: docs}, nil
}

func (e *fakeEngine) NewMatcher(pred *predicate.Predicate) Matcher {
	return &fakeMatcher{pred: pred}
}

func filterByBounds(docs []docval.Document, idx IndexSpec, start, end []docval.Value) []docval.Document {
	out := make([]docval.Document, 0, len(docs))
	for _, d := range docs {
		ok := true
		for i, kf := range idx.Key {
			v, present := d[kf.Field]
			if !present {
				ok = false
				break
			}
			lo, hi := start[i], end[i]
			if kf.Direction < 0 {
				lo, hi = hi, lo
			}
			if docval.Compare(v, lo) < 0 || docval.Compare(v, hi) > 0 {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func sortByKey(docs []docval.Document, idx IndexSpec, direction int) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, kf := range idx.Key {
			c := docval.Compare(docs[i][kf.Field], docs[j][kf.Field])
			if kf.Direction < 0 {
				c = -c
			}
			if direction < 0 {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}
