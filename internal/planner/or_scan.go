package planner

import (
	"context"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// orDecomposedCursor executes a top-level $or as a sequence of sub-scans,
// one per clause, each independently planned and raced, suppressing
// documents whose `_id` was already emitted by an earlier branch (§4.6).
type orDecomposedCursor struct {
	engine   StorageEngine
	cat      IndexCatalog
	registry *CacheRegistry
	ns       string
	sort     []SortField
	proj     *Projection
	opts     Options

	branches []*predicate.Predicate
	branchIx int
	emitted  map[docval.Value]bool

	cur Cursor
}

// NewOrDecomposedCursor builds the decomposition described in §4.6 for a
// predicate whose only content is a top-level $or. Returns nil if pred
// isn't in that shape.
func NewOrDecomposedCursor(engine StorageEngine, cat IndexCatalog, registry *CacheRegistry, ns string, pred *predicate.Predicate, sort_ []SortField, proj *Projection, opts Options) *orDecomposedCursor {
	branches := pred.TopLevelOr()
	if branches == nil {
		return nil
	}
	return &orDecomposedCursor{
		engine: engine, cat: cat, registry: registry, ns: ns,
		sort: sort_, proj: proj, opts: opts,
		branches: branches, emitted: map[docval.Value]bool{},
	}
}

func (c *orDecomposedCursor) openNextBranch(ctx context.Context) error {
	for c.branchIx < len(c.branches) {
		branch := c.branches[c.branchIx]
		c.branchIx++

		frsp := NewFieldRangeSetPair(branch)
		var cache *PlanCache
		if c.registry != nil {
			cache = c.registry.ForNamespace(c.ns)
		}
		ps, err := BuildQueryPlanSet(c.cat, frsp, c.sort, NoHint(), c.proj, c.opts, cache)
		if err != nil {
			return err
		}
		pattern := NewQueryPattern(frsp.Pessimistic, c.sort)
		scanner := NewMultiPlanScanner(c.engine, c.ns, c.registry, pattern)
		cur, err := scanner.Run(ctx, ps, func(p *QueryPlan) Matcher {
			if p.ExactKeyMatch {
				return nil
			}
			return c.engine.NewMatcher(branch)
		})
		if err != nil {
			continue // this branch produced no usable plan; try the next
		}
		c.cur = cur
		if err := c.advanceSkippingDuplicates(ctx); err != nil {
			return err
		}
		if c.cur.Ok() {
			return nil
		}
	}
	c.cur = nil
	return nil
}

func (c *orDecomposedCursor) advanceSkippingDuplicates(ctx context.Context) error {
	for c.cur.Ok() {
		id := c.cur.Current()["_id"]
		if !c.emitted[id] {
			return nil
		}
		if err := c.cur.Advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *orDecomposedCursor) Ok() bool {
	return c.cur != nil && c.cur.Ok()
}

func (c *orDecomposedCursor) Current() docval.Document {
	if c.cur == nil {
		return nil
	}
	return c.cur.Current()
}

func (c *orDecomposedCursor) Advance(ctx context.Context) error {
	if c.cur == nil {
		return c.openNextBranch(ctx)
	}
	id := c.cur.Current()["_id"]
	c.emitted[id] = true
	if err := c.cur.Advance(ctx); err != nil {
		return err
	}
	if err := c.advanceSkippingDuplicates(ctx); err != nil {
		return err
	}
	if !c.cur.Ok() {
		return c.openNextBranch(ctx)
	}
	return nil
}

func (c *orDecomposedCursor) CurrentMatches() bool {
	if c.cur == nil {
		return false
	}
	return c.cur.CurrentMatches()
}

func (c *orDecomposedCursor) IndexKeyPattern() []KeyField {
	if c.cur == nil {
		return nil
	}
	return c.cur.IndexKeyPattern()
}

func (c *orDecomposedCursor) Matcher() Matcher {
	if c.cur == nil {
		return nil
	}
	return c.cur.Matcher()
}
