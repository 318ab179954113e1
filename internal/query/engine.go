// Package query wires the planner core to a concrete storage backend,
// exposing the entry points the server and CLI drive: a racing Query, a
// non-racing BestGuess, and runCount (§6).
package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
	"github.com/nullstore/docdb/internal/predicate"
	"github.com/nullstore/docdb/internal/storage"
)

// Options mirrors §6's per-query options tuple.
type Options struct {
	AllowSpecial       bool
	RecordedPlanPolicy planner.RecordedPlanPolicy
	Sort               []planner.SortField
	Projection         *planner.Projection
	Hint               planner.Hint
}

// Engine owns every namespace's Collection and PlanCache partition. It is
// the process-wide singleton the source system's design notes call for
// (§9): a single instance created at startup, handed explicitly to every
// caller rather than reached for as a package global.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*storage.Collection
	cache       *planner.CacheRegistry
}

// NewEngine returns an empty engine with no namespaces yet created.
func NewEngine() *Engine {
	return &Engine{
		collections: map[string]*storage.Collection{},
		cache:       planner.NewCacheRegistry(),
	}
}

// Collection returns (creating if necessary) the namespace's backing
// store. Namespace creation is implicit on first write, mirroring the
// source system's collection-on-first-insert behavior.
func (e *Engine) Collection(ns string) *storage.Collection {
	e.mu.RLock()
	c, ok := e.collections[ns]
	e.mu.RUnlock()
	if ok {
		return c
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.collections[ns]; ok {
		return c
	}
	c = storage.NewCollection()
	e.collections[ns] = c
	return c
}

func (e *Engine) lookup(ns string) (*storage.Collection, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[ns]
	return c, ok
}

// CreateIndex adds an index to a namespace and clears its plan cache
// partition, per §4.5 ("cleared on any index creation").
func (e *Engine) CreateIndex(ns string, spec planner.IndexSpec) error {
	c := e.Collection(ns)
	if err := c.CreateIndex(spec); err != nil {
		return err
	}
	e.cache.ClearNamespace(ns)
	return nil
}

// DropIndex removes an index and clears the namespace's plan cache.
func (e *Engine) DropIndex(ns, name string) {
	if c, ok := e.lookup(ns); ok {
		c.DropIndex(name)
	}
	e.cache.ClearNamespace(ns)
}

// DropCollection removes a namespace entirely, discarding its cache
// partition too.
func (e *Engine) DropCollection(ns string) {
	e.mu.Lock()
	delete(e.collections, ns)
	e.mu.Unlock()
	e.cache.DropNamespace(ns)
}

// Insert adds a document to ns, creating the namespace if needed.
func (e *Engine) Insert(ns string, doc docval.Document) int {
	return e.Collection(ns).Insert(doc)
}

// planFor resolves the namespace and builds the FieldRangeSetPair for
// pred, reporting false when the namespace doesn't exist.
func (e *Engine) planFor(ns string, pred *predicate.Predicate) (*storage.Collection, *planner.FieldRangeSetPair, bool) {
	c, ok := e.lookup(ns)
	if !ok {
		return nil, nil, false
	}
	return c, planner.NewFieldRangeSetPair(pred), true
}

// Query is the racing entry point (§4.6): MultiPlanScanner::make. A
// top-level $or predicate is decomposed into sequential sub-scans
// instead, per §4.6's decomposition rule.
func (e *Engine) Query(ctx context.Context, ns string, pred *predicate.Predicate, opts Options) (planner.Cursor, error) {
	c, ok := e.lookup(ns)
	if !ok {
		return emptyCursor{}, nil
	}

	if pred.TopLevelOr() != nil {
		cur := planner.NewOrDecomposedCursor(c, c, e.cache, ns, pred, opts.Sort, opts.Projection, toPlannerOptions(opts))
		if cur == nil {
			return emptyCursor{}, nil
		}
		if err := cur.Advance(ctx); err != nil {
			return nil, err
		}
		return cur, nil
	}

	frsp := planner.NewFieldRangeSetPair(pred)
	cache := e.cache.ForNamespace(ns)
	ps, err := planner.BuildQueryPlanSet(c, frsp, opts.Sort, opts.Hint, opts.Projection, toPlannerOptions(opts), cache)
	if err != nil {
		return nil, err
	}
	pattern := planner.NewQueryPattern(frsp.Pessimistic, opts.Sort)
	scanner := planner.NewMultiPlanScanner(c, ns, e.cache, pattern)
	return scanner.Run(ctx, ps, func(p *planner.QueryPlan) planner.Matcher {
		if p.ExactKeyMatch {
			return nil
		}
		return c.NewMatcher(pred)
	})
}

// BestGuess is the non-racing entry point (§4.7).
func (e *Engine) BestGuess(ctx context.Context, ns string, pred *predicate.Predicate, sort []planner.SortField, proj *planner.Projection) (planner.Cursor, error) {
	c, ok := e.lookup(ns)
	if !ok {
		return emptyCursor{}, nil
	}
	frsp := planner.NewFieldRangeSetPair(pred)
	return planner.BestGuess(ctx, c, c, e.cache, ns, frsp, sort, proj)
}

// RunCount implements §6's runCount(ns, {query}) -> i64: -1 for a
// missing namespace, 0 for an impossible match without ever opening a
// cursor, else the number of matching documents.
func (e *Engine) RunCount(ctx context.Context, ns string, pred *predicate.Predicate) (int64, error) {
	c, ok := e.lookup(ns)
	if !ok {
		return -1, nil
	}
	frsp := planner.NewFieldRangeSetPair(pred)
	if frsp.Pessimistic.IsEmpty() {
		return 0, nil
	}

	cur, err := planner.BestGuess(ctx, c, c, e.cache, ns, frsp, nil, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	for cur.Ok() {
		if cur.CurrentMatches() {
			n++
		}
		if err := cur.Advance(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Explain builds the QueryPlanSet for a query without executing it and
// renders its diagnostic form (§6: toString() must never crash on a
// legal input).
func (e *Engine) Explain(ns string, pred *predicate.Predicate, opts Options) (string, error) {
	c, ok := e.lookup(ns)
	if !ok {
		return "", fmt.Errorf("query: namespace %q not found", ns)
	}
	frsp := planner.NewFieldRangeSetPair(pred)
	cache := e.cache.ForNamespace(ns)
	ps, err := planner.BuildQueryPlanSet(c, frsp, opts.Sort, opts.Hint, opts.Projection, toPlannerOptions(opts), cache)
	if err != nil {
		return "", err
	}
	return ps.String(), nil
}

func toPlannerOptions(opts Options) planner.Options {
	return planner.Options{AllowSpecial: opts.AllowSpecial, RecordedPlan: opts.RecordedPlanPolicy}
}

// emptyCursor is what every entry point returns for a namespace that
// doesn't exist yet (§7: MissingNamespace "other entry points return an
// empty cursor").
type emptyCursor struct{}

func (emptyCursor) Ok() bool                          { return false }
func (emptyCursor) Current() docval.Document          { return nil }
func (emptyCursor) Advance(context.Context) error     { return nil }
func (emptyCursor) CurrentMatches() bool               { return false }
func (emptyCursor) IndexKeyPattern() []planner.KeyField { return nil }
func (emptyCursor) Matcher() planner.Matcher           { return nil }
