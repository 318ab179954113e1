package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/nullstore/docdb/internal/docval"
)

// racingBatchThreshold is the fixed document-count threshold a racing
// plan can hit to be declared winner outright (§4.6 condition 2), even
// before reaching end-of-scan. Mirrors the small-batch-size used by real
// racing multi-plan scanners to keep the losing plans' wasted work
// bounded.
const racingBatchThreshold = 101

// planExecution tracks one candidate's live racing state. Every document
// pulled from the underlying StorageCursor is buffered in scan order, so
// that documents consumed while deciding a race's winner aren't lost --
// the winning Cursor replays the buffer before falling through to live
// fetches.
type planExecution struct {
	plan    *QueryPlan
	cursor  StorageCursor
	matcher Matcher

	buffer  []docval.Document
	matches []bool
	pos     int // index of the "current" doc; -1 before the first Advance

	matched int
	scanned int
	done    bool
	err     error
}

func newPlanExecution(plan *QueryPlan, cursor StorageCursor, matcher Matcher) *planExecution {
	return &planExecution{plan: plan, cursor: cursor, matcher: matcher, pos: -1}
}

// fetchOne pulls one more document from storage into the buffer.
func (pe *planExecution) fetchOne(ctx context.Context) {
	if pe.done {
		return
	}
	doc, ok, err := pe.cursor.Next(ctx)
	if err != nil {
		pe.err = err
		pe.done = true
		return
	}
	if !ok {
		pe.done = true
		return
	}
	pe.scanned++
	matches := pe.evalMatch(doc)
	if matches {
		pe.matched++
	}
	pe.buffer = append(pe.buffer, doc)
	pe.matches = append(pe.matches, matches)
}

func (pe *planExecution) evalMatch(doc docval.Document) bool {
	if pe.plan.ExactKeyMatch || pe.matcher == nil {
		return true
	}
	return pe.matcher.Matches(doc)
}

// ensureNext moves the cursor forward by one position, fetching from
// storage as needed, stopping once either a new document is available or
// the underlying scan is exhausted.
func (pe *planExecution) ensureNext(ctx context.Context) error {
	pe.pos++
	for pe.pos >= len(pe.buffer) && !pe.done {
		pe.fetchOne(ctx)
	}
	return pe.err
}

func (pe *planExecution) hasCurrent() bool { return pe.pos >= 0 && pe.pos < len(pe.buffer) }

func (pe *planExecution) current() docval.Document {
	if !pe.hasCurrent() {
		return nil
	}
	return pe.buffer[pe.pos]
}

func (pe *planExecution) currentMatches() bool {
	if !pe.hasCurrent() {
		return false
	}
	return pe.matches[pe.pos]
}

// MultiPlanScanner races the candidate plans of a QueryPlanSet to a
// decision point and hands back a single winning Cursor (§4.6). A
// single-plan set passes straight through with no racing overhead.
type MultiPlanScanner struct {
	engine   StorageEngine
	ns       string
	registry *CacheRegistry
	pattern  QueryPattern

	executions []*planExecution
	winner     *planExecution
}

// NewMultiPlanScanner constructs a scanner bound to one collection and
// query pattern. engine opens per-plan cursors; registry (may be nil) is
// where the winner is recorded on completion, partitioned by ns.
func NewMultiPlanScanner(engine StorageEngine, ns string, registry *CacheRegistry, pattern QueryPattern) *MultiPlanScanner {
	return &MultiPlanScanner{engine: engine, ns: ns, registry: registry, pattern: pattern}
}

// Run drives the race to completion and returns the winning Cursor. If
// ctx is cancelled or its deadline expires during racing, Run returns
// ErrCancelled/ErrDeadlineExceeded and releases every candidate (§5, §7).
func (s *MultiPlanScanner) Run(ctx context.Context, ps *QueryPlanSet, matcherFor func(*QueryPlan) Matcher) (Cursor, error) {
	if len(ps.plans) == 0 {
		return nil, errors.New("planner: empty plan set")
	}
	execs := make([]*planExecution, 0, len(ps.plans))
	for _, p := range ps.plans {
		cur, err := s.engine.OpenCursor(ctx, p)
		if err != nil {
			continue // dropped, not a hard failure unless every plan fails
		}
		execs = append(execs, newPlanExecution(p, cur, matcherFor(p)))
	}
	if len(execs) == 0 {
		return nil, errors.New("planner: no candidate plan could open a cursor")
	}
	s.executions = execs

	var winner *planExecution
	if len(execs) == 1 {
		winner = execs[0]
	} else {
		w, err := s.race(ctx, execs)
		if err != nil {
			return nil, err
		}
		winner = w
	}
	return s.finish(winner)
}

// race implements the round-robin protocol of §4.6: one step per plan per
// tick until a plan reaches end-of-scan, crosses the match-count
// threshold, or every remaining plan errors/is dropped.
func (s *MultiPlanScanner) race(ctx context.Context, execs []*planExecution) (*planExecution, error) {
	for {
		if err := ctxErr(ctx); err != nil {
			s.releaseAll()
			return nil, err
		}
		liveCount := 0
		for _, pe := range execs {
			if pe.done {
				continue
			}
			liveCount++
			pe.fetchOne(ctx)
			if pe.err != nil {
				continue // dropped per condition 3, not a win for anyone else
			}
			if pe.done || pe.matched >= racingBatchThreshold {
				return pe, nil
			}
		}
		if liveCount == 0 {
			// A plan that exhausts or crosses the threshold returns above,
			// so no live plan left means every plan errored: the race fails.
			s.releaseAll()
			return nil, fmt.Errorf("planner: every candidate plan failed: %w", execs[0].err)
		}
	}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrDeadlineExceeded
		}
		return ErrCancelled
	default:
		return nil
	}
}

func (s *MultiPlanScanner) finish(winner *planExecution) (Cursor, error) {
	s.winner = winner
	for _, pe := range s.executions {
		if pe != winner {
			pe.cursor.Close()
		}
	}
	cur := &scannerCursor{scanner: s, exec: winner}
	cur.primeFirst()
	return cur, nil
}

func (s *MultiPlanScanner) releaseAll() {
	for _, pe := range s.executions {
		pe.cursor.Close()
	}
}

// recordWinner writes the (pattern, winner, nScanned, character) back to
// the PlanCache on query completion (§4.6). Cancellation and deadline
// expiry skip this call entirely (§5, §7): "the PlanCache is not
// updated".
func (s *MultiPlanScanner) recordWinner() {
	if s.registry == nil || s.winner == nil || s.winner.plan.IsCollectionScan() {
		return
	}
	cache := s.registry.ForNamespace(s.ns)
	character := CandidatePlanCharacter{
		MayRunInOrder:    !s.winner.plan.ScanAndOrderRequired,
		MayRunOutOfOrder: s.winner.plan.ScanAndOrderRequired,
	}
	cache.Record(s.pattern, s.winner.plan, s.winner.scanned, character)
}

// scannerCursor adapts a planExecution to the Cursor contract (§4.6).
type scannerCursor struct {
	scanner *MultiPlanScanner
	exec    *planExecution
	closed  bool
}

// primeFirst positions the cursor on its first document, replaying
// whatever was already buffered while racing before pulling fresh ones.
func (c *scannerCursor) primeFirst() {
	_ = c.exec.ensureNext(context.Background())
	if !c.exec.hasCurrent() {
		c.finishOnce()
	}
}

func (c *scannerCursor) Ok() bool { return c.exec.hasCurrent() && c.exec.err == nil }

func (c *scannerCursor) Current() docval.Document { return c.exec.current() }

func (c *scannerCursor) Advance(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := c.exec.ensureNext(ctx); err != nil {
		return fmt.Errorf("planner: storage error advancing winning plan: %w", err)
	}
	if !c.exec.hasCurrent() {
		c.finishOnce()
	}
	return nil
}

func (c *scannerCursor) finishOnce() {
	if c.closed {
		return
	}
	c.closed = true
	c.scanner.recordWinner()
	c.exec.cursor.Close()
}

func (c *scannerCursor) CurrentMatches() bool { return c.exec.currentMatches() }

func (c *scannerCursor) IndexKeyPattern() []KeyField {
	if c.exec.plan.IsCollectionScan() {
		return nil
	}
	return c.exec.plan.Index.Key
}

func (c *scannerCursor) Matcher() Matcher { return c.exec.matcher }
