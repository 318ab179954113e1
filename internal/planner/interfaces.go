package planner

import (
	"context"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// Cursor is the contract delivered to the caller (§4.6, §6). It's stable
// across yields; document-level invalidation is the storage layer's
// responsibility, surfaced as an error returned from Advance.
type Cursor interface {
	Ok() bool
	Current() docval.Document
	Advance(ctx context.Context) error
	CurrentMatches() bool
	IndexKeyPattern() []KeyField
	Matcher() Matcher
}

// Matcher re-checks a document against the residual predicate the index
// bounds alone can't guarantee (§6). The planner calls it only when
// ExactKeyMatch is false; the storage/matching layer supplies the
// implementation, keeping the actual field-by-field comparison logic
// outside the planner core (§1 non-goals).
type Matcher interface {
	Matches(doc docval.Document) bool
}

// StorageCursor opens a raw index or collection scan bounded by
// [startKey, endKey] in the given direction (§6). It yields raw storage
// cursors; the planner wraps each one in a buffered plan execution behind
// the plan-aware Cursor so it never needs to know the storage layer's
// iteration details directly.
type StorageCursor interface {
	// Next returns the next document in the scan, or ok=false at
	// end-of-scan. err is a StorageInvalidation or other storage error
	// (§7); the scanner treats any non-nil err as terminal for this plan.
	Next(ctx context.Context) (doc docval.Document, ok bool, err error)
	Close()
}

// StorageEngine opens a StorageCursor for one plan's access path (§6).
// A nil IndexSpec means a full collection scan; direction and bounds are
// taken from the QueryPlan.
type StorageEngine interface {
	OpenCursor(ctx context.Context, plan *QueryPlan) (StorageCursor, error)
	// NewMatcher builds a residual matcher for a predicate, used by plans
	// whose ExactKeyMatch is false.
	NewMatcher(pred *predicate.Predicate) Matcher
}
