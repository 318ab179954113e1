package planner

import "errors"

// Sentinel errors for the planner's user-facing failure modes (§7). These
// are returned as-is to the caller; none of them represent an internal
// invariant violation.
var (
	// ErrUnresolvedHint is returned when a hint names an index (by name or
	// key pattern) the catalog can't resolve; a $natural hint always resolves.
	ErrUnresolvedHint = errors.New("planner: hint did not resolve to a known index")

	// ErrSpecialNotAllowed is returned when the predicate contains a
	// geospatial operator but the caller's options forbid special plans.
	ErrSpecialNotAllowed = errors.New("planner: special query operator used with allowSpecial=false")

	// ErrNoSpecialIndex is returned when a geospatial predicate has no
	// matching special index to run against.
	ErrNoSpecialIndex = errors.New("planner: no special index matches the query's special-access clause")
)

// Cancelled and DeadlineExceeded are sentinel errors surfaced by the
// scanner (§5, §7) when a racing tick observes a cancelled context or an
// expired deadline. Callers compare with errors.Is.
var (
	ErrCancelled        = errors.New("planner: query cancelled")
	ErrDeadlineExceeded = errors.New("planner: query deadline exceeded")
)
