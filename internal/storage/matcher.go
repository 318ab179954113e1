package storage

import (
	"strings"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/planner"
	"github.com/nullstore/docdb/internal/predicate"
)

// residualMatcher re-checks a document against a predicate in full,
// independent of whatever index bounds narrowed the scan. The planner
// only ever calls it when a plan's ExactKeyMatch is false (§6).
type residualMatcher struct {
	pred *predicate.Predicate
}

// NewMatcher implements planner.StorageEngine.
func (c *Collection) NewMatcher(pred *predicate.Predicate) planner.Matcher {
	return &residualMatcher{pred: pred}
}

func (m *residualMatcher) Matches(doc docval.Document) bool {
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
		matched := false
		for _, sub := range p.Or {
			if evalPredicate(sub, doc) {
				matched = true
				break
			}
		}
		if !matched {
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
		return present && matchesOneOrArray(v, c.Value)
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
			if matchesOneOrArray(v, want) {
				return true
			}
		}
		return false
	case predicate.OpExists:
		return present == c.ExistsWant
	case predicate.OpRegex:
		s, ok := v.(string)
		if !present || !ok {
			return false
		}
		return strings.HasPrefix(s, c.RegexPrefix)
	case predicate.OpNot:
		return !evalClause(*c.Inner, doc)
	case predicate.OpNear:
		// The special index's internals, including true geospatial
		// distance, are opaque to this system (§1 non-goals); the
		// residual check only confirms the field is present, the same
		// way the planner's own bound derivation treats $near as a
		// shape-only signal.
		return present
	default:
		return true
	}
}

// matchesOneOrArray handles the multikey case: a field holding an array
// matches an $in value if any element does, mirroring the same
// containment semantics CreateIndex applies when indexing arrays.
func matchesOneOrArray(v, want docval.Value) bool {
	if arr, ok := v.([]docval.Value); ok {
		for _, elem := range arr {
			if docval.Equal(elem, want) {
				return true
			}
		}
		return false
	}
	return docval.Equal(v, want)
}
