// Package predicate defines the structured document predicate the planner
// consumes. It plays the role the parsed WHERE clause plays in a SQL
// engine: an immutable tree of clauses that the planner reads but never
// mutates, and that the storage layer's matcher re-checks per document.
package predicate

import "github.com/nullstore/docdb/internal/docval"

// Op identifies the kind of a leaf Clause.
type Op int

const (
	OpEq Op = iota
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpExists
	OpRegex
	OpNot
	OpNear
)

func (op Op) String() string {
	switch op {
	case OpEq:
		return "$eq"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpIn:
		return "$in"
	case OpExists:
		return "$exists"
	case OpRegex:
		return "$regex"
	case OpNot:
		return "$not"
	case OpNear:
		return "$near"
	default:
		return "$unknown"
	}
}

// Point is a geospatial coordinate pair used by an OpNear clause.
type Point struct {
	X, Y float64
}

// Clause is one leaf test on a single field. Fields not relevant to Op are
// left zero; e.g. only Values is set for OpIn.
type Clause struct {
	Field string
	Op    Op

	Value  docval.Value   // OpEq, OpLt, OpLte, OpGt, OpGte
	Values []docval.Value // OpIn

	ExistsWant bool // OpExists: true means "field must be present"

	RegexPrefix   string // OpRegex: the literal prefix the pattern is anchored to
	RegexAnchored bool   // OpRegex: false means no usable prefix, only a residual check

	Inner *Clause // OpNot: the clause being negated

	Near *Point // OpNear
}

// Predicate is a node in the clause tree. A node's Clauses are implicitly
// ANDed with each of its And children and with (the disjunction across)
// its Or children and the negation of its Nor children. A predicate with
// no clauses and no children matches every document (the empty query).
type Predicate struct {
	Clauses []Clause
	And     []*Predicate
	Or      []*Predicate
	Nor     []*Predicate
}

// Eq builds a single equality predicate, the common case in tests and the
// bulk of point-lookup traffic.
func Eq(field string, value docval.Value) *Predicate {
	return &Predicate{Clauses: []Clause{{Field: field, Op: OpEq, Value: value}}}
}

// And combines predicates conjunctively.
func And(preds ...*Predicate) *Predicate {
	return &Predicate{And: preds}
}

// Or combines predicates disjunctively.
func Or(preds ...*Predicate) *Predicate {
	return &Predicate{Or: preds}
}

// IsEmpty reports the predicate matching every document (no clauses, no
// children).
func (p *Predicate) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.Clauses) == 0 && len(p.And) == 0 && len(p.Or) == 0 && len(p.Nor) == 0
}

// HasGeoNear reports whether the predicate carries a $near clause anywhere
// in the tree, including nested inside and/or/nor. Special-plan selection
// (§4.4 rule 3) depends on this.
func (p *Predicate) HasGeoNear() bool {
	if p == nil {
		return false
	}
	for _, c := range p.Clauses {
		if c.Op == OpNear {
			return true
		}
	}
	for _, sub := range concat(p.And, p.Or, p.Nor) {
		if sub.HasGeoNear() {
			return true
		}
	}
	return false
}

// ExcludesSparseField reports whether the predicate requires matching
// documents that may have some field absent: a top-level (or nested
// or/nor) `exists:false` clause, or `not:{exists:true}`. This is the
// condition that makes a sparse index Disallowed (§4.3 rule 2).
func (p *Predicate) ExcludesSparseField() bool {
	if p == nil {
		return false
	}
	for _, c := range p.Clauses {
		if c.Op == OpExists && !c.ExistsWant {
			return true
		}
		if c.Op == OpNot && c.Inner != nil && c.Inner.Op == OpExists && c.Inner.ExistsWant {
			return true
		}
	}
	for _, sub := range concat(p.And, p.Or, p.Nor) {
		if sub.ExcludesSparseField() {
			return true
		}
	}
	return false
}

// EqualityFields returns the set of fields the predicate constrains to a
// single point value at the top level (OpEq, or an OpIn with exactly one
// value), used by the Optimal-utility rule (§4.3 rule 4) and by the plan
// set's collection-scan omission rule (§4.4 step 7).
func (p *Predicate) EqualityFields() map[string]bool {
	out := map[string]bool{}
	if p == nil {
		return out
	}
	for _, c := range p.Clauses {
		if c.Op == OpEq {
			out[c.Field] = true
		}
		if c.Op == OpIn && len(c.Values) == 1 {
			out[c.Field] = true
		}
	}
	for _, sub := range p.And {
		for f := range sub.EqualityFields() {
			out[f] = true
		}
	}
	return out
}

// FiniteSetFields returns fields constrained to a finite value set at the
// top level (OpEq or OpIn), used by queryFiniteSetOrderSuffix.
func (p *Predicate) FiniteSetFields() map[string]bool {
	out := map[string]bool{}
	if p == nil {
		return out
	}
	for _, c := range p.Clauses {
		if c.Op == OpEq || c.Op == OpIn {
			out[c.Field] = true
		}
	}
	for _, sub := range p.And {
		for f := range sub.FiniteSetFields() {
			out[f] = true
		}
	}
	return out
}

// Fields returns every field name referenced anywhere in the predicate
// tree, including fields whose clauses don't narrow a range (e.g. a lone
// $exists clause).
func (p *Predicate) Fields() []string {
	seen := map[string]bool{}
	var walk func(*Predicate)
	walk = func(n *Predicate) {
		if n == nil {
			return
		}
		for _, c := range n.Clauses {
			seen[c.Field] = true
		}
		for _, sub := range concat(n.And, n.Or, n.Nor) {
			walk(sub)
		}
	}
	walk(p)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	return out
}

// TopLevelOr returns the predicate's top-level $or branches, or nil if it
// isn't a bare top-level or. MultiPlanScanner's $or decomposition (§4.6)
// only fires on this literal shape: a predicate whose only content is an
// Or list.
func (p *Predicate) TopLevelOr() []*Predicate {
	if p == nil || len(p.Or) == 0 {
		return nil
	}
	if len(p.Clauses) != 0 || len(p.And) != 0 || len(p.Nor) != 0 {
		return nil
	}
	return p.Or
}

// UsesOnlyEqualityOn reports whether every clause anywhere in the tree is
// an equality on a field in the given set whose value passes
// docval.IsExactMatchType, with no $or, $nor, regex, not, exists, or
// other operators -- the exactKeyMatch predicate check (§4.3).
func (p *Predicate) UsesOnlyEqualityOn(fields map[string]bool) bool {
	if p == nil {
		return true
	}
	for _, c := range p.Clauses {
		if !fields[c.Field] {
			return false
		}
		switch c.Op {
		case OpEq:
			if !docval.IsExactMatchType(c.Value) {
				return false
			}
		default:
			return false
		}
	}
	if len(p.Or) != 0 || len(p.Nor) != 0 {
		return false
	}
	for _, sub := range p.And {
		if !sub.UsesOnlyEqualityOn(fields) {
			return false
		}
	}
	return true
}

func concat(lists ...[]*Predicate) []*Predicate {
	var out []*Predicate
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
