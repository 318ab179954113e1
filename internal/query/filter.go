package query

import (
	"fmt"

	"github.com/nullstore/docdb/internal/docval"
	"github.com/nullstore/docdb/internal/predicate"
)

// ParseFilter decodes a Mongo-shaped filter document (the JSON body of a
// /query or /count request, already unmarshalled into a generic map) into
// a *predicate.Predicate. Top-level keys are ANDed; "$and"/"$or"/"$nor"
// hold arrays of nested filter documents; any other key names a field and
// either a literal value (equality) or an operator object.
func ParseFilter(raw map[string]docval.Value) (*predicate.Predicate, error) {
	pred := &predicate.Predicate{}
	for key, val := range raw {
		switch key {
		case "$and":
			subs, err := parseFilterList(val)
			if err != nil {
				return nil, fmt.Errorf("$and: %w", err)
			}
			pred.And = append(pred.And, subs...)
		case "$or":
			subs, err := parseFilterList(val)
			if err != nil {
				return nil, fmt.Errorf("$or: %w", err)
			}
			pred.Or = append(pred.Or, subs...)
		case "$nor":
			subs, err := parseFilterList(val)
			if err != nil {
				return nil, fmt.Errorf("$nor: %w", err)
			}
			pred.Nor = append(pred.Nor, subs...)
		default:
			clauses, err := parseFieldValue(key, val)
			if err != nil {
				return nil, err
			}
			pred.Clauses = append(pred.Clauses, clauses...)
		}
	}
	return pred, nil
}

func parseFilterList(val docval.Value) ([]*predicate.Predicate, error) {
	list, ok := val.([]docval.Value)
	if !ok {
		if generic, ok := val.([]interface{}); ok {
			list = generic
		} else {
			return nil, fmt.Errorf("expected an array of filter documents")
		}
	}
	out := make([]*predicate.Predicate, 0, len(list))
	for _, item := range list {
		doc, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected a filter document, got %T", item)
		}
		sub, err := ParseFilter(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// parseFieldValue handles one "field": value entry, where value is either
// a literal (equality) or an operator object like {"$gt": 5, "$lt": 10}.
func parseFieldValue(field string, val docval.Value) ([]predicate.Clause, error) {
	ops, ok := val.(map[string]interface{})
	if !ok {
		return []predicate.Clause{{Field: field, Op: predicate.OpEq, Value: val}}, nil
	}

	var out []predicate.Clause
	for opName, opVal := range ops {
		switch opName {
		case "$eq":
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpEq, Value: opVal})
		case "$lt":
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpLt, Value: opVal})
		case "$lte":
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpLte, Value: opVal})
		case "$gt":
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpGt, Value: opVal})
		case "$gte":
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpGte, Value: opVal})
		case "$in":
			values, err := asValueList(opVal)
			if err != nil {
				return nil, fmt.Errorf("%s.$in: %w", field, err)
			}
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpIn, Values: values})
		case "$exists":
			want, _ := opVal.(bool)
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpExists, ExistsWant: want})
		case "$regex":
			prefix, _ := opVal.(string)
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpRegex, RegexPrefix: prefix, RegexAnchored: true})
		case "$not":
			innerClauses, err := parseFieldValue(field, opVal)
			if err != nil {
				return nil, fmt.Errorf("%s.$not: %w", field, err)
			}
			for i := range innerClauses {
				inner := innerClauses[i]
				out = append(out, predicate.Clause{Field: field, Op: predicate.OpNot, Inner: &inner})
			}
		case "$near":
			pt, err := asPoint(opVal)
			if err != nil {
				return nil, fmt.Errorf("%s.$near: %w", field, err)
			}
			out = append(out, predicate.Clause{Field: field, Op: predicate.OpNear, Near: pt})
		default:
			return nil, fmt.Errorf("%s: unsupported operator %q", field, opName)
		}
	}
	return out, nil
}

func asValueList(v docval.Value) ([]docval.Value, error) {
	switch list := v.(type) {
	case []docval.Value:
		return list, nil
	default:
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
}

func asPoint(v docval.Value) (*predicate.Point, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected {\"x\":_,\"y\":_}, got %T", v)
	}
	x, _ := toFloat(m["x"])
	y, _ := toFloat(m["y"])
	return &predicate.Point{X: x, Y: y}, nil
}

func toFloat(v docval.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
