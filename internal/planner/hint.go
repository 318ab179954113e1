package planner

// Hint names the client's forced access path (§4.4 step 1). Exactly one
// of Natural, Key, or Name should be set; NoHint() returns the zero value
// meaning "no hint given".
type Hint struct {
	HasNatural bool
	Natural    int // +1 or -1, only meaningful when HasNatural

	Key  []KeyField // {fieldKey: ...} form
	Name string     // "indexName" form
}

// NoHint returns the absence of a hint.
func NoHint() Hint { return Hint{} }

// IsZero reports no hint was supplied.
func (h Hint) IsZero() bool {
	return !h.HasNatural && h.Key == nil && h.Name == ""
}

// resolve looks the hint up against the catalog, returning the matched
// index (nil for a $natural hint) or ErrUnresolvedHint.
func (h Hint) resolve(cat IndexCatalog) (idx *IndexSpec, isCollectionScan bool, dir int, err error) {
	if h.HasNatural {
		d := h.Natural
		if d == 0 {
			d = 1
		}
		return nil, true, d, nil
	}
	if h.Key != nil {
		spec, ok := cat.FindByKey(h.Key)
		if !ok {
			return nil, false, 0, ErrUnresolvedHint
		}
		return &spec, false, 0, nil
	}
	if h.Name != "" {
		spec, ok := cat.FindByName(h.Name)
		if !ok {
			return nil, false, 0, ErrUnresolvedHint
		}
		return &spec, false, 0, nil
	}
	return nil, false, 0, ErrUnresolvedHint
}
