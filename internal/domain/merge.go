package domain

import (
	"fmt"
	"math"
)

// Merge combines datasets into one, aligning on shared dimensions. The result
// holds the union of data variables and coordinates. A dimension appearing
// with conflicting sizes, or a variable present in two inputs with different
// structure or values, is an error: callers never receive a partially merged
// dataset.
//
// Fixed-field variables keep their own (time-less) dimensions: they are
// broadcast alongside temporal variables, never concatenated.
func Merge(datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("merge: no datasets")
	}

	out := NewDataset()
	dimSizes := make(map[string]int)

	for _, ds := range datasets {
		sizes, err := ds.DimSizes()
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		for dim, size := range sizes {
			if prev, ok := dimSizes[dim]; ok && prev != size {
				return nil, fmt.Errorf("merge: dimension %s has size %d and %d across datasets", dim, prev, size)
			}
			dimSizes[dim] = size
		}

		for name, v := range ds.Coords {
			if prev, ok := out.Coords[name]; ok {
				if !variablesEqual(prev, v) {
					return nil, fmt.Errorf("merge: coordinate %s differs between datasets", name)
				}
				continue
			}
			out.Coords[name] = v.Clone()
		}
		for name, v := range ds.Vars {
			if prev, ok := out.Vars[name]; ok {
				if !variablesEqual(prev, v) {
					return nil, fmt.Errorf("merge: variable %s differs between datasets", name)
				}
				continue
			}
			out.Vars[name] = v.Clone()
		}

		// First dataset wins on conflicting global attributes, matching the
		// combine_attrs="override" convention.
		for k, val := range ds.Attrs {
			if _, ok := out.Attrs[k]; !ok {
				out.Attrs[k] = val
			}
		}
	}

	return out, nil
}

// Equal reports structural equality: same attributes, same variables and
// coordinates with identical dims, shapes, attributes, and values.
// NaNs compare equal so missing-value cells do not break idempotence checks.
func Equal(a, b *Dataset) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !mapsEqual(a.Attrs, b.Attrs) {
		return false
	}
	if len(a.Coords) != len(b.Coords) || len(a.Vars) != len(b.Vars) {
		return false
	}
	for name, av := range a.Coords {
		bv, ok := b.Coords[name]
		if !ok || !variablesEqual(av, bv) {
			return false
		}
	}
	for name, av := range a.Vars {
		bv, ok := b.Vars[name]
		if !ok || !variablesEqual(av, bv) {
			return false
		}
	}
	return true
}

func variablesEqual(a, b Variable) bool {
	if a.Name != b.Name || len(a.Dims) != len(b.Dims) || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Dims {
		if a.Dims[i] != b.Dims[i] || a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	if !mapsEqual(a.Attrs, b.Attrs) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] && !(math.IsNaN(a.Values[i]) && math.IsNaN(b.Values[i])) {
			return false
		}
	}
	return true
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
