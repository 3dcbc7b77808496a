package domain

import (
	"fmt"
	"sort"
)

// Variable is a labeled n-dimensional array: a flat float64 buffer plus the
// dimension names and sizes that shape it. Values are stored row-major in
// dimension order, matching the on-disk NetCDF layout.
type Variable struct {
	Name   string
	Dims   []string
	Shape  []int
	Values []float64
	Attrs  map[string]string
}

// Len returns the total number of elements implied by the shape,
// or 1 for a scalar (empty shape).
func (v Variable) Len() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// GridMapping returns the name of the grid-mapping variable this data
// variable references via its "grid_mapping" attribute, or "".
func (v Variable) GridMapping() string {
	return v.Attrs["grid_mapping"]
}

// Clone returns a deep copy of the variable.
func (v Variable) Clone() Variable {
	out := Variable{
		Name:   v.Name,
		Dims:   append([]string(nil), v.Dims...),
		Shape:  append([]int(nil), v.Shape...),
		Values: append([]float64(nil), v.Values...),
		Attrs:  make(map[string]string, len(v.Attrs)),
	}
	for k, val := range v.Attrs {
		out.Attrs[k] = val
	}
	return out
}

// Dataset is an in-memory collection of variables sharing dimensions, the
// unit of assembly. Coords holds coordinate and grid-mapping variables;
// Vars holds the data variables proper. Attrs carries the global metadata,
// including the facet attributes the instance identifier is derived from.
type Dataset struct {
	Attrs  map[string]string
	Coords map[string]Variable
	Vars   map[string]Variable
}

// NewDataset returns an empty dataset with initialized maps.
func NewDataset() *Dataset {
	return &Dataset{
		Attrs:  make(map[string]string),
		Coords: make(map[string]Variable),
		Vars:   make(map[string]Variable),
	}
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset()
	for k, v := range d.Attrs {
		out.Attrs[k] = v
	}
	for k, v := range d.Coords {
		out.Coords[k] = v.Clone()
	}
	for k, v := range d.Vars {
		out.Vars[k] = v.Clone()
	}
	return out
}

// VarNames returns the data variable names in sorted order.
func (d *Dataset) VarNames() []string {
	names := make([]string, 0, len(d.Vars))
	for name := range d.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DimSizes collects the dimension sizes used across all variables.
// A dimension appearing with two different sizes is an inconsistency.
func (d *Dataset) DimSizes() (map[string]int, error) {
	sizes := make(map[string]int)
	collect := func(v Variable) error {
		for i, dim := range v.Dims {
			if i >= len(v.Shape) {
				return fmt.Errorf("variable %s: %d dims but %d shape entries", v.Name, len(v.Dims), len(v.Shape))
			}
			if prev, ok := sizes[dim]; ok && prev != v.Shape[i] {
				return fmt.Errorf("dimension %s: size %d in %s conflicts with size %d", dim, v.Shape[i], v.Name, prev)
			}
			sizes[dim] = v.Shape[i]
		}
		return nil
	}
	for _, v := range d.Coords {
		if err := collect(v); err != nil {
			return nil, err
		}
	}
	for _, v := range d.Vars {
		if err := collect(v); err != nil {
			return nil, err
		}
	}
	return sizes, nil
}

// GridMappingVar locates the grid-mapping variable: the coordinate variable
// carrying a "grid_mapping_name" attribute. Returns false when absent.
func (d *Dataset) GridMappingVar() (Variable, bool) {
	for _, v := range d.Coords {
		if _, ok := v.Attrs["grid_mapping_name"]; ok {
			return v, true
		}
	}
	return Variable{}, false
}

// SortByGridMapping groups assembled datasets by the grid_mapping_name of
// their grid-mapping variable, so runs sharing a projection can be compared
// together. Every dataset must carry a named grid mapping; assembled datasets
// always do, since verification rejects groups without one.
func SortByGridMapping(dsets map[string]*Dataset) (map[string]map[string]*Dataset, error) {
	sorted := make(map[string]map[string]*Dataset)
	for iid, ds := range dsets {
		gm, ok := ds.GridMappingVar()
		if !ok {
			return nil, fmt.Errorf("dataset %s has no grid-mapping variable", iid)
		}
		name := gm.Attrs["grid_mapping_name"]
		if name == "" {
			return nil, fmt.Errorf("dataset %s: grid-mapping variable %s has empty grid_mapping_name", iid, gm.Name)
		}
		if sorted[name] == nil {
			sorted[name] = make(map[string]*Dataset)
		}
		sorted[name][iid] = ds
	}
	return sorted, nil
}

// RenameCoord renames a coordinate variable and updates every data variable's
// grid_mapping reference that pointed at the old name.
func (d *Dataset) RenameCoord(old, new string) error {
	v, ok := d.Coords[old]
	if !ok {
		return fmt.Errorf("coordinate %s not present", old)
	}
	if _, exists := d.Coords[new]; exists && new != old {
		return fmt.Errorf("coordinate %s already present", new)
	}
	delete(d.Coords, old)
	v.Name = new
	d.Coords[new] = v
	for name, dv := range d.Vars {
		if dv.Attrs["grid_mapping"] == old {
			dv.Attrs["grid_mapping"] = new
			d.Vars[name] = dv
		}
	}
	return nil
}
