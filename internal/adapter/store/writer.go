package store

import (
	"fmt"
	"sort"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/cordexkit/evaltools/internal/domain"
)

// WriteDataset writes the dataset to path as a NetCDF file, the inverse of
// ReadDataset. Numeric variables are stored as doubles; variables without
// values, such as grid-mapping containers, become scalar character variables.
func WriteDataset(path string, ds *domain.Dataset) error {
	sizes, err := ds.DimSizes()
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer nc.Close()

	dims := make(map[string]netcdf.Dim, len(sizes))
	for _, name := range sortedKeys(sizes) {
		d, err := nc.AddDim(name, uint64(sizes[name]))
		if err != nil {
			return fmt.Errorf("add dimension %s: %w", name, err)
		}
		dims[name] = d
	}

	type pending struct {
		nc     netcdf.Var
		values []float64
	}
	var writes []pending

	addVar := func(v domain.Variable) error {
		varDims := make([]netcdf.Dim, len(v.Dims))
		for i, dimName := range v.Dims {
			varDims[i] = dims[dimName]
		}
		t := netcdf.DOUBLE
		if v.Values == nil {
			t = netcdf.CHAR
		}
		nv, err := nc.AddVar(v.Name, t, varDims)
		if err != nil {
			return fmt.Errorf("add variable %s: %w", v.Name, err)
		}
		for _, attrName := range sortedKeys(v.Attrs) {
			if err := nv.Attr(attrName).WriteBytes([]byte(v.Attrs[attrName])); err != nil {
				return fmt.Errorf("write attribute %s:%s: %w", v.Name, attrName, err)
			}
		}
		if v.Values != nil {
			writes = append(writes, pending{nc: nv, values: v.Values})
		}
		return nil
	}

	for _, name := range sortedKeys(ds.Coords) {
		if err := addVar(ds.Coords[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(ds.Vars) {
		if err := addVar(ds.Vars[name]); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(ds.Attrs) {
		if err := nc.Attr(name).WriteBytes([]byte(ds.Attrs[name])); err != nil {
			return fmt.Errorf("write global attribute %s: %w", name, err)
		}
	}

	if err := nc.EndDef(); err != nil {
		return fmt.Errorf("end definitions of %s: %w", path, err)
	}

	for _, w := range writes {
		if err := w.nc.WriteFloat64s(w.values); err != nil {
			return fmt.Errorf("write values to %s: %w", path, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
