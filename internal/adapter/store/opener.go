// Package store reads and writes datasets as NetCDF files on local storage.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/domain"
)

// Opener opens catalog entries as datasets, keeping recently opened files in
// an in-memory LRU cache so repeated assemblies of overlapping subsets do not
// re-read the archive.
type Opener struct {
	cache  *lruCache
	logger *slog.Logger
}

// NewOpener creates an opener caching up to maxCached datasets. A zero or
// negative maxCached disables caching.
func NewOpener(maxCached int, logger *slog.Logger) *Opener {
	var cache *lruCache
	if maxCached > 0 {
		cache = newLRUCache(maxCached)
	}
	return &Opener{cache: cache, logger: logger}
}

// Open reads the entry's file into a dataset. Cached copies are cloned on
// every hit; callers own the returned dataset exclusively.
func (o *Opener) Open(ctx context.Context, entry catalog.Entry) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if o.cache != nil {
		if ds, ok := o.cache.get(entry.Path); ok {
			o.logger.Debug("dataset cache hit", "path", entry.Path)
			return ds.Clone(), nil
		}
	}

	ds, err := ReadDataset(entry.Path)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("dataset read",
		"path", entry.Path,
		"variable", entry.VariableID,
		"vars", len(ds.Vars),
	)

	if o.cache != nil {
		o.cache.put(entry.Path, ds)
		return ds.Clone(), nil
	}
	return ds, nil
}

// ReadDataset reads a whole NetCDF file into memory. Dimension coordinates,
// variables named in any "coordinates" attribute, and grid-mapping variables
// land in Coords; everything else in Vars. Numeric values are widened to
// float64; character variables keep attributes only.
func ReadDataset(path string) (*domain.Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	ds := domain.NewDataset()

	nGlobal, err := nc.NAttrs()
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	for i := 0; i < nGlobal; i++ {
		attr, err := nc.AttrN(i)
		if err != nil {
			return nil, fmt.Errorf("read global attribute %d of %s: %w", i, path, err)
		}
		if value, ok := readTextAttr(attr); ok {
			ds.Attrs[attr.Name()] = value
		}
	}

	nVars, err := nc.NVars()
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}

	vars := make([]domain.Variable, 0, nVars)
	coordNames := make(map[string]bool)
	for i := 0; i < nVars; i++ {
		v, err := readVariable(nc.VarN(i))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		vars = append(vars, v)

		if len(v.Dims) == 1 && v.Dims[0] == v.Name {
			coordNames[v.Name] = true
		}
		if _, ok := v.Attrs["grid_mapping_name"]; ok {
			coordNames[v.Name] = true
		}
		for _, name := range strings.Fields(v.Attrs["coordinates"]) {
			coordNames[name] = true
		}
	}

	for _, v := range vars {
		if coordNames[v.Name] {
			ds.Coords[v.Name] = v
		} else {
			ds.Vars[v.Name] = v
		}
	}
	return ds, nil
}

func readVariable(v netcdf.Var) (domain.Variable, error) {
	name, err := v.Name()
	if err != nil {
		return domain.Variable{}, fmt.Errorf("variable name: %w", err)
	}

	out := domain.Variable{Name: name}

	dims, err := v.Dims()
	if err != nil {
		return out, fmt.Errorf("dimensions of %s: %w", name, err)
	}
	total := 1
	for _, d := range dims {
		dimName, err := d.Name()
		if err != nil {
			return out, fmt.Errorf("dimension name of %s: %w", name, err)
		}
		length, err := d.Len()
		if err != nil {
			return out, fmt.Errorf("dimension length of %s: %w", name, err)
		}
		out.Dims = append(out.Dims, dimName)
		out.Shape = append(out.Shape, int(length))
		total *= int(length)
	}

	values, err := readValues(v, total)
	if err != nil {
		return out, fmt.Errorf("values of %s: %w", name, err)
	}
	out.Values = values

	nAttrs, err := v.NAttrs()
	if err != nil {
		return out, fmt.Errorf("attributes of %s: %w", name, err)
	}
	for i := 0; i < nAttrs; i++ {
		attr, err := v.AttrN(i)
		if err != nil {
			return out, fmt.Errorf("attribute %d of %s: %w", i, name, err)
		}
		if value, ok := readTextAttr(attr); ok {
			if out.Attrs == nil {
				out.Attrs = make(map[string]string)
			}
			out.Attrs[attr.Name()] = value
		}
	}
	return out, nil
}

// readValues widens any numeric variable to float64. Character variables
// carry no numeric payload and return nil.
func readValues(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("variable type: %w", err)
	}

	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.CHAR:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %v", t)
	}
}

func widen[T int16 | int32 | float32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// readTextAttr returns a character attribute's value. Attributes of other
// types are skipped; dataset metadata of interest here is textual.
func readTextAttr(a netcdf.Attr) (string, bool) {
	t, err := a.Type()
	if err != nil || t != netcdf.CHAR {
		return "", false
	}
	n, err := a.Len()
	if err != nil {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return string(buf), true
}
