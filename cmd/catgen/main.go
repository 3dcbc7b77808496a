// Command catgen generates a synthetic CORDEX-CMIP6 catalog for local
// testing: a descriptor JSON, an entry table CSV, and matching NetCDF files
// for a handful of model runs. One run publishes its grid mapping under a
// non-canonical name so fix handling can be exercised end to end.
//
// Usage:
//
//	catgen -out ./testdata/catalog
//	evaltool -variables tas,pr -frequency mon -merge-fx -apply-fixes
//	  (with CATALOG_PATH=./testdata/catalog/CORDEX-CMIP6.json)
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/cordexkit/evaltools/internal/adapter/store"
	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/domain"
)

type model struct {
	source      string
	institution string
	gridMapVar  string // name of the grid-mapping variable in its files
}

var models = []model{
	{source: "ICON-CLM-202407-1-1", institution: "CLMcom-CMCC", gridMapVar: "crs"},
	{source: "RACMO23E-v1", institution: "KNMI", gridMapVar: "crs"},
	// REMO publishes the grid mapping under the legacy name; fix rules
	// normalize it to crs during assembly.
	{source: "REMO2020-1", institution: "GERICS", gridMapVar: "rotated_pole"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for the generated catalog")
	gridSize := flag.Int("grid", 4, "grid points per horizontal dimension")
	months := flag.Int("months", 12, "number of monthly steps")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *gridSize < 2 || *months < 1 {
		return fmt.Errorf("grid must be >= 2 and months >= 1")
	}

	dataDir := filepath.Join(*outDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	var rows [][]string
	var files int
	for i, m := range models {
		for _, variable := range []string{"tas", "pr"} {
			path := filepath.Join(dataDir, fmt.Sprintf("%s_%s_mon.nc", variable, m.source))
			ds := monthlyDataset(m, variable, float64(i), *gridSize, *months)
			if err := store.WriteDataset(path, ds); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			rows = append(rows, entryRow(m, "mon", variable, monthRange(*months), path))
			files++
		}

		path := filepath.Join(dataDir, fmt.Sprintf("orog_%s_fx.nc", m.source))
		if err := store.WriteDataset(path, fxDataset(m, float64(i), *gridSize)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		rows = append(rows, entryRow(m, "fx", "orog", "", path))
		files++
	}

	if err := writeEntries(filepath.Join(*outDir, "CORDEX-CMIP6.csv"), rows); err != nil {
		return fmt.Errorf("writing entry table: %w", err)
	}
	if err := writeDescriptor(filepath.Join(*outDir, "CORDEX-CMIP6.json")); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}

	log.Printf("wrote %d NetCDF files and %d catalog rows to %s", files, len(rows), *outDir)
	for _, m := range models {
		log.Printf("  %s (%s): grid mapping %q", m.source, m.institution, m.gridMapVar)
	}
	return nil
}

// monthlyDataset builds a (time, rlat, rlon) dataset with deterministic
// values so regenerated fixtures stay byte-stable.
func monthlyDataset(m model, variable string, offset float64, grid, months int) *domain.Dataset {
	ds := baseDataset(m, grid)

	times := make([]float64, months)
	for t := range times {
		times[t] = float64(t)*30 + 15 // days since 1950-01-01, mid-month
	}
	ds.Coords["time"] = domain.Variable{
		Name: "time", Dims: []string{"time"}, Shape: []int{months}, Values: times,
		Attrs: map[string]string{"units": "days since 1950-01-01", "calendar": "standard"},
	}

	base, unit := 273.15, "K"
	if variable == "pr" {
		base, unit = 3e-5, "kg m-2 s-1"
	}
	values := make([]float64, months*grid*grid)
	for t := 0; t < months; t++ {
		seasonal := math.Sin(2 * math.Pi * float64(t) / 12)
		for j := 0; j < grid; j++ {
			for k := 0; k < grid; k++ {
				values[t*grid*grid+j*grid+k] = base * (1 + 0.1*seasonal + 0.01*(offset+float64(j+k)))
			}
		}
	}
	ds.Vars[variable] = domain.Variable{
		Name: variable, Dims: []string{"time", "rlat", "rlon"}, Shape: []int{months, grid, grid},
		Values: values,
		Attrs:  map[string]string{"units": unit, "grid_mapping": m.gridMapVar},
	}
	return ds
}

func fxDataset(m model, offset float64, grid int) *domain.Dataset {
	ds := baseDataset(m, grid)
	values := make([]float64, grid*grid)
	for j := 0; j < grid; j++ {
		for k := 0; k < grid; k++ {
			values[j*grid+k] = 100*offset + 10*float64(j) + float64(k)
		}
	}
	ds.Vars["orog"] = domain.Variable{
		Name: "orog", Dims: []string{"rlat", "rlon"}, Shape: []int{grid, grid},
		Values: values,
		Attrs:  map[string]string{"units": "m", "grid_mapping": m.gridMapVar},
	}
	return ds
}

func baseDataset(m model, grid int) *domain.Dataset {
	ds := domain.NewDataset()
	ds.Attrs["project_id"] = "CORDEX-CMIP6"
	ds.Attrs["domain_id"] = "EUR-12"
	ds.Attrs["institution_id"] = m.institution
	ds.Attrs["source_id"] = m.source

	axis := make([]float64, grid)
	for i := range axis {
		axis[i] = -1 + 0.11*float64(i)
	}
	ds.Coords["rlat"] = domain.Variable{Name: "rlat", Dims: []string{"rlat"}, Shape: []int{grid}, Values: axis}
	ds.Coords["rlon"] = domain.Variable{Name: "rlon", Dims: []string{"rlon"}, Shape: []int{grid}, Values: axis}
	ds.Coords[m.gridMapVar] = domain.Variable{
		Name: m.gridMapVar,
		Attrs: map[string]string{
			"grid_mapping_name":         "rotated_latitude_longitude",
			"grid_north_pole_latitude":  "39.25",
			"grid_north_pole_longitude": "-162.0",
			"north_pole_grid_longitude": "0.0",
		},
	}
	return ds
}

func entryRow(m model, frequency, variable, timeRange, path string) []string {
	return []string{
		"CORDEX-CMIP6", "EUR-12", m.institution, "ERA5", "evaluation", "r1i1p1f1",
		m.source, "v1-r1", frequency, variable, "v20240529", timeRange, path,
	}
}

func monthRange(months int) string {
	lastYear := 1950 + (months-1)/12
	lastMonth := (months-1)%12 + 1
	return fmt.Sprintf("195001-%04d%02d", lastYear, lastMonth)
}

func writeEntries(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"project_id", "domain_id", "institution_id", "driving_source_id",
		"driving_experiment_id", "driving_variant_label", "source_id",
		"version_realization", "frequency", "variable_id", "version",
		"time_range", "path",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeDescriptor(path string) error {
	desc := catalog.Descriptor{
		ESMCatVersion: "0.1.0",
		ID:            "cordex-cmip6-synthetic",
		Description:   "Synthetic CORDEX-CMIP6 catalog for local testing",
		CatalogFile:   "CORDEX-CMIP6.csv",
		Attributes: []catalog.Attribute{
			{ColumnName: "project_id"}, {ColumnName: "domain_id"},
			{ColumnName: "institution_id"}, {ColumnName: "driving_source_id"},
			{ColumnName: "driving_experiment_id"}, {ColumnName: "driving_variant_label"},
			{ColumnName: "source_id"}, {ColumnName: "version_realization"},
			{ColumnName: "frequency"}, {ColumnName: "variable_id"},
			{ColumnName: "version"}, {ColumnName: "time_range"},
		},
		Assets: catalog.Assets{ColumnName: "path", Format: "netcdf"},
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
