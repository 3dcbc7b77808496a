// Package catalog reads ESM datastore catalogs of CORDEX-CMIP6 output and
// selects the entries an assembly run needs.
//
// A catalog is two files: a JSON descriptor naming the facet columns and the
// assets column, and a CSV table with one row per archived NetCDF file. Only
// querying is implemented here; the catalog's storage format is owned by the
// archive.
package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cordexkit/evaltools/internal/domain"
)

// Descriptor is the JSON half of an ESM datastore: identity plus the mapping
// from CSV columns to facets and assets.
type Descriptor struct {
	ESMCatVersion string      `json:"esmcat_version"`
	ID            string      `json:"id"`
	Description   string      `json:"description"`
	CatalogFile   string      `json:"catalog_file"`
	Attributes    []Attribute `json:"attributes"`
	Assets        Assets      `json:"assets"`
}

// Attribute declares one facet column of the entry table.
type Attribute struct {
	ColumnName string `json:"column_name"`
}

// Assets declares the column holding storage locators and their format.
type Assets struct {
	ColumnName string `json:"column_name"`
	Format     string `json:"format"`
}

// Entry references one archived dataset file: the instance facets, the
// variable the file carries, and its storage locator. Immutable once loaded.
type Entry struct {
	Project            string
	Domain             string
	Institution        string
	DrivingSource      string
	DrivingExperiment  string
	DrivingVariant     string
	Source             string
	VersionRealization string
	Frequency          string
	VariableID         string
	Version            string
	TimeRange          string
	Path               string
}

// InstanceID assembles the entry's canonical identifier facets.
func (e Entry) InstanceID() domain.InstanceID {
	return domain.InstanceID{
		Project:            e.Project,
		Domain:             e.Domain,
		Institution:        e.Institution,
		DrivingSource:      e.DrivingSource,
		DrivingExperiment:  e.DrivingExperiment,
		DrivingVariant:     e.DrivingVariant,
		Source:             e.Source,
		VersionRealization: e.VersionRealization,
		Frequency:          e.Frequency,
		Version:            e.Version,
	}
}

// Catalog is a loaded ESM datastore: descriptor plus entry table.
type Catalog struct {
	Descriptor Descriptor
	Entries    []Entry
}

// entryColumns maps CSV header names to Entry field setters. The column
// names follow the CORDEX-CMIP6 controlled vocabulary.
var entryColumns = map[string]func(*Entry, string){
	"project_id":            func(e *Entry, v string) { e.Project = v },
	"domain_id":             func(e *Entry, v string) { e.Domain = v },
	"institution_id":        func(e *Entry, v string) { e.Institution = v },
	"driving_source_id":     func(e *Entry, v string) { e.DrivingSource = v },
	"driving_experiment_id": func(e *Entry, v string) { e.DrivingExperiment = v },
	"driving_variant_label": func(e *Entry, v string) { e.DrivingVariant = v },
	"source_id":             func(e *Entry, v string) { e.Source = v },
	"version_realization":   func(e *Entry, v string) { e.VersionRealization = v },
	"frequency":             func(e *Entry, v string) { e.Frequency = v },
	"variable_id":           func(e *Entry, v string) { e.VariableID = v },
	"version":               func(e *Entry, v string) { e.Version = v },
	"time_range":            func(e *Entry, v string) { e.TimeRange = v },
	"path":                  func(e *Entry, v string) { e.Path = v },
}

// requiredColumns must be present in the entry table for selection and
// grouping to work.
var requiredColumns = []string{
	"project_id", "domain_id", "institution_id", "driving_source_id",
	"driving_experiment_id", "driving_variant_label", "source_id",
	"version_realization", "frequency", "variable_id", "version", "path",
}

// Load reads a catalog from a local descriptor file. The entry table path is
// resolved relative to the descriptor's directory unless absolute.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog descriptor: %w", err)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse catalog descriptor %s: %w", path, err)
	}
	if desc.CatalogFile == "" {
		return nil, fmt.Errorf("catalog descriptor %s: catalog_file is empty", path)
	}

	csvPath := desc.CatalogFile
	if !filepath.IsAbs(csvPath) {
		csvPath = filepath.Join(filepath.Dir(path), csvPath)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog entries: %w", err)
	}
	defer f.Close()

	entries, err := parseEntries(f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog entries %s: %w", csvPath, err)
	}

	return &Catalog{Descriptor: desc, Entries: entries}, nil
}

// parseEntries reads the CSV entry table. Unknown columns are ignored so
// archives can add facets without breaking older readers.
func parseEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var e Entry
		for col, set := range entryColumns {
			if i, ok := index[col]; ok && i < len(record) {
				set(&e, record[i])
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
