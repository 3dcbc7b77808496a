// Command catcheck validates a catalog before it is used for assembly runs:
// descriptor integrity, entry facets, per-run completeness, and optionally
// the referenced NetCDF files themselves.
//
// Usage:
//
//	catcheck -catalog ./testdata/catalog/CORDEX-CMIP6.json
//	catcheck -catalog ./CORDEX-CMIP6.json -open
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/cordexkit/evaltools/internal/adapter/store"
	"github.com/cordexkit/evaltools/internal/catalog"
	"github.com/cordexkit/evaltools/internal/domain"
	"github.com/cordexkit/evaltools/internal/fix"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "path to the catalog descriptor JSON")
	openFiles := flag.Bool("open", false, "also open every referenced NetCDF file")
	flag.Parse()

	if *catalogPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*catalogPath, *openFiles))
}

func run(catalogPath string, openFiles bool) int {
	fmt.Println("=== Catalog Validation ===")
	fmt.Println()

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateDescriptor(&cat.Descriptor),
		validateEntries(cat.Entries),
		validateRuns(cat.Entries),
	}
	if openFiles {
		phases = append(phases, validateFiles(cat.Entries))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Entries: %d across %d sources\n", len(cat.Entries), len(catalog.Sources(cat.Entries)))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Descriptor ──

func validateDescriptor(desc *catalog.Descriptor) *phase {
	p := &phase{name: "Phase 1: Descriptor"}

	if desc.ID == "" {
		p.errorf("id is empty")
	}
	if desc.ESMCatVersion == "" {
		p.errorf("esmcat_version is empty")
	}
	if desc.Assets.ColumnName != "path" {
		p.errorf("assets.column_name is %q, expected \"path\"", desc.Assets.ColumnName)
	}

	declared := make(map[string]bool, len(desc.Attributes))
	for _, a := range desc.Attributes {
		declared[a.ColumnName] = true
	}
	for _, col := range []string{
		"project_id", "domain_id", "institution_id", "driving_source_id",
		"driving_experiment_id", "driving_variant_label", "source_id",
		"version_realization", "frequency", "variable_id", "version",
	} {
		if !declared[col] {
			p.errorf("attribute %q not declared in descriptor", col)
		}
	}
	return p
}

// ── Phase 2: Entry facets ──

func validateEntries(entries []catalog.Entry) *phase {
	p := &phase{name: "Phase 2: Entry facets"}

	known := make(map[string]bool, len(catalog.Frequencies))
	for _, f := range catalog.Frequencies {
		known[f] = true
	}

	seen := make(map[string]int)
	for i, e := range entries {
		line := i + 2 // header is line 1

		if _, err := domain.ParseInstanceID(e.InstanceID().String()); err != nil {
			p.errorf("line %d: %v", line, err)
			continue
		}
		if !known[e.Frequency] {
			p.errorf("line %d: unknown frequency %q", line, e.Frequency)
		}
		if e.VariableID == "" {
			p.errorf("line %d: variable_id is empty", line)
		}
		if e.Path == "" {
			p.errorf("line %d: path is empty", line)
		}

		key := e.InstanceID().String() + "|" + e.VariableID
		if prev, dup := seen[key]; dup {
			p.errorf("line %d: duplicate of line %d (%s)", line, prev, key)
		} else {
			seen[key] = line
		}
	}
	return p
}

// ── Phase 3: Run completeness ──
// Every model run should carry the same variable set at each temporal
// frequency, otherwise selection silently drops it.

func validateRuns(entries []catalog.Entry) *phase {
	p := &phase{name: "Phase 3: Run completeness"}

	type runFreq struct{ run, freq string }
	varsByRun := make(map[runFreq]map[string]bool)
	for _, e := range entries {
		if e.Frequency == catalog.FxFrequency {
			continue
		}
		key := runFreq{run: e.InstanceID().RunKey(), freq: e.Frequency}
		if varsByRun[key] == nil {
			varsByRun[key] = make(map[string]bool)
		}
		varsByRun[key][e.VariableID] = true
	}

	// Union of variables per frequency across runs.
	union := make(map[string]map[string]bool)
	for key, vars := range varsByRun {
		if union[key.freq] == nil {
			union[key.freq] = make(map[string]bool)
		}
		for v := range vars {
			union[key.freq][v] = true
		}
	}

	keys := make([]runFreq, 0, len(varsByRun))
	for key := range varsByRun {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].run != keys[b].run {
			return keys[a].run < keys[b].run
		}
		return keys[a].freq < keys[b].freq
	})

	for _, key := range keys {
		for v := range union[key.freq] {
			if !varsByRun[key][v] {
				p.errorf("run %s at %s: missing variable %s carried by other runs", key.run, key.freq, v)
			}
		}
	}
	return p
}

// ── Phase 4: Files ──

func validateFiles(entries []catalog.Entry) *phase {
	p := &phase{name: "Phase 4: Files"}

	for i, e := range entries {
		line := i + 2
		ds, err := store.ReadDataset(e.Path)
		if err != nil {
			p.errorf("line %d: %v", line, err)
			continue
		}
		v, ok := ds.Vars[e.VariableID]
		if !ok {
			p.errorf("line %d: %s does not contain variable %s", line, e.Path, e.VariableID)
			continue
		}
		gm, ok := ds.GridMappingVar()
		if !ok {
			p.errorf("line %d: %s has no grid-mapping variable", line, e.Path)
			continue
		}
		if name := gm.Attrs["grid_mapping_name"]; !fix.SupportedGridMapping(name) {
			p.errorf("line %d: %s has unsupported grid mapping %q", line, e.Path, name)
		}
		if ref := v.GridMapping(); ref != "" && ref != gm.Name {
			p.errorf("line %d: %s references grid mapping %q but file declares %q", line, e.Path, ref, gm.Name)
		}
	}
	return p
}
