package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// FxFrequency is the fixed-field frequency sentinel: entries at this
// frequency are time-invariant and merge into every temporal dataset of
// their run.
const FxFrequency = "fx"

// Frequencies recognized by Select, per the CORDEX-CMIP6 controlled
// vocabulary subset this archive publishes.
var Frequencies = []string{"1hr", "3hr", "6hr", "day", "mon", FxFrequency}

// SelectionError reports that no catalog entries matched the requested
// variables and frequency. An empty selection is almost always a user input
// mistake, so it surfaces as an error rather than an empty subset.
type SelectionError struct {
	Variables []string
	Frequency string
	Reason    string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("select %v at frequency %q: %s", e.Variables, e.Frequency, e.Reason)
}

// Select filters the catalog to entries whose variable is in variables and
// whose frequency matches. Following the archive's query convention, a
// source_id only survives if it carries all requested variables at the
// requested frequency, so every selected model run can produce a complete
// merged dataset.
//
// When includeFx is true, fixed-field entries of the surviving source_ids are
// included regardless of the requested frequency, so they can later be merged
// into their parent datasets.
func (c *Catalog) Select(variables []string, frequency string, includeFx bool) ([]Entry, error) {
	if len(variables) == 0 {
		return nil, &SelectionError{Frequency: frequency, Reason: "no variables requested"}
	}
	if !validFrequency(frequency) {
		return nil, &SelectionError{
			Variables: variables,
			Frequency: frequency,
			Reason:    fmt.Sprintf("unrecognized frequency (known: %s)", strings.Join(Frequencies, ", ")),
		}
	}

	wanted := make(map[string]bool, len(variables))
	for _, v := range variables {
		wanted[v] = true
	}

	// First pass: collect matching entries and the variables seen per source.
	varsBySource := make(map[string]map[string]bool)
	var matched []Entry
	for _, e := range c.Entries {
		if e.Frequency != frequency || !wanted[e.VariableID] {
			continue
		}
		matched = append(matched, e)
		if varsBySource[e.Source] == nil {
			varsBySource[e.Source] = make(map[string]bool)
		}
		varsBySource[e.Source][e.VariableID] = true
	}

	// require-all-on source_id: drop sources missing any requested variable.
	complete := make(map[string]bool, len(varsBySource))
	for source, seen := range varsBySource {
		if len(seen) == len(wanted) {
			complete[source] = true
		}
	}

	subset := matched[:0]
	for _, e := range matched {
		if complete[e.Source] {
			subset = append(subset, e)
		}
	}

	if len(subset) == 0 {
		return nil, &SelectionError{Variables: variables, Frequency: frequency, Reason: "no entries matched"}
	}

	if includeFx && frequency != FxFrequency {
		for _, e := range c.Entries {
			if e.Frequency == FxFrequency && complete[e.Source] {
				subset = append(subset, e)
			}
		}
	}

	return subset, nil
}

// Sources returns the distinct source_ids in a subset, sorted.
func Sources(entries []Entry) []string {
	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Source] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func validFrequency(freq string) bool {
	for _, f := range Frequencies {
		if f == freq {
			return true
		}
	}
	return false
}
