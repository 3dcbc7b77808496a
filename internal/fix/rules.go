package fix

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cordexkit/evaltools/internal/domain"
)

// Rule is one declarative correction: glob patterns over instance facets
// select the datasets it applies to, and the fix section says what to
// rewrite. Rules are read-only, process-wide configuration.
type Rule struct {
	ID    string  `toml:"id"`
	Match Match   `toml:"match"`
	Fix   FixSpec `toml:"fix"`
	Notes string  `toml:"notes"`
}

// Match holds glob patterns over instance facets. Empty patterns match
// everything.
type Match struct {
	Source            string `toml:"source_id"`
	Institution       string `toml:"institution_id"`
	DrivingSource     string `toml:"driving_source_id"`
	DrivingExperiment string `toml:"driving_experiment_id"`
	Domain            string `toml:"domain_id"`
}

// FixSpec is the correction to apply. RenameGridMapping renames the
// grid-mapping variable (and references) to the given name; Attributes sets
// "variable.attribute" keys to new values, with "" meaning the dataset's
// global attributes.
type FixSpec struct {
	RenameGridMapping string            `toml:"rename_grid_mapping"`
	Attributes        map[string]string `toml:"attributes"`
}

type ruleFile struct {
	Rules []Rule `toml:"rules"`
}

// LoadRules reads fix rules from a TOML file.
func LoadRules(tomlPath string) ([]Rule, error) {
	var rf ruleFile
	if _, err := toml.DecodeFile(tomlPath, &rf); err != nil {
		return nil, fmt.Errorf("load fix rules %s: %w", tomlPath, err)
	}
	for i, r := range rf.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("load fix rules %s: rule %d has no id", tomlPath, i)
		}
	}
	return rf.Rules, nil
}

// Matches reports whether the rule applies to the given instance.
func (r Rule) Matches(id domain.InstanceID) bool {
	for _, m := range []struct{ pattern, value string }{
		{r.Match.Source, id.Source},
		{r.Match.Institution, id.Institution},
		{r.Match.DrivingSource, id.DrivingSource},
		{r.Match.DrivingExperiment, id.DrivingExperiment},
		{r.Match.Domain, id.Domain},
	} {
		if m.pattern == "" {
			continue
		}
		ok, err := path.Match(m.pattern, m.value)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Apply runs all matching rules against the dataset in place, after the
// built-in grid-mapping normalization. It returns the ids of rules that
// changed the dataset. The first correction that cannot be applied stops
// further fixing and is returned; callers proceed to verification unfixed.
func Apply(ds *domain.Dataset, id domain.InstanceID, rules []Rule) ([]string, error) {
	var applied []string

	changed, err := NormalizeGridMapping(ds)
	if err != nil {
		return applied, err
	}
	if changed {
		applied = append(applied, "grid-mapping-name")
	}

	for _, r := range rules {
		if !r.Matches(id) {
			continue
		}
		changed, err := r.apply(ds)
		if err != nil {
			return applied, err
		}
		if changed {
			applied = append(applied, r.ID)
		}
	}
	return applied, nil
}

func (r Rule) apply(ds *domain.Dataset) (bool, error) {
	changed := false

	if target := r.Fix.RenameGridMapping; target != "" {
		gm, ok := ds.GridMappingVar()
		if !ok {
			return changed, &Error{Rule: r.ID, Reason: "no grid-mapping variable present"}
		}
		if gm.Name != target {
			if err := ds.RenameCoord(gm.Name, target); err != nil {
				return changed, &Error{Rule: r.ID, Reason: err.Error()}
			}
			changed = true
		}
	}

	// Apply attribute overrides in key order so repeated runs are identical.
	keys := make([]string, 0, len(r.Fix.Attributes))
	for k := range r.Fix.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := r.Fix.Attributes[key]
		varName, attr, found := strings.Cut(key, ".")
		if !found {
			ds.Attrs[key] = value
			changed = true
			continue
		}
		if v, ok := ds.Vars[varName]; ok {
			if v.Attrs == nil {
				v.Attrs = make(map[string]string)
			}
			v.Attrs[attr] = value
			ds.Vars[varName] = v
			changed = true
			continue
		}
		if v, ok := ds.Coords[varName]; ok {
			if v.Attrs == nil {
				v.Attrs = make(map[string]string)
			}
			v.Attrs[attr] = value
			ds.Coords[varName] = v
			changed = true
			continue
		}
		return changed, &Error{Rule: r.ID, Reason: fmt.Sprintf("variable %s not present", varName)}
	}

	return changed, nil
}
