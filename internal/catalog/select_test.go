package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entry builds a minimal catalog entry for selection tests.
func entry(source, freq, variable string) Entry {
	return Entry{
		Project:            "CORDEX-CMIP6",
		Domain:             "EUR-12",
		Institution:        "CLMcom",
		DrivingSource:      "MPI-ESM1-2-HR",
		DrivingExperiment:  "historical",
		DrivingVariant:     "r1i1p1f1",
		Source:             source,
		VersionRealization: "v1-r1",
		Frequency:          freq,
		VariableID:         variable,
		Version:            "v20240529",
		Path:               "/data/" + variable + "_" + source + "_" + freq + ".nc",
	}
}

func testCatalog() *Catalog {
	return &Catalog{Entries: []Entry{
		entry("ICON-CLM", "mon", "tas"),
		entry("ICON-CLM", "mon", "pr"),
		entry("ICON-CLM", "day", "tas"),
		entry("ICON-CLM", "fx", "orog"),
		entry("RACMO23E", "mon", "tas"),
		entry("RACMO23E", "mon", "pr"),
		entry("RACMO23E", "fx", "orog"),
		entry("REMO2020", "mon", "tas"), // no pr: incomplete for {tas,pr}
	}}
}

func TestSelectFiltersByVariableAndFrequency(t *testing.T) {
	subset, err := testCatalog().Select([]string{"tas"}, "mon", false)
	require.NoError(t, err)

	require.Len(t, subset, 3)
	for _, e := range subset {
		assert.Equal(t, "mon", e.Frequency)
		assert.Equal(t, "tas", e.VariableID)
	}
}

func TestSelectRequiresAllVariablesPerSource(t *testing.T) {
	subset, err := testCatalog().Select([]string{"tas", "pr"}, "mon", false)
	require.NoError(t, err)

	// REMO2020 has no pr at mon, so it must be dropped entirely.
	assert.Equal(t, []string{"ICON-CLM", "RACMO23E"}, Sources(subset))
	assert.Len(t, subset, 4)
}

func TestSelectIncludeFx(t *testing.T) {
	subset, err := testCatalog().Select([]string{"tas", "pr"}, "mon", true)
	require.NoError(t, err)

	var fxSources []string
	for _, e := range subset {
		if e.Frequency == FxFrequency {
			fxSources = append(fxSources, e.Source)
		}
	}
	// fx entries ride along only for sources that survived require-all-on.
	assert.ElementsMatch(t, []string{"ICON-CLM", "RACMO23E"}, fxSources)
}

func TestSelectErrors(t *testing.T) {
	cat := testCatalog()

	t.Run("no variables", func(t *testing.T) {
		_, err := cat.Select(nil, "mon", false)
		var selErr *SelectionError
		require.ErrorAs(t, err, &selErr)
	})

	t.Run("unrecognized frequency", func(t *testing.T) {
		_, err := cat.Select([]string{"tas"}, "weekly", false)
		var selErr *SelectionError
		require.ErrorAs(t, err, &selErr)
		assert.Contains(t, selErr.Error(), "unrecognized frequency")
	})

	t.Run("no matches", func(t *testing.T) {
		_, err := cat.Select([]string{"huss"}, "mon", false)
		var selErr *SelectionError
		require.True(t, errors.As(err, &selErr))
		assert.Contains(t, selErr.Error(), "no entries matched")
	})

	t.Run("all sources incomplete", func(t *testing.T) {
		_, err := cat.Select([]string{"tas", "pr"}, "day", false)
		var selErr *SelectionError
		require.ErrorAs(t, err, &selErr)
	})
}
