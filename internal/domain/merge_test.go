package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridDataset builds a small dataset with one data variable on (time, rlat, rlon)
// and a rotated-pole grid mapping named crs.
func gridDataset(varName string, times, rlats, rlons []float64, values []float64) *Dataset {
	ds := NewDataset()
	ds.Coords["time"] = Variable{Name: "time", Dims: []string{"time"}, Shape: []int{len(times)}, Values: times, Attrs: map[string]string{"units": "days since 1950-01-01"}}
	ds.Coords["rlat"] = Variable{Name: "rlat", Dims: []string{"rlat"}, Shape: []int{len(rlats)}, Values: rlats, Attrs: map[string]string{"axis": "Y"}}
	ds.Coords["rlon"] = Variable{Name: "rlon", Dims: []string{"rlon"}, Shape: []int{len(rlons)}, Values: rlons, Attrs: map[string]string{"axis": "X"}}
	ds.Coords["crs"] = Variable{Name: "crs", Attrs: map[string]string{"grid_mapping_name": "rotated_latitude_longitude"}}
	ds.Vars[varName] = Variable{
		Name:   varName,
		Dims:   []string{"time", "rlat", "rlon"},
		Shape:  []int{len(times), len(rlats), len(rlons)},
		Values: values,
		Attrs:  map[string]string{"grid_mapping": "crs"},
	}
	return ds
}

func seq(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestMergeUnionOfVariables(t *testing.T) {
	tas := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	pr := gridDataset("pr", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 0))

	merged, err := Merge(tas, pr)
	require.NoError(t, err)

	assert.Equal(t, []string{"pr", "tas"}, merged.VarNames())
	// Data values survive the merge unchanged.
	assert.Equal(t, seq(8, 270), merged.Vars["tas"].Values)
	assert.Equal(t, seq(8, 0), merged.Vars["pr"].Values)
}

func TestMergeBroadcastsFixedFields(t *testing.T) {
	tas := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))

	orog := NewDataset()
	orog.Coords["rlat"] = tas.Coords["rlat"].Clone()
	orog.Coords["rlon"] = tas.Coords["rlon"].Clone()
	orog.Vars["orog"] = Variable{Name: "orog", Dims: []string{"rlat", "rlon"}, Shape: []int{2, 2}, Values: seq(4, 100)}

	merged, err := Merge(tas, orog)
	require.NoError(t, err)

	// orog keeps its own time-less dimensions; it is not concatenated.
	assert.Equal(t, []string{"rlat", "rlon"}, merged.Vars["orog"].Dims)
	assert.Equal(t, seq(4, 100), merged.Vars["orog"].Values)
	assert.Equal(t, []string{"time", "rlat", "rlon"}, merged.Vars["tas"].Dims)
}

func TestMergeDimensionConflict(t *testing.T) {
	a := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	b := gridDataset("pr", seq(2, 0), seq(3, -1), seq(2, -1), seq(12, 0))

	_, err := Merge(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension rlat")
}

func TestMergeConflictingVariableValues(t *testing.T) {
	a := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	b := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 280))

	_, err := Merge(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable tas differs")
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	a := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	merged, err := Merge(a)
	require.NoError(t, err)

	merged.Vars["tas"].Values[0] = -999
	assert.Equal(t, 270.0, a.Vars["tas"].Values[0])
}

func TestEqual(t *testing.T) {
	a := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	b := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	assert.True(t, Equal(a, b))

	t.Run("NaN cells compare equal", func(t *testing.T) {
		a.Vars["tas"].Values[3] = math.NaN()
		b.Vars["tas"].Values[3] = math.NaN()
		assert.True(t, Equal(a, b))
	})

	t.Run("value difference detected", func(t *testing.T) {
		b.Vars["tas"].Values[0]++
		assert.False(t, Equal(a, b))
	})
}

func TestRenameCoordRewritesGridMappingRefs(t *testing.T) {
	ds := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	require.NoError(t, ds.RenameCoord("crs", "rotated_pole"))

	_, ok := ds.Coords["crs"]
	assert.False(t, ok)
	assert.Equal(t, "rotated_pole", ds.Vars["tas"].Attrs["grid_mapping"])

	t.Run("missing coordinate", func(t *testing.T) {
		err := ds.RenameCoord("nope", "crs")
		require.Error(t, err)
	})
}

func TestSortByGridMapping(t *testing.T) {
	rotated := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	rotated2 := gridDataset("pr", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 0))
	lambert := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 280))
	lambert.Coords["crs"] = Variable{Name: "crs", Attrs: map[string]string{"grid_mapping_name": "lambert_conformal_conic"}}

	sorted, err := SortByGridMapping(map[string]*Dataset{
		"run-a": rotated,
		"run-b": rotated2,
		"run-c": lambert,
	})
	require.NoError(t, err)

	require.Len(t, sorted, 2)
	assert.Len(t, sorted["rotated_latitude_longitude"], 2)
	assert.Same(t, rotated, sorted["rotated_latitude_longitude"]["run-a"])
	assert.Same(t, rotated2, sorted["rotated_latitude_longitude"]["run-b"])
	assert.Same(t, lambert, sorted["lambert_conformal_conic"]["run-c"])

	t.Run("missing grid mapping", func(t *testing.T) {
		bare := NewDataset()
		bare.Vars["tas"] = Variable{Name: "tas", Dims: []string{"x"}, Shape: []int{1}, Values: []float64{1}}
		_, err := SortByGridMapping(map[string]*Dataset{"run-d": bare})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run-d")
	})

	t.Run("empty grid_mapping_name", func(t *testing.T) {
		ds := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
		ds.Coords["crs"] = Variable{Name: "crs", Attrs: map[string]string{"grid_mapping_name": ""}}
		_, err := SortByGridMapping(map[string]*Dataset{"run-e": ds})
		require.Error(t, err)
	})
}

func TestDimSizesConflict(t *testing.T) {
	ds := gridDataset("tas", seq(2, 0), seq(2, -1), seq(2, -1), seq(8, 270))
	ds.Vars["bad"] = Variable{Name: "bad", Dims: []string{"rlat"}, Shape: []int{5}, Values: seq(5, 0)}

	_, err := ds.DimSizes()
	require.Error(t, err)
}
