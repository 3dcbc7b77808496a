package assemble

import (
	"fmt"

	"github.com/cordexkit/evaltools/internal/domain"
	"github.com/cordexkit/evaltools/internal/fix"
)

// VerificationError reports the consistency check a merged dataset failed.
type VerificationError struct {
	Check  string
	Detail string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify %s: %s", e.Check, e.Detail)
}

// Verify validates the internal consistency of a merged dataset. Datasets
// that fail verification, even after fixes, never enter the result mapping.
func Verify(ds *domain.Dataset) error {
	if len(ds.Vars) == 0 {
		return &VerificationError{Check: "variables", Detail: "dataset has no data variables"}
	}

	if _, err := ds.DimSizes(); err != nil {
		return &VerificationError{Check: "dimensions", Detail: err.Error()}
	}

	if err := verifyGridMapping(ds); err != nil {
		return err
	}

	return verifyMonotonicCoords(ds)
}

// verifyGridMapping requires a valid grid-mapping variable and consistent
// references to it from every data variable that declares one.
func verifyGridMapping(ds *domain.Dataset) error {
	gm, ok := ds.GridMappingVar()
	if !ok {
		return &VerificationError{Check: "grid_mapping", Detail: "no grid-mapping variable present"}
	}
	name := gm.Attrs["grid_mapping_name"]
	if !fix.SupportedGridMapping(name) {
		return &VerificationError{Check: "grid_mapping", Detail: fmt.Sprintf("grid mapping %q is not supported", name)}
	}
	for _, v := range ds.Vars {
		ref := v.GridMapping()
		if ref == "" {
			continue
		}
		if _, ok := ds.Coords[ref]; !ok {
			return &VerificationError{
				Check:  "grid_mapping",
				Detail: fmt.Sprintf("variable %s references missing grid-mapping variable %q", v.Name, ref),
			}
		}
	}
	return nil
}

// verifyMonotonicCoords requires every dimension coordinate to be strictly
// monotonic, the precondition for alignment along shared dimensions.
func verifyMonotonicCoords(ds *domain.Dataset) error {
	for name, c := range ds.Coords {
		if len(c.Dims) != 1 || c.Dims[0] != name || len(c.Values) < 2 {
			continue
		}
		if !monotonic(c.Values) {
			return &VerificationError{
				Check:  "coordinates",
				Detail: fmt.Sprintf("coordinate %s is not strictly monotonic", name),
			}
		}
	}
	return nil
}

func monotonic(values []float64) bool {
	increasing, decreasing := true, true
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			increasing = false
		}
		if values[i] >= values[i-1] {
			decreasing = false
		}
	}
	return increasing || decreasing
}
