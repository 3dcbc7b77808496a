// Package fix applies declarative metadata corrections to datasets before
// merging. Fixes are pure transformations: they rewrite attribute and
// coordinate structure only and never touch data values.
package fix

import (
	"fmt"

	"github.com/cordexkit/evaltools/internal/domain"
)

// CRSVarName is the canonical grid-mapping variable name datasets are
// normalized to.
const CRSVarName = "crs"

// supportedGridMappings lists the CF grid_mapping_name values the evaluation
// grids can be combined on.
var supportedGridMappings = map[string]bool{
	"rotated_latitude_longitude": true,
	"lambert_conformal_conic":    true,
}

// Error reports a correction that could not be applied. The group proceeds
// to verification unfixed; the error never aborts an assembly.
type Error struct {
	Rule   string
	Reason string
}

func (e *Error) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("fix: %s", e.Reason)
	}
	return fmt.Sprintf("fix %s: %s", e.Rule, e.Reason)
}

// SupportedGridMapping reports whether a grid_mapping_name can be handled.
func SupportedGridMapping(name string) bool {
	return supportedGridMappings[name]
}

// NormalizeGridMapping renames the dataset's grid-mapping variable to "crs"
// and rewrites every data variable's grid_mapping reference. A dataset
// without a grid-mapping variable, or with an unsupported projection, is not
// fixable here and is left for verification to reject.
func NormalizeGridMapping(ds *domain.Dataset) (bool, error) {
	gm, ok := ds.GridMappingVar()
	if !ok {
		return false, &Error{Rule: "grid-mapping-name", Reason: "no grid-mapping variable present"}
	}
	name := gm.Attrs["grid_mapping_name"]
	if !SupportedGridMapping(name) {
		return false, &Error{Rule: "grid-mapping-name", Reason: fmt.Sprintf("grid mapping %q is not supported", name)}
	}
	if gm.Name == CRSVarName {
		return false, nil
	}
	if err := ds.RenameCoord(gm.Name, CRSVarName); err != nil {
		return false, &Error{Rule: "grid-mapping-name", Reason: err.Error()}
	}
	return true, nil
}
