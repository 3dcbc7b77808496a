package domain

import (
	"fmt"
	"strings"
)

// facetCount is the number of dot-delimited facets in a CORDEX-CMIP6
// instance identifier.
const facetCount = 10

// InstanceID names one combined model-run dataset. The facet order follows
// the CORDEX-CMIP6 directory reference syntax, e.g.
//
//	CORDEX-CMIP6.EUR-12.CLMcom-CMCC.MPI-ESM1-2-HR.historical.r1i1p1f1.ICON-CLM-202407-1-1.v1-r1.mon.v20240529
type InstanceID struct {
	Project            string // e.g. "CORDEX-CMIP6"
	Domain             string // e.g. "EUR-12"
	Institution        string // e.g. "CLMcom-CMCC"
	DrivingSource      string // driving GCM, e.g. "MPI-ESM1-2-HR"
	DrivingExperiment  string // e.g. "historical", "ssp370"
	DrivingVariant     string // ensemble member, e.g. "r1i1p1f1"
	Source             string // RCM name+version, e.g. "ICON-CLM-202407-1-1"
	VersionRealization string // e.g. "v1-r1"
	Frequency          string // e.g. "mon", "day", "fx"
	Version            string // dataset creation date, e.g. "v20240529"
}

// String renders the dot-delimited identifier.
func (id InstanceID) String() string {
	return strings.Join([]string{
		id.Project, id.Domain, id.Institution, id.DrivingSource,
		id.DrivingExperiment, id.DrivingVariant, id.Source,
		id.VersionRealization, id.Frequency, id.Version,
	}, ".")
}

// RunKey identifies the model run an entry belongs to: all facets except
// Frequency and Version. Multiple variables of one run, and the run's
// fixed-field entry, share the same RunKey and are merge candidates.
func (id InstanceID) RunKey() string {
	return strings.Join([]string{
		id.Project, id.Domain, id.Institution, id.DrivingSource,
		id.DrivingExperiment, id.DrivingVariant, id.Source,
		id.VersionRealization,
	}, ".")
}

// ParseInstanceID splits a dot-delimited identifier back into facets.
func ParseInstanceID(s string) (InstanceID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != facetCount {
		return InstanceID{}, fmt.Errorf("parse instance id %q: want %d facets, got %d", s, facetCount, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return InstanceID{}, fmt.Errorf("parse instance id %q: facet %d is empty", s, i)
		}
	}
	return InstanceID{
		Project:            parts[0],
		Domain:             parts[1],
		Institution:        parts[2],
		DrivingSource:      parts[3],
		DrivingExperiment:  parts[4],
		DrivingVariant:     parts[5],
		Source:             parts[6],
		VersionRealization: parts[7],
		Frequency:          parts[8],
		Version:            parts[9],
	}, nil
}
