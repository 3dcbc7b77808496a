// Package domain models CORDEX-CMIP6 regional climate model output.
//
// # Data Source
//
// Datasets come from the CORDEX-CMIP6 archive: regional climate models (RCMs)
// downscaling CMIP6 global driving models over fixed domains such as EUR-12.
// An ESM catalog (a JSON descriptor plus a CSV table of file-level entries)
// indexes the archive; each entry carries the descriptive facets below and the
// storage path of one NetCDF file.
//
// # Instance Identifiers
//
// One model run publishes many files: one per variable, plus time-invariant
// fixed fields. The canonical key for a combined run dataset is the
// dot-delimited instance identifier with ten ordered facets:
//
//	<project>.<domain>.<institution>.<driving_source>.<driving_experiment>.
//	<driving_variant>.<source>.<version_realization>.<frequency>.<version>
//
// e.g.
//
//	CORDEX-CMIP6.EUR-12.CLMcom-CMCC.MPI-ESM1-2-HR.historical.r1i1p1f1.ICON-CLM-202407-1-1.v1-r1.mon.v20240529
//
// Two entries with identical facet values collapse to the same key. Dropping
// the frequency and version facets yields the run key: the grouping used to
// decide which per-variable files belong to one merged dataset. See
// [InstanceID.RunKey].
//
// # Fixed fields
//
// Variables with frequency "fx" (orography, land-sea fraction, grid-cell
// area) have no time dimension. They are merged into the temporal datasets of
// the same run with their own spatial dimensions, broadcast rather than
// concatenated along time.
//
// # Grid mappings
//
// CF conventions describe a dataset's spatial reference system through a
// grid-mapping variable (a scalar coordinate with a "grid_mapping_name"
// attribute) referenced by each data variable's "grid_mapping" attribute.
// CORDEX models disagree on the variable's name ("crs", "rotated_pole",
// "Lambert_Conformal", ...), which breaks combination across models. The fix
// package normalizes the name to "crs" and rejects projections other than
// rotated_latitude_longitude and lambert_conformal_conic.
package domain
