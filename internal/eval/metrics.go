package eval

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// The comparison metrics below follow Kotlarski et al. (2014), the joint
// standard evaluation of the EURO-CORDEX ensemble. Field metrics take
// climatological mean values per grid cell; series metrics take spatially
// averaged time series.

// Bias is the difference of spatial means, model minus reference.
func Bias(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	return stat.Mean(model, nil) - stat.Mean(ref, nil), nil
}

// RelativeBias is the bias as a fraction of the reference mean, the
// convention for precipitation.
func RelativeBias(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	refMean := stat.Mean(ref, nil)
	if refMean == 0 {
		return 0, fmt.Errorf("reference mean is zero")
	}
	return (stat.Mean(model, nil) - refMean) / refMean, nil
}

// P95 is the 95th percentile of absolute grid cell differences between model
// and reference fields.
func P95(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	diffs := make([]float64, len(model))
	for i := range model {
		diffs[i] = math.Abs(model[i] - ref[i])
	}
	sort.Float64s(diffs)
	return stat.Quantile(0.95, stat.Empirical, diffs, nil), nil
}

// PatternCorrelation is the spatial correlation of model and reference
// fields across all grid cells.
func PatternCorrelation(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	return stat.Correlation(model, ref, nil), nil
}

// SpatialStdDevRatio is the ratio, model over reference, of spatial standard
// deviations.
func SpatialStdDevRatio(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	refStd := stat.StdDev(ref, nil)
	if refStd == 0 {
		return 0, fmt.Errorf("reference field has zero spatial variance")
	}
	return stat.StdDev(model, nil) / refStd, nil
}

// InterannualCorrelation is the temporal correlation of model and reference
// interannual series of spatially averaged means.
func InterannualCorrelation(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	return stat.Correlation(model, ref, nil), nil
}

// InterannualStdDevRatio is the ratio, model over reference, of temporal
// standard deviations of interannual series.
func InterannualStdDevRatio(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	refStd := stat.StdDev(ref, nil)
	if refStd == 0 {
		return 0, fmt.Errorf("reference series has zero variance")
	}
	return stat.StdDev(model, nil) / refStd, nil
}

// AnnualCycleRankCorrelation is the Spearman rank correlation between model
// and reference mean annual cycles.
func AnnualCycleRankCorrelation(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	return stat.Correlation(ranks(model), ranks(ref), nil), nil
}

// AnnualCycleAmplitudeRatio is the ratio, model over reference, of annual
// cycle amplitudes, each the difference of its maximum and minimum month.
func AnnualCycleAmplitudeRatio(model, ref []float64) (float64, error) {
	if err := checkPair(model, ref); err != nil {
		return 0, err
	}
	refAmp := amplitude(ref)
	if refAmp == 0 {
		return 0, fmt.Errorf("reference annual cycle is flat")
	}
	return amplitude(model) / refAmp, nil
}

func amplitude(cycle []float64) float64 {
	lo, hi := cycle[0], cycle[0]
	for _, v := range cycle[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// ranks assigns 1-based ranks, averaging over ties.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank across the tie run [i, j].
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = rank
		}
		i = j + 1
	}
	return out
}

func checkPair(model, ref []float64) error {
	if len(model) == 0 {
		return fmt.Errorf("empty input")
	}
	if len(model) != len(ref) {
		return fmt.Errorf("model and reference differ in length: %d vs %d", len(model), len(ref))
	}
	return nil
}
