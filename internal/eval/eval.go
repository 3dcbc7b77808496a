// Package eval computes evaluation statistics over assembled datasets:
// area-weighted field means, climatological seasonal and monthly means, and
// the ensemble comparison metrics of Kotlarski et al. (2014).
package eval

import (
	"fmt"
	"math"
	"time"

	"github.com/cordexkit/evaltools/internal/domain"
)

// LapseRate is the constant lapse rate in K/m used for height correction of
// near-surface temperature.
const LapseRate = 0.0065

// Season is a standard three-month climatological season.
type Season string

const (
	DJF Season = "DJF"
	MAM Season = "MAM"
	JJA Season = "JJA"
	SON Season = "SON"
)

// Seasons lists all seasons in annual order starting at winter.
var Seasons = []Season{DJF, MAM, JJA, SON}

func seasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return DJF
	case time.March, time.April, time.May:
		return MAM
	case time.June, time.July, time.August:
		return JJA
	default:
		return SON
	}
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// HeightCorrection returns the temperature correction in K for data at
// height1 compared against a reference at height2, both in meters.
func HeightCorrection(height1, height2 float64) float64 {
	return (height1 - height2) * LapseRate
}

// HeightCorrectionField applies HeightCorrection pointwise over two
// orography fields.
func HeightCorrectionField(orog1, orog2 []float64) ([]float64, error) {
	if len(orog1) != len(orog2) {
		return nil, fmt.Errorf("orography fields differ in length: %d vs %d", len(orog1), len(orog2))
	}
	out := make([]float64, len(orog1))
	for i := range orog1 {
		out[i] = HeightCorrection(orog1[i], orog2[i])
	}
	return out, nil
}

// WeightedFieldMean reduces a gridded variable to a time series of
// area-weighted spatial means. The variable's two trailing dimensions are
// treated as (lat, lon); weights default to the cosine of the latitude
// coordinate. NaN cells are excluded from both sum and weight total.
func WeightedFieldMean(ds *domain.Dataset, varName string, weights []float64) ([]float64, error) {
	v, ok := ds.Vars[varName]
	if !ok {
		return nil, fmt.Errorf("variable %s not present", varName)
	}
	if len(v.Dims) < 2 {
		return nil, fmt.Errorf("variable %s is not a spatial field", varName)
	}

	nLat := v.Shape[len(v.Shape)-2]
	nLon := v.Shape[len(v.Shape)-1]

	if weights == nil {
		latName := v.Dims[len(v.Dims)-2]
		lat, ok := ds.Coords[latName]
		if !ok {
			return nil, fmt.Errorf("latitude coordinate %s not present", latName)
		}
		if len(lat.Values) != nLat {
			return nil, fmt.Errorf("latitude coordinate %s has %d values, want %d", latName, len(lat.Values), nLat)
		}
		weights = make([]float64, nLat)
		for j, deg := range lat.Values {
			weights[j] = math.Cos(deg * math.Pi / 180)
		}
	}
	if len(weights) != nLat {
		return nil, fmt.Errorf("got %d weights, want %d", len(weights), nLat)
	}

	steps := 1
	for _, n := range v.Shape[:len(v.Shape)-2] {
		steps *= n
	}
	cells := nLat * nLon

	out := make([]float64, steps)
	for s := 0; s < steps; s++ {
		var sum, wsum float64
		for j := 0; j < nLat; j++ {
			for k := 0; k < nLon; k++ {
				val := v.Values[s*cells+j*nLon+k]
				if math.IsNaN(val) {
					continue
				}
				sum += weights[j] * val
				wsum += weights[j]
			}
		}
		if wsum == 0 {
			out[s] = math.NaN()
			continue
		}
		out[s] = sum / wsum
	}
	return out, nil
}

// SeasonalMean computes climatological seasonal means from a monthly time
// series, weighting each month by its number of days within the season.
func SeasonalMean(times []time.Time, values []float64) (map[Season]float64, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("got %d timestamps for %d values", len(times), len(values))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("empty time series")
	}

	sums := make(map[Season]float64)
	weights := make(map[Season]float64)
	for i, t := range times {
		s := seasonOf(t.Month())
		d := float64(daysInMonth(t))
		sums[s] += values[i] * d
		weights[s] += d
	}

	out := make(map[Season]float64, len(sums))
	for s, sum := range sums {
		out[s] = sum / weights[s]
	}
	return out, nil
}

// MonthlyMean computes the climatological mean annual cycle: the mean of all
// values falling in each calendar month.
func MonthlyMean(times []time.Time, values []float64) (map[time.Month]float64, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("got %d timestamps for %d values", len(times), len(values))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("empty time series")
	}

	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for i, t := range times {
		sums[t.Month()] += values[i]
		counts[t.Month()]++
	}

	out := make(map[time.Month]float64, len(sums))
	for m, sum := range sums {
		out[m] = sum / float64(counts[m])
	}
	return out, nil
}

// AnnualCycle orders a climatological annual cycle January through December.
// All twelve months must be present.
func AnnualCycle(byMonth map[time.Month]float64) ([]float64, error) {
	out := make([]float64, 12)
	for m := time.January; m <= time.December; m++ {
		v, ok := byMonth[m]
		if !ok {
			return nil, fmt.Errorf("month %s missing from annual cycle", m)
		}
		out[m-1] = v
	}
	return out, nil
}

// YearlyMeans reduces a time series to one mean per calendar year, ordered by
// year, for interannual variability statistics.
func YearlyMeans(times []time.Time, values []float64) ([]float64, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("got %d timestamps for %d values", len(times), len(values))
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("empty time series")
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	minYear, maxYear := times[0].Year(), times[0].Year()
	for i, t := range times {
		y := t.Year()
		sums[y] += values[i]
		counts[y]++
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}

	out := make([]float64, 0, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		n, ok := counts[y]
		if !ok {
			return nil, fmt.Errorf("year %d missing from time series", y)
		}
		out = append(out, sums[y]/float64(n))
	}
	return out, nil
}
