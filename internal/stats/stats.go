// Package stats provides the pure numeric primitives the intelligence
// services are built on: baseline statistics, z-scores, least-squares
// fitting and outlier flagging. No I/O, no tenant or entity concept.
package stats

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a series is too short for the
// requested computation. Callers treat it as skip-this-metric, not fatal.
var ErrInsufficientData = errors.New("insufficient data")

// Summary is the baseline of a series: population mean/stddev plus range.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// Baseline computes population mean, stddev, min and max of a series.
func Baseline(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrInsufficientData
	}

	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return Summary{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    min,
		Max:    max,
		Count:  len(values),
	}, nil
}

// ZScore returns the number of standard deviations a value sits from the
// mean. A zero stddev (flat series) yields 0 rather than dividing by zero,
// so a constant metric never produces anomalies.
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return (value - mean) / stddev
}

// Fit is an ordinary least-squares line over (index, value) pairs.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// LinearFit fits y = intercept + slope*x over the series using the point
// index as x. RSquared is clamped to [0,1]; a constant series (zero total
// sum of squares) yields RSquared 0.
func LinearFit(values []float64) Fit {
	n := float64(len(values))
	if n < 2 {
		mean := 0.0
		if len(values) == 1 {
			mean = values[0]
		}
		return Fit{Intercept: mean}
	}

	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return Fit{Intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	mean := sumY / n
	ssTot, ssRes := 0.0, 0.0
	for i, v := range values {
		pred := intercept + slope*float64(i)
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - mean) * (v - mean)
	}

	r2 := 0.0
	if ssTot > 1e-12 {
		r2 = Clamp01(1.0 - ssRes/ssTot)
	}

	return Fit{Slope: slope, Intercept: intercept, RSquared: r2}
}

// Outlier is one point flagged by z-score against the full-series baseline.
type Outlier struct {
	Index  int     `json:"index"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"z_score"`
}

// Outliers flags points whose |z| exceeds the threshold, measured against
// the population mean/stddev of the full series (the flagged point itself
// included in the baseline).
func Outliers(values []float64, zThreshold float64) []Outlier {
	base, err := Baseline(values)
	if err != nil || base.StdDev == 0 {
		return nil
	}

	var out []Outlier
	for i, v := range values {
		z := ZScore(v, base.Mean, base.StdDev)
		if math.Abs(z) > zThreshold {
			out = append(out, Outlier{Index: i, Value: v, ZScore: z})
		}
	}
	return out
}

// Autocorrelation computes the Pearson autocorrelation of a series at a
// given lag. Returns 0 when the series is too short or flat.
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values) - lag
	if lag <= 0 || n <= 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	num, den1, den2 := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		a := values[i] - mean
		b := values[i+lag] - mean
		num += a * b
		den1 += a * a
		den2 += b * b
	}
	denom := math.Sqrt(den1 * den2)
	if denom < 1e-12 {
		return 0
	}
	return num / denom
}

// CoefficientOfVariation returns stddev/mean as a percentage, the
// volatility measure used by trend classification. 0 when the mean is 0.
func CoefficientOfVariation(s Summary) float64 {
	if s.Mean == 0 {
		return 0
	}
	return math.Abs(s.StdDev/s.Mean) * 100
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
