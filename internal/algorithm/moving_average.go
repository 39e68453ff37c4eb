package algorithm

import (
	"fmt"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

const defaultWindow = 7

// MovingAverage predicts the mean of the last window of observations.
// Hyperparameter "window" sets the window size (default 7).
type MovingAverage struct{}

func (m *MovingAverage) Name() string { return "moving_average" }

// Fit stores the window mean. A warm start blends the previous mean with
// the new one so an incremental refit on a short slice of fresh data does
// not discard the accumulated level.
func (m *MovingAverage) Fit(values []float64, hyper, warm models.Params) (models.Params, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("moving average needs at least 1 point")
	}

	window := windowSize(hyper, len(values))
	mean := tailMean(values, window)

	if prev, ok := warm["mean"]; ok {
		mean = (mean + prev) / 2
	}

	return models.Params{
		"window": float64(window),
		"mean":   mean,
		"n":      float64(len(values)),
	}, nil
}

// Predict returns the mean of the last window of history; with no history
// it falls back to the fitted mean. The estimate is flat across horizons.
func (m *MovingAverage) Predict(params models.Params, history []float64, stepsAhead int) float64 {
	if len(history) == 0 {
		return params["mean"]
	}
	window := int(params["window"])
	if window <= 0 {
		window = defaultWindow
	}
	return tailMean(history, window)
}

func windowSize(hyper models.Params, n int) int {
	window := defaultWindow
	if w, ok := hyper["window"]; ok && int(w) > 0 {
		window = int(w)
	}
	if window > n {
		window = n
	}
	return window
}

func tailMean(values []float64, window int) float64 {
	if window > len(values) {
		window = len(values)
	}
	if window == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}
