package algorithm

import (
	"fmt"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/stats"
)

// LinearRegression fits y = intercept + slope*x over the series index.
type LinearRegression struct{}

func (l *LinearRegression) Name() string { return "linear_regression" }

// Fit runs ordinary least squares. OLS has no useful warm start; an
// incremental refit on new data simply refits.
func (l *LinearRegression) Fit(values []float64, hyper, warm models.Params) (models.Params, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("linear regression needs at least 2 points, got %d", len(values))
	}
	fit := stats.LinearFit(values)
	return models.Params{
		"slope":     fit.Slope,
		"intercept": fit.Intercept,
		"r_squared": fit.RSquared,
		"n":         float64(len(values)),
	}, nil
}

// Predict extrapolates the fitted line. The line was fit over training
// indices, so the estimate for stepsAhead past the end of history is the
// line evaluated at len(history)-1+stepsAhead.
func (l *LinearRegression) Predict(params models.Params, history []float64, stepsAhead int) float64 {
	x := float64(len(history) - 1 + stepsAhead)
	return params["intercept"] + params["slope"]*x
}
