package service

import "errors"

var (
	// ErrNoTrainingData is returned when a training run has nothing to fit.
	// Callers decide the retry policy.
	ErrNoTrainingData = errors.New("no training data")

	// ErrNoActiveModel is returned when forecast generation finds no active
	// model for the requested metric.
	ErrNoActiveModel = errors.New("no active model")

	// ErrExecutionFailed wraps a failure of a recommendation's execution
	// step. The status transition is rolled back.
	ErrExecutionFailed = errors.New("recommendation execution failed")

	// ErrInvalidInput is returned for malformed org/entity references.
	ErrInvalidInput = errors.New("invalid input")
)
