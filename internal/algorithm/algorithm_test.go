package algorithm

import (
	"math"
	"testing"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"linear_regression", "moving_average"} {
		m, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if m.Name() != name {
			t.Errorf("Name() = %q, want %q", m.Name(), name)
		}
	}
	if len(r.Names()) != 2 {
		t.Errorf("Names() = %v, want 2 entries", r.Names())
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("arima"); err == nil {
		t.Error("expected error for unregistered algorithm")
	}
}

func TestLinearRegressionFitPredict(t *testing.T) {
	lr := &LinearRegression{}
	history := []float64{10, 12, 14, 16, 18, 20}

	params, err := lr.Fit(history, nil, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(params["slope"]-2) > 1e-9 {
		t.Errorf("slope = %v, want 2", params["slope"])
	}

	// Next index is 6, so one step ahead continues the line at 22.
	got := lr.Predict(params, history, 1)
	if math.Abs(got-22) > 1e-9 {
		t.Errorf("Predict(+1) = %v, want 22", got)
	}
	got = lr.Predict(params, history, 5)
	if math.Abs(got-30) > 1e-9 {
		t.Errorf("Predict(+5) = %v, want 30", got)
	}
}

func TestLinearRegressionTooFewPoints(t *testing.T) {
	lr := &LinearRegression{}
	if _, err := lr.Fit([]float64{5}, nil, nil); err == nil {
		t.Error("expected error for single-point series")
	}
}

func TestMovingAverageFit(t *testing.T) {
	ma := &MovingAverage{}
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	params, err := ma.Fit(values, models.Params{"window": 5}, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if params["window"] != 5 {
		t.Errorf("window = %v, want 5", params["window"])
	}
	if params["mean"] != 8 {
		t.Errorf("mean = %v, want 8 (mean of last 5)", params["mean"])
	}
}

func TestMovingAverageWarmStartBlends(t *testing.T) {
	ma := &MovingAverage{}
	params, err := ma.Fit([]float64{20, 20, 20}, nil, models.Params{"mean": 10})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if params["mean"] != 15 {
		t.Errorf("mean = %v, want 15 (blend of 20 and warm 10)", params["mean"])
	}
}

func TestMovingAveragePredictFlatAcrossHorizons(t *testing.T) {
	ma := &MovingAverage{}
	history := []float64{100, 110, 120}
	params := models.Params{"window": 3, "mean": 110}

	for _, steps := range []int{1, 7, 30} {
		got := ma.Predict(params, history, steps)
		if got != 110 {
			t.Errorf("Predict(+%d) = %v, want 110", steps, got)
		}
	}
	if got := ma.Predict(params, nil, 1); got != 110 {
		t.Errorf("Predict with no history = %v, want fitted mean 110", got)
	}
}
