package risk

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestComputeEmptySeries(t *testing.T) {
	m := Compute(nil, 100000)
	if m.AnnualReturn != 0 || m.SharpeRatio != 0 || m.ValueAtRisk95 != 0 {
		t.Fatalf("expected zero metrics for empty series, got %+v", m)
	}
}

func TestComputeConstantReturns(t *testing.T) {
	returns := make([]float64, 252)
	for i := range returns {
		returns[i] = 0.001
	}

	m := Compute(returns, 100000)

	if !almostEqual(m.AnnualReturn, 0.252, 1e-9) {
		t.Errorf("annual return = %v, want 0.252", m.AnnualReturn)
	}
	// The stddev of a constant series carries a residual on the order of
	// 1e-17 from the summation, so compare with a tolerance.
	if !almostEqual(m.AnnualVolatility, 0, 1e-12) {
		t.Errorf("annual volatility = %v, want ~0", m.AnnualVolatility)
	}
	// Near-zero volatility must not explode the Sharpe ratio.
	if m.SharpeRatio != 0 {
		t.Errorf("sharpe ratio = %v, want 0", m.SharpeRatio)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0 for monotonically rising path", m.MaxDrawdown)
	}
}

func TestSharpeRatioSign(t *testing.T) {
	up := []float64{0.01, 0.02, 0.005, 0.015}
	down := []float64{-0.01, -0.02, -0.005, -0.015}

	if s := Compute(up, 1000).SharpeRatio; s <= 0 {
		t.Errorf("sharpe for rising series = %v, want > 0", s)
	}
	if s := Compute(down, 1000).SharpeRatio; s >= 0 {
		t.Errorf("sharpe for falling series = %v, want < 0", s)
	}
}

func TestValueAtRisk95(t *testing.T) {
	// Two-point series: mean 0, std 0.01. Quantile = -1.6448... * 0.01.
	returns := []float64{0.01, -0.01}
	got := ValueAtRisk95(returns, 100000)
	want := 100000 * 1.6448536269514722 * 0.01
	if !almostEqual(got, want, 1e-6) {
		t.Errorf("VaR95 = %v, want %v", got, want)
	}
	if got < 0 {
		t.Errorf("VaR95 must be non-negative, got %v", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"no losses", []float64{0.01, 0.02, 0.03}, 0},
		{"single drop", []float64{0.10, -0.20, 0.05}, -0.20},
		{"recovery does not erase drawdown", []float64{-0.10, 0.50}, -0.10},
		{"compounding decline", []float64{-0.10, -0.10}, -0.19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.returns)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("MaxDrawdown(%v) = %v, want %v", tt.returns, got, tt.want)
			}
		})
	}
}

func TestAssessConcentration(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		level   ConcentrationLevel
	}{
		{"perfectly diversified", []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}, ConcentrationLow},
		{"five equal holdings", []float64{0.2, 0.2, 0.2, 0.2, 0.2}, ConcentrationMedium},
		{"top heavy", []float64{0.4, 0.3, 0.2, 0.1}, ConcentrationHigh},
		{"single asset", []float64{1.0}, ConcentrationHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AssessConcentration(tt.weights)
			if c.Level != tt.level {
				t.Errorf("level = %s (hhi %.3f), want %s", c.Level, c.HHI, tt.level)
			}
			if c.Message == "" {
				t.Error("expected a non-empty message")
			}
		})
	}
}

func TestAssessConcentrationBoundaries(t *testing.T) {
	// HHI of 10 equal weights of 0.1 is exactly 0.10.
	if c := AssessConcentration([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}); !almostEqual(c.HHI, 0.10, 1e-12) {
		t.Errorf("hhi = %v, want 0.10", c.HHI)
	}
	// Exactly 0.25 falls into HIGH.
	if c := AssessConcentration([]float64{0.5, 0.5}); c.Level != ConcentrationHigh {
		t.Errorf("hhi 0.5 classified as %s, want HIGH", c.Level)
	}
}
