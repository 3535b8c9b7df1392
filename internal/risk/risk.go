// Package risk computes portfolio risk metrics from daily return series
// and allocation weights.
package risk

import (
	"math"
)

const (
	tradingDays = 252

	// 5th percentile of the standard normal distribution.
	var95ZScore = -1.6448536269514722

	// Volatility below this is treated as zero; the residual stddev of a
	// constant series is on the order of 1e-17 and would blow up the
	// Sharpe ratio.
	volEpsilon = 1e-12
)

// Metrics summarizes the risk profile of a portfolio.
type Metrics struct {
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	ValueAtRisk95    float64 `json:"value_at_risk_95"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// Compute derives annualized metrics from a series of daily portfolio
// returns. totalValue scales the value-at-risk figure into currency terms.
func Compute(dailyReturns []float64, totalValue float64) Metrics {
	if len(dailyReturns) == 0 {
		return Metrics{}
	}

	meanDaily := mean(dailyReturns)
	stdDaily := stdDev(dailyReturns, meanDaily)

	annualReturn := meanDaily * tradingDays
	annualVol := stdDaily * math.Sqrt(tradingDays)

	sharpe := 0.0
	if annualVol > volEpsilon {
		sharpe = annualReturn / annualVol
	}

	return Metrics{
		AnnualReturn:     annualReturn,
		AnnualVolatility: annualVol,
		SharpeRatio:      sharpe,
		ValueAtRisk95:    ValueAtRisk95(dailyReturns, totalValue),
		MaxDrawdown:      MaxDrawdown(dailyReturns),
	}
}

// ValueAtRisk95 returns the one-day 95% value at risk in currency terms,
// assuming normally distributed returns. The result is non-negative.
func ValueAtRisk95(dailyReturns []float64, totalValue float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	m := mean(dailyReturns)
	s := stdDev(dailyReturns, m)
	quantile := m + var95ZScore*s
	return math.Abs(totalValue * quantile)
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// return path as a non-positive fraction.
func MaxDrawdown(dailyReturns []float64) float64 {
	cumulative := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range dailyReturns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		dd := (cumulative - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ConcentrationLevel classifies portfolio concentration.
type ConcentrationLevel string

const (
	ConcentrationLow    ConcentrationLevel = "LOW"
	ConcentrationMedium ConcentrationLevel = "MEDIUM"
	ConcentrationHigh   ConcentrationLevel = "HIGH"
)

// Concentration holds the Herfindahl-Hirschman index of a portfolio and
// its classification.
type Concentration struct {
	HHI     float64            `json:"hhi_score"`
	Level   ConcentrationLevel `json:"concentration_level"`
	Message string             `json:"message"`
}

// AssessConcentration computes the HHI over allocation weights. Weights are
// fractions of the portfolio in [0, 1].
func AssessConcentration(weights []float64) Concentration {
	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}

	c := Concentration{HHI: hhi}
	switch {
	case hhi < 0.15:
		c.Level = ConcentrationLow
		c.Message = "Well diversified portfolio"
	case hhi < 0.25:
		c.Level = ConcentrationMedium
		c.Message = "Moderate concentration detected"
	default:
		c.Level = ConcentrationHigh
		c.Message = "High concentration risk - consider diversifying"
	}
	return c
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
