// Package market provides price and volatility lookups for portfolio assets.
package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Data supplies current prices and annualized volatility estimates.
type Data interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	Volatility(ctx context.Context, symbol string) (float64, error)
}

// MockData serves a fixed table of prices and volatilities. It stands in
// for a real market data feed in development and tests.
type MockData struct {
	prices       map[string]decimal.Decimal
	volatilities map[string]float64
}

// NewMockData returns a MockData seeded with a default asset universe.
func NewMockData() *MockData {
	return &MockData{
		prices: map[string]decimal.Decimal{
			"AAPL":  decimal.NewFromFloat(175.20),
			"MSFT":  decimal.NewFromFloat(380.50),
			"GOOGL": decimal.NewFromFloat(142.30),
			"BTC":   decimal.NewFromFloat(62000.00),
			"ETH":   decimal.NewFromFloat(2200.00),
			"VBMFX": decimal.NewFromFloat(110.20),
			"SPY":   decimal.NewFromFloat(445.50),
		},
		volatilities: map[string]float64{
			"BTC":   0.45,
			"ETH":   0.38,
			"AAPL":  0.22,
			"MSFT":  0.20,
			"GOOGL": 0.25,
			"VBMFX": 0.08,
			"SPY":   0.15,
		},
	}
}

// Price returns the current price for symbol, or a default for unknown symbols.
func (m *MockData) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return decimal.NewFromFloat(100.00), nil
}

// Volatility returns the annualized volatility for symbol, or a default
// for unknown symbols.
func (m *MockData) Volatility(_ context.Context, symbol string) (float64, error) {
	if v, ok := m.volatilities[symbol]; ok {
		return v, nil
	}
	return 0.20, nil
}

// SetPrice overrides the price for symbol. Intended for tests.
func (m *MockData) SetPrice(symbol string, price decimal.Decimal) {
	m.prices[symbol] = price
}

var _ Data = (*MockData)(nil)
