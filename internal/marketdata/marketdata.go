// Package marketdata retrieves OHLC price bars from a market data provider.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// Interval is a bar width understood by the provider.
type Interval string

const (
	Interval5m Interval = "5m"
	Interval1d Interval = "1d"
)

// ErrNoResult indicates the provider answered without a usable series.
var ErrNoResult = errors.New("marketdata: no result for symbol")

// Bar is one OHLC observation.
type Bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Provider returns bars ordered by time for [start, end). An empty slice with
// a nil error means the provider has no rows for the window.
type Provider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error)
}
