package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceStatsFetcher retrieves overnight statistics for one symbol.
type PriceStatsFetcher interface {
	Fetch(ctx context.Context, symbol string) (PriceStats, error)
}

// HeadlineFetcher retrieves recent business headlines.
type HeadlineFetcher interface {
	Fetch(ctx context.Context, apiKey, query string, max int) ([]Headline, error)
}

// PriceStats is either fully populated or the unavailable variant; there are
// no partial fills.
type PriceStats struct {
	Symbol    string          `json:"symbol"`
	Available bool            `json:"available"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Last      decimal.Decimal `json:"last"`
	PrevClose decimal.Decimal `json:"prev_close"`
	PctChange decimal.Decimal `json:"pct_change"`
}

// Unavailable returns the absent PriceStats for symbol.
func Unavailable(symbol string) PriceStats {
	return PriceStats{Symbol: symbol}
}

// Headline is a single news title with its source attribution.
type Headline struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}
