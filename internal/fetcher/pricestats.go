package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"premarket-bias/internal/cache"
	"premarket-bias/internal/marketdata"
)

const (
	DefaultSessionTimezone = "US/Eastern"
	DefaultStatsTTL        = 5 * time.Minute
)

var hundred = decimal.NewFromInt(100)

// PricesOptions parameterise the overnight stats fetcher.
type PricesOptions struct {
	Timezone string
	TTL      time.Duration
	Now      func() time.Time
}

// Prices derives overnight high/low/last/prev-close statistics.
type Prices struct {
	provider marketdata.Provider
	cache    cache.Store
	group    singleflight.Group
	loc      *time.Location
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewPrices constructs a stats fetcher over provider, caching into store.
func NewPrices(provider marketdata.Provider, store cache.Store, opts PricesOptions, logger zerolog.Logger) (*Prices, error) {
	tz := opts.Timezone
	if tz == "" {
		tz = DefaultSessionTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load session timezone %q: %w", tz, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if store == nil {
		store = cache.NewMemory(now)
	}

	return &Prices{
		provider: provider,
		cache:    store,
		loc:      loc,
		ttl:      ttl,
		now:      now,
		logger:   logger.With().Str("component", "price_stats").Logger(),
	}, nil
}

// Fetch returns overnight stats for symbol. Concurrent calls for the same
// symbol share one provider round-trip; results stay cached for the TTL.
// Provider failures come back as the unavailable stats plus an error and are
// not cached.
func (p *Prices) Fetch(ctx context.Context, symbol string) (PriceStats, error) {
	key := p.cacheKey(symbol)
	if stats, ok := p.lookup(ctx, key); ok {
		return stats, nil
	}

	v, err, shared := p.group.Do(key, func() (any, error) {
		if stats, ok := p.lookup(ctx, key); ok {
			return stats, nil
		}

		stats, err := p.compute(ctx, symbol)
		if err != nil {
			return stats, err
		}
		p.remember(ctx, key, stats)
		return stats, nil
	})

	stats, _ := v.(PriceStats)
	if stats.Symbol == "" {
		stats = Unavailable(symbol)
	}
	if shared {
		p.logger.Debug().Str("symbol", symbol).Msg("joined in-flight fetch")
	}
	return stats, err
}

// OvernightWindow returns [18:00 previous day, 09:30 today) in the session
// timezone for the day containing now.
func OvernightWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d-1, 18, 0, 0, 0, loc), time.Date(y, m, d, 9, 30, 0, 0, loc)
}

// Location returns the session timezone.
func (p *Prices) Location() *time.Location {
	return p.loc
}

func (p *Prices) compute(ctx context.Context, symbol string) (PriceStats, error) {
	now := p.now().In(p.loc)
	y, m, d := now.Date()
	start := time.Date(y, m, d-1, 0, 0, 0, 0, p.loc)
	windowStart, windowEnd := OvernightWindow(now, p.loc)

	intraday, err := p.provider.Bars(ctx, symbol, start, now, marketdata.Interval5m)
	if err != nil {
		return Unavailable(symbol), fmt.Errorf("fetch intraday bars for %s: %w", symbol, err)
	}
	if len(intraday) == 0 {
		p.logger.Info().Str("symbol", symbol).Msg("provider returned no intraday rows")
		return Unavailable(symbol), nil
	}

	// No partial fills: a symbol without overnight bars is unavailable even
	// when the series has a usable last close. Macro lines then render n/a.
	high, low, ok := overnightRange(intraday, windowStart, windowEnd)
	if !ok {
		p.logger.Info().Str("symbol", symbol).
			Time("window_start", windowStart).Time("window_end", windowEnd).
			Msg("no bars inside overnight window")
		return Unavailable(symbol), nil
	}

	last := decimal.NewFromFloat(intraday[len(intraday)-1].Close)

	prevClose := last
	daily, err := p.provider.Bars(ctx, symbol, start.AddDate(0, 0, -2), start, marketdata.Interval1d)
	switch {
	case err != nil:
		p.logger.Warn().Err(err).Str("symbol", symbol).Msg("daily bars unavailable; using last as previous close")
	case len(daily) == 0:
		p.logger.Debug().Str("symbol", symbol).Msg("no daily rows; using last as previous close")
	default:
		prevClose = decimal.NewFromFloat(daily[len(daily)-1].Close)
	}

	pct := decimal.Zero
	if !prevClose.IsZero() {
		pct = last.Sub(prevClose).Div(prevClose).Mul(hundred).Round(2)
	}

	return PriceStats{
		Symbol:    symbol,
		Available: true,
		High:      decimal.NewFromFloat(high).Round(2),
		Low:       decimal.NewFromFloat(low).Round(2),
		Last:      last.Round(2),
		PrevClose: prevClose.Round(2),
		PctChange: pct,
	}, nil
}

func overnightRange(bars []marketdata.Bar, from, to time.Time) (float64, float64, bool) {
	var high, low float64
	found := false
	for _, bar := range bars {
		if bar.Time.Before(from) || !bar.Time.Before(to) {
			continue
		}
		if !found {
			high, low = bar.High, bar.Low
			found = true
			continue
		}
		if bar.High > high {
			high = bar.High
		}
		if bar.Low < low {
			low = bar.Low
		}
	}
	return high, low, found
}

func (p *Prices) cacheKey(symbol string) string {
	return "pricestats:" + p.loc.String() + ":" + symbol
}

func (p *Prices) lookup(ctx context.Context, key string) (PriceStats, bool) {
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return PriceStats{}, false
	}
	if !ok {
		return PriceStats{}, false
	}

	var stats PriceStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return PriceStats{}, false
	}
	return stats, true
}

func (p *Prices) remember(ctx context.Context, key string, stats PriceStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

var _ PriceStatsFetcher = (*Prices)(nil)
