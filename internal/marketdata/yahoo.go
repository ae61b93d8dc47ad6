package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	DefaultRateLimit    = 5 // requests per second
	chartPath           = "/v8/finance/chart/"
)

// YahooOptions parameterise the Yahoo chart client.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	RateLimit int
}

// Yahoo fetches bars from the Yahoo Finance chart endpoint.
type Yahoo struct {
	opts    YahooOptions
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewYahoo constructs a Yahoo chart client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	return &Yahoo{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(limit), limit),
		logger:  logger.With().Str("component", "yahoo_chart").Logger(),
	}
}

// APIError represents a non-200 answer from the chart endpoint.
type APIError struct {
	StatusCode int
	Symbol     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo chart error (%d) for %s: %s", e.StatusCode, e.Symbol, e.Message)
}

// Bars retrieves OHLC bars for symbol within [start, end).
func (y *Yahoo) Bars(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("empty range %s - %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", string(interval))
	params.Set("includePrePost", "true")

	endpoint := y.baseURL + chartPath + url.PathEscape(symbol) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create chart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "biasgen/1.0")
	}

	y.logger.Debug().Str("symbol", symbol).Str("interval", string(interval)).
		Time("start", start).Time("end", end).Msg("chart request")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send chart request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart response: %w", err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(payload, &chart)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(payload))
		if decodeErr == nil && chart.Chart.Error != nil && chart.Chart.Error.Description != "" {
			msg = chart.Chart.Error.Description
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Symbol: symbol, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode chart response: %w", decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Symbol: symbol, Message: chart.Chart.Error.Description}
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, symbol)
	}

	return chart.Chart.Result[0].bars(start, end), nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

// Yahoo pads missing observations with null.
type chartQuote struct {
	Open  []*float64 `json:"open"`
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
	Close []*float64 `json:"close"`
}

func (r chartResult) bars(start, end time.Time) []Bar {
	if len(r.Indicators.Quote) == 0 {
		return []Bar{}
	}
	q := r.Indicators.Quote[0]

	bars := make([]Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, okOpen := at(q.Open, i)
		high, okHigh := at(q.High, i)
		low, okLow := at(q.Low, i)
		closePx, okClose := at(q.Close, i)
		if !okOpen || !okHigh || !okLow || !okClose {
			continue
		}

		t := time.Unix(ts, 0).UTC()
		if t.Before(start) || !t.Before(end) {
			continue
		}
		bars = append(bars, Bar{Time: t, Open: open, High: high, Low: low, Close: closePx})
	}
	return bars
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

var _ Provider = (*Yahoo)(nil)
