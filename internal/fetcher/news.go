package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultNewsQuery    = "S&P 500 OR Nasdaq futures"
	DefaultMaxHeadlines = 5
	topHeadlinesPath    = "/top-headlines"
)

// NewsOptions parameterise the headline search client.
type NewsOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// News queries a NewsAPI-compatible top-headlines endpoint.
type News struct {
	opts    NewsOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewNews constructs a headline fetcher.
func NewNews(opts NewsOptions, logger zerolog.Logger) *News {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}

	return &News{
		opts:    opts,
		logger:  logger.With().Str("component", "news_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// NewsAPIError is a non-2xx answer from the headline endpoint.
type NewsAPIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *NewsAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("news api error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("news api error (%d): %s", e.StatusCode, e.Message)
}

// Fetch returns at most max business headlines matching query. On any failure
// it returns an empty slice together with the cause.
func (n *News) Fetch(ctx context.Context, apiKey, query string, max int) ([]Headline, error) {
	if strings.TrimSpace(apiKey) == "" {
		return []Headline{}, errors.New("news api key required")
	}
	if query == "" {
		query = DefaultNewsQuery
	}
	if max <= 0 {
		max = DefaultMaxHeadlines
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("category", "business")
	params.Set("pageSize", strconv.Itoa(max))
	params.Set("apiKey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+topHeadlinesPath+"?"+params.Encode(), nil)
	if err != nil {
		return []Headline{}, fmt.Errorf("create news request: %w", stripRequestURL(err))
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(n.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return []Headline{}, fmt.Errorf("send news request: %w", stripRequestURL(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return []Headline{}, fmt.Errorf("read news response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return []Headline{}, parseNewsError(resp.StatusCode, payload)
	}

	var body headlinesResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return []Headline{}, fmt.Errorf("decode news response: %w", err)
	}
	if body.Status == "error" {
		return []Headline{}, &NewsAPIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
	}

	headlines := make([]Headline, 0, min(len(body.Articles), max))
	for _, a := range body.Articles {
		if len(headlines) == max {
			break
		}
		headlines = append(headlines, Headline{Title: a.Title, Source: a.Source.Name})
	}

	n.logger.Debug().Int("headlines", len(headlines)).Int("total_results", body.TotalResults).Msg("headlines fetched")
	return headlines, nil
}

// stripRequestURL drops the request URL from transport errors; it carries the
// apiKey query parameter.
func stripRequestURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s %s: %w", ue.Op, topHeadlinesPath, ue.Err)
	}
	return err
}

type headlinesResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func parseNewsError(status int, payload []byte) error {
	var apiErr headlinesResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && (apiErr.Message != "" || apiErr.Code != "") {
		return &NewsAPIError{StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
	}
	return &NewsAPIError{StatusCode: status, Message: strings.TrimSpace(string(payload))}
}

var _ HeadlineFetcher = (*News)(nil)
