package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"premarket-bias/internal/alerting"
	"premarket-bias/internal/cache"
	"premarket-bias/internal/config"
	"premarket-bias/internal/credentials"
	"premarket-bias/internal/fetcher"
	"premarket-bias/internal/logging"
	"premarket-bias/internal/marketdata"
	"premarket-bias/internal/metrics"
	"premarket-bias/internal/service"
	"premarket-bias/internal/summarizer"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Out      io.Writer
	Redactor *logging.Redactor // nil disables log redaction
	registry *prometheus.Registry
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Out:      os.Stdout,
		registry: reg,
	}
}

func (a *App) newProvider() marketdata.Provider {
	return marketdata.NewYahoo(marketdata.YahooOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
		RateLimit: a.Config.Market.RateLimit,
	}, a.Logger)
}

func (a *App) openCache(ctx context.Context) (cache.Store, func(), error) {
	if a.Config.Cache.Backend != "redis" {
		return cache.NewMemory(time.Now), func() {}, nil
	}

	r := a.Config.Cache.Redis
	store, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Prefix:   r.Prefix,
	})
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close redis cache")
		}
	}
	return store, closer, nil
}

func (a *App) newPrices(ctx context.Context) (*fetcher.Prices, func(), error) {
	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	prices, err := fetcher.NewPrices(a.newProvider(), store, fetcher.PricesOptions{
		Timezone: a.Config.App.Timezone,
		TTL:      a.Config.Cache.TTL,
	}, a.Logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return prices, closeStore, nil
}

func (a *App) newResolver() (*credentials.Resolver, error) {
	secrets, err := credentials.LoadSecrets(a.Config.Secrets.Path)
	if err != nil {
		return nil, err
	}
	for _, v := range secrets {
		a.Redactor.Add(v)
	}
	return credentials.NewResolver(secrets, summarizer.KeyEnvVar(a.Config.LLM.Provider)), nil
}

func (a *App) newSummarizer() (*summarizer.Summarizer, error) {
	completer, err := summarizer.NewCompleter(a.Config.LLM.Provider, a.Config.LLM.BaseURL)
	if err != nil {
		return nil, err
	}
	return summarizer.New(completer, summarizer.Options{
		MaxTokens:   a.Config.LLM.MaxTokens,
		Temperature: a.Config.LLM.Temperature,
		Timeout:     a.Config.LLM.RequestTimeout,
		KeyName:     summarizer.KeyEnvVar(a.Config.LLM.Provider),
	}, a.Logger), nil
}

// newService wires the orchestration controller from configuration.
func (a *App) newService(ctx context.Context) (*service.Service, func(), error) {
	prices, closePrices, err := a.newPrices(ctx)
	if err != nil {
		return nil, nil, err
	}

	resolver, err := a.newResolver()
	if err != nil {
		closePrices()
		return nil, nil, err
	}

	sum, err := a.newSummarizer()
	if err != nil {
		closePrices()
		return nil, nil, err
	}

	news := fetcher.NewNews(fetcher.NewsOptions{
		BaseURL:   a.Config.News.BaseURL,
		Timeout:   a.Config.News.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)

	sym := a.Config.Market.Symbols
	svc := service.New(prices, news, sum, resolver, metrics.New(a.registry), service.Options{
		Symbols:      service.Symbols{ES: sym.ES, NQ: sym.NQ, VIX: sym.VIX, DXY: sym.DXY, TNX: sym.TNX},
		Model:        a.Config.LLM.Model,
		NewsQuery:    a.Config.News.Query,
		MaxHeadlines: a.Config.News.MaxHeadlines,
		Location:     a.Config.Location(),
		Redact:       a.Redactor.Add,
	}, a.Logger)

	return svc, closePrices, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// GenerateOptions configure a single CLI-triggered run.
type GenerateOptions struct {
	LLMKey      string
	NewsKey     string
	Model       string
	ShowContext bool
	JSON        bool
}

// LevelsOptions configure the levels command.
type LevelsOptions struct {
	JSON bool
}

// WatchOptions configure scheduled generation.
type WatchOptions struct {
	RunOnStart  bool
	WithContext bool
}

// ExportOptions hold parameters for exporting overnight bars.
type ExportOptions struct {
	Symbol    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

var errNoOutput = errors.New("at least one of --csv or --png must be provided")
