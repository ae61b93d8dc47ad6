package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"premarket-bias/internal/briefing"
	"premarket-bias/internal/credentials"
	"premarket-bias/internal/fetcher"
	"premarket-bias/internal/metrics"
	"premarket-bias/internal/summarizer"
)

// IdleMessage is shown by every surface before a run is triggered.
const IdleMessage = "Enter your API keys (or rely on secrets.toml) and click Run Generator."

// State of the controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Outcome of one component inside a run.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
	OutcomeSkipped     Outcome = "skipped"
)

// Symbols maps briefing instruments to provider tickers.
type Symbols struct {
	ES  string
	NQ  string
	VIX string
	DXY string
	TNX string
}

// Summarizer produces the narrative for a composed briefing.
type Summarizer interface {
	Summarize(ctx context.Context, briefing, model, apiKey string) summarizer.Narrative
}

// Options configure the controller.
type Options struct {
	Symbols      Symbols
	Model        string
	NewsQuery    string
	MaxHeadlines int
	Location     *time.Location
	Now          func() time.Time
	// Redact registers resolved credential values with the log sink.
	Redact func(values ...string)
}

// Result is everything a surface needs to render one run.
type Result struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Model       string                  `json:"model"`
	Narrative   summarizer.Narrative    `json:"narrative"`
	Context     briefing.Context        `json:"-"`
	Snapshot    briefing.Snapshot       `json:"snapshot"`
	Headlines   []fetcher.Headline      `json:"headlines"`
	Outcomes    map[string]Outcome      `json:"outcomes"`
	Credentials credentials.Credentials `json:"-"`
}

// Service sequences fetch, compose and summarize for a single trigger.
type Service struct {
	prices     fetcher.PriceStatsFetcher
	news       fetcher.HeadlineFetcher
	summarizer Summarizer
	resolver   *credentials.Resolver
	metrics    *metrics.Recorder
	opts       Options
	logger     zerolog.Logger

	runMu sync.Mutex
	state atomic.Int32
}

// New constructs the orchestration controller. rec may be nil.
func New(prices fetcher.PriceStatsFetcher, news fetcher.HeadlineFetcher, sum Summarizer, resolver *credentials.Resolver, rec *metrics.Recorder, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxHeadlines <= 0 {
		opts.MaxHeadlines = fetcher.DefaultMaxHeadlines
	}
	if opts.NewsQuery == "" {
		opts.NewsQuery = fetcher.DefaultNewsQuery
	}
	if resolver == nil {
		resolver = credentials.NewResolver(nil, summarizer.KeyEnvVar(""))
	}

	return &Service{
		prices:     prices,
		news:       news,
		summarizer: sum,
		resolver:   resolver,
		metrics:    rec,
		opts:       opts,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// State reports whether a run is in progress.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Generate runs the whole sequence from scratch. Runs are serialised; every
// failure is folded into the returned Result.
func (s *Service) Generate(ctx context.Context, trigger string, in credentials.Input, model string) Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateIdle))

	start := time.Now()
	if model == "" {
		model = s.opts.Model
	}

	creds := s.resolver.Resolve(in)
	if s.opts.Redact != nil {
		s.opts.Redact(creds.LLMKey, creds.NewsKey)
	}
	res := Result{
		RunID:       uuid.NewString(),
		Model:       model,
		Outcomes:    make(map[string]Outcome, 7),
		Credentials: creds,
	}
	logger := s.logger.With().Str("run_id", res.RunID).Str("trigger", trigger).Logger()
	logger.Info().Object("credentials", creds).Str("model", model).Msg("briefing run started")

	snap, priceOutcomes, headlines, newsOutcome := s.collect(ctx, logger, creds)
	for k, v := range priceOutcomes {
		res.Outcomes[k] = v
	}
	res.Outcomes["news"] = newsOutcome
	res.Snapshot = snap
	res.Headlines = headlines

	res.GeneratedAt = s.opts.Now().In(s.opts.Location)
	res.Context = briefing.Compose(res.GeneratedAt, snap, res.Headlines)

	res.Narrative = s.summarizer.Summarize(ctx, res.Context.String(), model, creds.LLMKey)
	switch res.Narrative.Reason {
	case summarizer.ReasonNone:
		res.Outcomes["llm"] = OutcomeOK
	case summarizer.ReasonMissingKey:
		res.Outcomes["llm"] = OutcomeSkipped
	default:
		res.Outcomes["llm"] = OutcomeError
	}

	for component, outcome := range res.Outcomes {
		s.metrics.RecordOutcome(component, string(outcome))
	}
	result := "ok"
	if res.Narrative.Failed() {
		result = string(res.Narrative.Reason)
	}
	s.metrics.RecordRun(trigger, result, time.Since(start))

	logger.Info().Dur("took", time.Since(start)).Str("result", result).Msg("briefing run finished")
	return res
}

// Snapshot fetches the five instruments without news or summarisation.
func (s *Service) Snapshot(ctx context.Context) (briefing.Snapshot, map[string]Outcome) {
	return s.fetchPrices(ctx, s.logger)
}

// collect runs the price fan-out and the optional news call concurrently.
func (s *Service) collect(ctx context.Context, logger zerolog.Logger, creds credentials.Credentials) (briefing.Snapshot, map[string]Outcome, []fetcher.Headline, Outcome) {
	var (
		g           errgroup.Group
		snap        briefing.Snapshot
		priceResult map[string]Outcome
		headlines   = []fetcher.Headline{}
		newsOutcome = OutcomeSkipped
	)

	g.Go(func() error {
		snap, priceResult = s.fetchPrices(ctx, logger)
		return nil
	})

	if creds.HasNewsKey() && s.news != nil {
		g.Go(func() error {
			items, err := s.news.Fetch(ctx, creds.NewsKey, s.opts.NewsQuery, s.opts.MaxHeadlines)
			if err != nil {
				logger.Warn().Err(err).Msg("headlines unavailable")
				newsOutcome = OutcomeError
				return nil
			}
			headlines = items
			newsOutcome = OutcomeOK
			return nil
		})
	}

	_ = g.Wait()
	return snap, priceResult, headlines, newsOutcome
}

func (s *Service) fetchPrices(ctx context.Context, logger zerolog.Logger) (briefing.Snapshot, map[string]Outcome) {
	type slot struct {
		label  string
		symbol string
		dst    *fetcher.PriceStats
	}

	var snap briefing.Snapshot
	slots := []slot{
		{"ES", s.opts.Symbols.ES, &snap.ES},
		{"NQ", s.opts.Symbols.NQ, &snap.NQ},
		{"VIX", s.opts.Symbols.VIX, &snap.VIX},
		{"DXY", s.opts.Symbols.DXY, &snap.DXY},
		{"TNX", s.opts.Symbols.TNX, &snap.TNX},
	}

	results := make([]Outcome, len(slots))
	var g errgroup.Group
	for i, sl := range slots {
		g.Go(func() error {
			stats, err := s.prices.Fetch(ctx, sl.symbol)
			if err != nil {
				stats = fetcher.Unavailable(sl.symbol)
			}
			*sl.dst = stats
			switch {
			case err != nil:
				logger.Warn().Err(err).Str("symbol", sl.symbol).Msg("price stats unavailable")
				results[i] = OutcomeError
			case !stats.Available:
				logger.Warn().Str("symbol", sl.symbol).Msg("no overnight data")
				results[i] = OutcomeUnavailable
			default:
				results[i] = OutcomeOK
			}
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make(map[string]Outcome, len(slots))
	for i, sl := range slots {
		outcomes["price:"+sl.label] = results[i]
	}
	return snap, outcomes
}
