package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"premarket-bias/internal/cache"
	"premarket-bias/internal/marketdata"
)

type fakeProvider struct {
	mu          sync.Mutex
	intraday    []marketdata.Bar
	daily       []marketdata.Bar
	intradayErr error
	dailyErr    error
	calls       int
	gate        chan struct{}
}

func (f *fakeProvider) Bars(ctx context.Context, symbol string, start, end time.Time, interval marketdata.Interval) ([]marketdata.Bar, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}

	if interval == marketdata.Interval1d {
		return f.daily, f.dailyErr
	}
	return f.intraday, f.intradayErr
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("US/Eastern")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

func bar(t time.Time, high, low, closePx float64) marketdata.Bar {
	return marketdata.Bar{Time: t, Open: closePx, High: high, Low: low, Close: closePx}
}

func newTestPrices(t *testing.T, provider marketdata.Provider, clock *testClock) *Prices {
	t.Helper()
	p, err := NewPrices(provider, cache.NewMemory(clock.Now), PricesOptions{Timezone: "US/Eastern", Now: clock.Now}, zerolog.Nop())
	if err != nil {
		t.Fatalf("构造 Prices 失败: %v", err)
	}
	return p
}

func overnightBars(loc *time.Location) []marketdata.Bar {
	return []marketdata.Bar{
		bar(time.Date(2026, 10, 18, 17, 0, 0, 0, loc), 4600, 4400, 4495), // before the window
		bar(time.Date(2026, 10, 18, 19, 0, 0, 0, loc), 4500, 4490, 4498),
		bar(time.Date(2026, 10, 19, 1, 0, 0, 0, loc), 4510, 4480, 4502),
		bar(time.Date(2026, 10, 19, 7, 55, 0, 0, loc), 4495, 4485, 4505),
		bar(time.Date(2026, 10, 19, 9, 45, 0, 0, loc), 4700, 4300, 4507), // after the window
	}
}

func TestPricesOvernightStats(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 10, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: overnightBars(loc),
		daily:    []marketdata.Bar{bar(time.Date(2026, 10, 16, 0, 0, 0, 0, loc), 4495, 4470, 4490)},
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "ES=F")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if !stats.Available {
		t.Fatal("应返回完整统计")
	}
	if stats.High.String() != "4510" || stats.Low.String() != "4480" {
		t.Fatalf("隔夜高低点应只取窗口内 bar: high=%s low=%s", stats.High, stats.Low)
	}
	if stats.Last.String() != "4507" {
		t.Fatalf("last 应取完整序列最后一根 close, 实际 %s", stats.Last)
	}
	if stats.PrevClose.String() != "4490" {
		t.Fatalf("prev_close 不正确: %s", stats.PrevClose)
	}
	// (4507-4490)/4490*100 = 0.3786...
	if stats.PctChange.String() != "0.38" {
		t.Fatalf("pct_change 不正确: %s", stats.PctChange)
	}
}

func TestPricesRoundsToTwoDecimals(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: []marketdata.Bar{
			bar(time.Date(2026, 10, 19, 2, 0, 0, 0, loc), 18.123456, 17.987654, 18.005),
		},
		daily: []marketdata.Bar{bar(time.Date(2026, 10, 16, 0, 0, 0, 0, loc), 18, 17, 17.5)},
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "^VIX")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if stats.High.String() != "18.12" || stats.Low.String() != "17.99" {
		t.Fatalf("应保留两位小数: high=%s low=%s", stats.High, stats.Low)
	}
	if stats.PrevClose.String() != "17.5" {
		t.Fatalf("prev_close 不正确: %s", stats.PrevClose)
	}
	// (18.005-17.5)/17.5*100 = 2.8857...
	if stats.PctChange.String() != "2.89" {
		t.Fatalf("pct_change 不正确: %s", stats.PctChange)
	}
}

func TestPricesEmptyIntradayIsUnavailable(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, loc)}
	provider := &fakeProvider{}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "ES=F")
	if err != nil {
		t.Fatalf("空序列不应报错: %v", err)
	}
	if stats.Available {
		t.Fatal("空序列应返回 unavailable")
	}
	if !stats.High.IsZero() || !stats.Low.IsZero() || !stats.Last.IsZero() || !stats.PrevClose.IsZero() || !stats.PctChange.IsZero() {
		t.Fatalf("unavailable 不应有部分字段: %+v", stats)
	}
	if provider.callCount() != 1 {
		t.Fatalf("空 intraday 后不应再请求日线, 实际调用 %d 次", provider.callCount())
	}
}

func TestPricesEmptyDailyFallsBackToLast(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: []marketdata.Bar{
			bar(time.Date(2026, 10, 18, 20, 0, 0, 0, loc), 4500, 4490, 4495),
			bar(time.Date(2026, 10, 19, 3, 0, 0, 0, loc), 4510, 4480, 4505),
			bar(time.Date(2026, 10, 19, 6, 0, 0, 0, loc), 4495, 4485, 4492),
		},
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "NQ=F")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if stats.High.String() != "4510" {
		t.Fatalf("high 应为 4510, 实际 %s", stats.High)
	}
	if !stats.PrevClose.Equal(stats.Last) {
		t.Fatalf("日线为空时 prev_close 应等于 last: %s vs %s", stats.PrevClose, stats.Last)
	}
	if !stats.PctChange.IsZero() {
		t.Fatalf("pct_change 应为 0, 实际 %s", stats.PctChange)
	}
}

func TestPricesDailyErrorFallsBackToLast(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: []marketdata.Bar{bar(time.Date(2026, 10, 19, 3, 0, 0, 0, loc), 4510, 4480, 4505)},
		dailyErr: errors.New("boom"),
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "ES=F")
	if err != nil {
		t.Fatalf("日线失败不应中断: %v", err)
	}
	if !stats.Available || !stats.PctChange.IsZero() {
		t.Fatalf("应退化为 prev_close=last: %+v", stats)
	}
}

func TestPricesZeroPrevCloseYieldsZeroPct(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: []marketdata.Bar{bar(time.Date(2026, 10, 19, 3, 0, 0, 0, loc), 1, 0, 0.5)},
		daily:    []marketdata.Bar{bar(time.Date(2026, 10, 16, 0, 0, 0, 0, loc), 0, 0, 0)},
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "X")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if !stats.PctChange.IsZero() {
		t.Fatalf("prev_close 为 0 时 pct_change 应为 0, 实际 %s", stats.PctChange)
	}
}

func TestPricesNoBarsInWindowIsUnavailable(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 14, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: []marketdata.Bar{bar(time.Date(2026, 10, 19, 12, 0, 0, 0, loc), 4510, 4480, 4505)},
	}

	stats, err := newTestPrices(t, provider, clock).Fetch(context.Background(), "ES=F")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if stats.Available {
		t.Fatal("窗口内无数据时应返回 unavailable")
	}
}

func TestPricesCachesWithinTTL(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: overnightBars(loc)[:4],
		daily:    []marketdata.Bar{bar(time.Date(2026, 10, 16, 0, 0, 0, 0, loc), 4495, 4470, 4490)},
	}
	p := newTestPrices(t, provider, clock)
	ctx := context.Background()

	first, err := p.Fetch(ctx, "ES=F")
	if err != nil {
		t.Fatalf("首次请求失败: %v", err)
	}
	afterFirst := provider.callCount()

	clock.Advance(4 * time.Minute)
	second, err := p.Fetch(ctx, "ES=F")
	if err != nil {
		t.Fatalf("第二次请求失败: %v", err)
	}
	if provider.callCount() != afterFirst {
		t.Fatalf("TTL 内应命中缓存, 调用次数 %d -> %d", afterFirst, provider.callCount())
	}
	if !second.Last.Equal(first.Last) || !second.High.Equal(first.High) {
		t.Fatalf("缓存结果应与首次一致: %+v vs %+v", first, second)
	}

	clock.Advance(time.Minute)
	if _, err := p.Fetch(ctx, "ES=F"); err != nil {
		t.Fatalf("过期后请求失败: %v", err)
	}
	if provider.callCount() != afterFirst*2 {
		t.Fatalf("过期后应重新请求, 实际调用 %d 次", provider.callCount())
	}
}

func TestPricesConcurrentFetchSharesOneRoundTrip(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{
		intraday: overnightBars(loc)[:4],
		gate:     make(chan struct{}),
	}
	p := newTestPrices(t, provider, clock)

	var wg sync.WaitGroup
	results := make([]PriceStats, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Fetch(context.Background(), "ES=F")
		}(i)
	}
	close(provider.gate)
	wg.Wait()

	if provider.callCount() != 2 {
		t.Fatalf("并发请求同一 symbol 应只触发一次 intraday+daily, 实际 %d 次", provider.callCount())
	}
	for i, r := range results {
		if !r.Available || r.High.String() != "4510" {
			t.Fatalf("结果 %d 不正确: %+v", i, r)
		}
	}
}

func TestPricesProviderErrorNotCached(t *testing.T) {
	loc := eastern(t)
	clock := &testClock{t: time.Date(2026, 10, 19, 8, 0, 0, 0, loc)}
	provider := &fakeProvider{intradayErr: errors.New("connection reset")}
	p := newTestPrices(t, provider, clock)

	stats, err := p.Fetch(context.Background(), "ES=F")
	if err == nil {
		t.Fatal("provider 错误应返回 error")
	}
	if stats.Available || stats.Symbol != "ES=F" {
		t.Fatalf("错误时应返回 unavailable: %+v", stats)
	}

	_, _ = p.Fetch(context.Background(), "ES=F")
	if provider.callCount() != 2 {
		t.Fatalf("错误结果不应缓存, 实际调用 %d 次", provider.callCount())
	}
}

func TestOvernightWindow(t *testing.T) {
	loc := eastern(t)
	start, end := OvernightWindow(time.Date(2026, 11, 2, 7, 0, 0, 0, loc), loc)

	if !start.Equal(time.Date(2026, 11, 1, 18, 0, 0, 0, loc)) {
		t.Fatalf("窗口起点不正确: %s", start)
	}
	if !end.Equal(time.Date(2026, 11, 2, 9, 30, 0, 0, loc)) {
		t.Fatalf("窗口终点不正确: %s", end)
	}
}
