// Package briefing assembles the text context handed to the summarizer.
package briefing

import (
	"fmt"
	"strings"
	"time"

	"premarket-bias/internal/fetcher"
)

const (
	MissingMarker = "n/a"
	NoHeadlines   = "(no headlines available)"

	HeaderFutures   = "Overnight Futures:"
	HeaderMacro     = "Macro:"
	HeaderHeadlines = "Top Headlines:"

	Instruction = "Give a concise pre-market bias (bullish / bearish / neutral) for ES and NQ and key price levels to watch."

	dateLayout = "2006-01-02 15:04 MST"
	bullet     = "  • "
)

// Snapshot carries the five instruments a briefing reports on.
type Snapshot struct {
	ES  fetcher.PriceStats
	NQ  fetcher.PriceStats
	VIX fetcher.PriceStats
	DXY fetcher.PriceStats
	TNX fetcher.PriceStats
}

// Context is the composed, immutable briefing text.
type Context struct {
	GeneratedAt time.Time
	text        string
}

func (c Context) String() string {
	return c.text
}

// Lines splits the context into its lines.
func (c Context) Lines() []string {
	return strings.Split(c.text, "\n")
}

// Compose renders the briefing. Absent values print as MissingMarker so the
// document keeps the same labelled layout whatever data is missing.
func Compose(ts time.Time, snap Snapshot, headlines []fetcher.Headline) Context {
	lines := []string{
		"Date: " + ts.Format(dateLayout),
		"",
		HeaderFutures,
		bullet + rangeLine("ES", snap.ES),
		bullet + rangeLine("NQ", snap.NQ),
		"",
		HeaderMacro,
		bullet + levelLine("VIX", snap.VIX),
		bullet + levelLine("DXY", snap.DXY),
		bullet + levelLine("10-yr yield", snap.TNX),
		"",
		HeaderHeadlines,
	}

	if len(headlines) == 0 {
		lines = append(lines, bullet+NoHeadlines)
	}
	for _, h := range headlines {
		lines = append(lines, bullet+headlineLine(h))
	}

	lines = append(lines, "", Instruction)

	return Context{GeneratedAt: ts, text: strings.Join(lines, "\n")}
}

func rangeLine(label string, s fetcher.PriceStats) string {
	return fmt.Sprintf("%s high %s / low %s / last %s (%s%%)",
		label, value(s, s.High.String()), value(s, s.Low.String()), value(s, s.Last.String()), value(s, s.PctChange.String()))
}

func levelLine(label string, s fetcher.PriceStats) string {
	return fmt.Sprintf("%s %s (%s%%)", label, value(s, s.Last.String()), value(s, s.PctChange.String()))
}

func value(s fetcher.PriceStats, v string) string {
	if !s.Available {
		return MissingMarker
	}
	return v
}

func headlineLine(h fetcher.Headline) string {
	return orMissing(h.Title) + " — " + orMissing(h.Source)
}

func orMissing(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return MissingMarker
	}
	return s
}
