// Package alerts produces out-of-range alerts and the per-metric highlight
// flags derived from them.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// Source names where a report came from.
type Source string

const (
	SourceFeed     Source = "feed"
	SourceComputed Source = "computed"
)

// Flags marks the metrics that have at least one active alert.
type Flags struct {
	Temperature bool `json:"temperature"`
	PH          bool `json:"ph"`
	TDS         bool `json:"tds"`
	EC          bool `json:"ec"`
}

// Set raises the flag for m.
func (f *Flags) Set(m types.Metric) {
	switch m {
	case types.MetricTemperature:
		f.Temperature = true
	case types.MetricPH:
		f.PH = true
	case types.MetricTDS:
		f.TDS = true
	case types.MetricEC:
		f.EC = true
	}
}

// Has reports whether the flag for m is raised.
func (f Flags) Has(m types.Metric) bool {
	switch m {
	case types.MetricTemperature:
		return f.Temperature
	case types.MetricPH:
		return f.PH
	case types.MetricTDS:
		return f.TDS
	case types.MetricEC:
		return f.EC
	}
	return false
}

// Report is a set of alerts plus the flags computed from them.
type Report struct {
	Alerts []string `json:"alerts"`
	Flags  Flags    `json:"highlights"`
	Source Source   `json:"source"`
	// Degraded is set when the feed failed and the report was computed
	// locally instead.
	Degraded bool  `json:"degraded"`
	FeedErr  error `json:"-"`
}

// Generator produces an alert report for a plant's series. Feed-backed and
// threshold-based generation share this interface so either can be swapped
// without touching callers.
type Generator interface {
	Generate(ctx context.Context, entries []types.Entry) (Report, error)
}

// Feed supplies free-text alert messages from an external monitor.
type Feed interface {
	FetchAlerts(ctx context.Context) ([]string, error)
}

// FeedGenerator forwards an external alert list and classifies each message
// by keyword.
type FeedGenerator struct {
	Feed    Feed
	Variant types.Variant
}

func (g *FeedGenerator) Generate(ctx context.Context, _ []types.Entry) (Report, error) {
	messages, err := g.Feed.FetchAlerts(ctx)
	if err != nil {
		return Report{}, err
	}
	if messages == nil {
		messages = []string{}
	}
	return Report{
		Alerts: messages,
		Flags:  Classify(messages, g.Variant),
		Source: SourceFeed,
	}, nil
}

var ecWord = regexp.MustCompile(`(?i)\bec\b`)

// Classify derives flags from free-text messages. Matching is a
// case-insensitive substring test on "temperature", "ph" and "tds"; EC is
// only recognised as a whole word, and only for the journal variant.
func Classify(messages []string, v types.Variant) Flags {
	var f Flags
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "temperature") {
			f.Temperature = true
		}
		if strings.Contains(lower, "ph") {
			f.PH = true
		}
		if strings.Contains(lower, "tds") {
			f.TDS = true
		}
		if v == types.VariantJournal && ecWord.MatchString(msg) {
			f.EC = true
		}
	}
	return f
}

// ThresholdGenerator checks every entry against a fixed plant profile.
type ThresholdGenerator struct {
	Profile types.PlantProfile
	Variant types.Variant
}

// Generate emits one alert per out-of-range reading across the whole series,
// in entry order. Duplicates are kept.
func (g *ThresholdGenerator) Generate(_ context.Context, entries []types.Entry) (Report, error) {
	report := Report{Alerts: []string{}, Source: SourceComputed}
	metrics := g.Variant.Metrics()

	for _, e := range entries {
		for _, m := range metrics {
			r, ok := g.Profile.Range(m)
			if !ok {
				continue
			}
			v := e.Value(m)
			if r.Contains(v) {
				continue
			}
			report.Flags.Set(m)
			report.Alerts = append(report.Alerts, Message(m, e.Timestamp, v))
		}
	}
	return report, nil
}

// Message formats an out-of-range alert, e.g.
// "pH out of range at 2025-05-01 10:00:00: 5.0".
func Message(m types.Metric, timestamp string, value float64) string {
	return fmt.Sprintf("%s out of range at %s: %s%s", m.Label(), timestamp, formatValue(value), m.Unit())
}

// formatValue prints at least one decimal place so whole numbers read as
// readings ("5.0") rather than counts.
func formatValue(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Observer is told about every evaluation. It may be nil.
type Observer interface {
	FeedFailed(feed string)
	AlertsEvaluated(source Source, count int)
}

// Engine prefers the feed generator and falls back to threshold evaluation
// when the feed cannot be read.
type Engine struct {
	primary  Generator
	fallback Generator
	observer Observer
	logger   *zap.SugaredLogger
}

// NewEngine builds an engine. A nil primary means alerts are always computed.
func NewEngine(primary, fallback Generator, observer Observer, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		primary:  primary,
		fallback: fallback,
		observer: observer,
		logger:   logger.Named("alerts"),
	}
}

// ErrNoGenerator is returned when neither generator is configured.
var ErrNoGenerator = errors.New("no alert generator configured")

// Evaluate produces the current report for the monitored plant's entries.
// A failing feed is not an error for the caller: the fallback report is
// returned with Degraded set and FeedErr holding the cause.
func (e *Engine) Evaluate(ctx context.Context, entries []types.Entry) (Report, error) {
	if e.primary != nil {
		report, err := e.primary.Generate(ctx, entries)
		if err == nil {
			e.evaluated(report)
			return report, nil
		}

		e.logger.Warnw("alert feed unavailable, computing alerts from readings", "error", err)
		if e.observer != nil {
			e.observer.FeedFailed("alerts")
		}
		if e.fallback == nil {
			return Report{}, err
		}

		report, ferr := e.fallback.Generate(ctx, entries)
		if ferr != nil {
			return Report{}, fmt.Errorf("fallback alert generation failed: %w", ferr)
		}
		report.Degraded = true
		report.FeedErr = err
		e.evaluated(report)
		return report, nil
	}

	if e.fallback == nil {
		return Report{}, ErrNoGenerator
	}
	report, err := e.fallback.Generate(ctx, entries)
	if err != nil {
		return Report{}, err
	}
	e.evaluated(report)
	return report, nil
}

func (e *Engine) evaluated(r Report) {
	e.logger.Debugw("alerts evaluated", "source", r.Source, "count", len(r.Alerts), "degraded", r.Degraded)
	if e.observer != nil {
		e.observer.AlertsEvaluated(r.Source, len(r.Alerts))
	}
}
