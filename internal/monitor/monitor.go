// Package monitor ties the measurement store to the CSV codec, the alert
// engine and the analysis functions for a single operator session.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/hydromonitor/internal/alerts"
	"github.com/chrissnell/hydromonitor/internal/chart"
	"github.com/chrissnell/hydromonitor/internal/csvcodec"
	"github.com/chrissnell/hydromonitor/internal/store"
	"github.com/chrissnell/hydromonitor/internal/trend"
	"github.com/chrissnell/hydromonitor/internal/types"
)

// SensorFeed supplies the data logger's CSV output.
type SensorFeed interface {
	FetchSensorLog(ctx context.Context) (string, error)
}

// Recorder receives store and import events. It may be nil.
type Recorder interface {
	EntriesAppended(p types.Plant, n int)
	ImportFinished(rejected bool, skipped int)
	FeedFailed(feed string)
}

// Options configures a Monitor.
type Options struct {
	Variant types.Variant
	// MonitoredPlant is the plant whose series feeds fallback alerting.
	MonitoredPlant types.Plant
	// SensorPlant receives sensor-log rows that do not name a plant.
	SensorPlant types.Plant
	// TrendDays is the default lookback window.
	TrendDays int

	AlertFeed  alerts.Feed
	SensorFeed SensorFeed
	Recorder   Recorder
	// Observer is handed to the alert engine; usually the same value as
	// Recorder.
	Observer alerts.Observer

	Now    func() time.Time
	Logger *zap.SugaredLogger
}

// ImportResult summarizes one CSV import.
type ImportResult struct {
	BatchID  string              `json:"batchId"`
	Imported int                 `json:"imported"`
	Skipped  int                 `json:"skipped"`
	PerPlant map[types.Plant]int `json:"perPlant"`
}

// Monitor is the session. All store reads and writes go through mu; feed
// requests are made without holding it and their results are applied in one
// locked step.
type Monitor struct {
	mu     sync.Mutex
	store  *store.Store
	report alerts.Report
	// refreshSeq numbers alert snapshots; reportSeq is the snapshot the
	// stored report was computed from.
	refreshSeq uint64
	reportSeq  uint64

	decoder *csvcodec.Decoder
	ids     *types.IDSource

	opts     Options
	engine   *alerts.Engine
	analyzer *trend.Analyzer
	logger   *zap.SugaredLogger
}

// New creates a monitor with an empty store.
func New(opts Options) *Monitor {
	if opts.Variant == "" {
		opts.Variant = types.VariantSensor
	}
	if !opts.MonitoredPlant.Valid() {
		opts.MonitoredPlant = types.Chili
	}
	if !opts.SensorPlant.Valid() {
		opts.SensorPlant = types.Chili
	}
	if opts.TrendDays < 1 {
		opts.TrendDays = trend.DefaultDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	ids := types.NewIDSource(opts.Now)
	profile, _ := types.Profile(opts.MonitoredPlant)

	var primary alerts.Generator
	if opts.AlertFeed != nil {
		primary = &alerts.FeedGenerator{Feed: opts.AlertFeed, Variant: opts.Variant}
	}
	fallback := &alerts.ThresholdGenerator{Profile: profile, Variant: opts.Variant}

	m := &Monitor{
		store: store.New(opts.Variant),
		decoder: csvcodec.NewDecoder(csvcodec.Options{
			Variant:     opts.Variant,
			SensorPlant: opts.SensorPlant,
			Now:         opts.Now,
			NextID:      ids.Next,
		}),
		ids:      ids,
		opts:     opts,
		engine:   alerts.NewEngine(primary, fallback, opts.Observer, opts.Logger),
		analyzer: &trend.Analyzer{Variant: opts.Variant, Now: opts.Now},
		logger:   opts.Logger.Named("monitor"),
		report:   alerts.Report{Alerts: []string{}, Source: alerts.SourceComputed},
	}
	return m
}

// Variant returns the deployment's metric set.
func (m *Monitor) Variant() types.Variant {
	return m.opts.Variant
}

// TrendDays returns the default lookback window.
func (m *Monitor) TrendDays() int {
	return m.opts.TrendDays
}

// Profiles returns the static plant table.
func (m *Monitor) Profiles() []types.PlantProfile {
	return types.Profiles()
}

// AddEntry validates a manual entry and appends it to the plant's series.
// Alerts are re-evaluated afterwards.
func (m *Monitor) AddEntry(ctx context.Context, p types.Plant, form types.EntryForm) (types.Entry, error) {
	if !p.Valid() {
		return types.Entry{}, &types.ValidationError{Field: "plant", Reason: "please select a plant"}
	}
	e, err := types.ParseForm(m.opts.Variant, form, m.ids.Next(), m.opts.Now())
	if err != nil {
		return types.Entry{}, err
	}

	m.mu.Lock()
	err = m.store.Append(p, e)
	m.mu.Unlock()
	if err != nil {
		return types.Entry{}, err
	}

	if m.opts.Recorder != nil {
		m.opts.Recorder.EntriesAppended(p, 1)
	}
	m.logger.Infow("entry added", "plant", p, "id", e.ID, "date", e.Date)

	m.RefreshAlerts(ctx)
	return e, nil
}

// ImportCSV decodes text and appends every valid row. A FormatError leaves
// the store untouched.
func (m *Monitor) ImportCSV(ctx context.Context, text string) (ImportResult, error) {
	res, err := m.importCSV(text)
	if err != nil {
		return res, err
	}
	m.RefreshAlerts(ctx)
	return res, nil
}

func (m *Monitor) importCSV(text string) (ImportResult, error) {
	batch, err := m.decoder.Decode(text)
	if err != nil {
		if m.opts.Recorder != nil {
			m.opts.Recorder.ImportFinished(true, 0)
		}
		m.logger.Warnw("CSV import rejected", "error", err)
		return ImportResult{}, err
	}

	m.mu.Lock()
	err = m.store.AppendBatch(batch.Rows)
	m.mu.Unlock()
	if err != nil {
		// Decoded rows are validated already; this only fires if the two
		// validation paths ever disagree.
		return ImportResult{}, fmt.Errorf("import batch %s: %w", batch.ID, err)
	}

	perPlant := batch.PerPlant()
	if m.opts.Recorder != nil {
		for p, n := range perPlant {
			m.opts.Recorder.EntriesAppended(p, n)
		}
		m.opts.Recorder.ImportFinished(false, batch.Skipped)
	}
	m.logger.Infow("CSV imported", "batch", batch.ID, "imported", len(batch.Rows), "skipped", batch.Skipped)

	return ImportResult{
		BatchID:  batch.ID,
		Imported: len(batch.Rows),
		Skipped:  batch.Skipped,
		PerPlant: perPlant,
	}, nil
}

// LoadSensorFeed fetches the data logger's CSV and imports it.
func (m *Monitor) LoadSensorFeed(ctx context.Context) (ImportResult, error) {
	if m.opts.SensorFeed == nil {
		return ImportResult{}, errors.New("no sensor feed configured")
	}
	text, err := m.opts.SensorFeed.FetchSensorLog(ctx)
	if err != nil {
		if m.opts.Recorder != nil {
			m.opts.Recorder.FeedFailed("sensor")
		}
		m.logger.Errorw("failed to load sensor feed", "error", err)
		return ImportResult{}, err
	}
	return m.ImportCSV(ctx, text)
}

// ExportCSV renders the whole store in the variant's CSV schema.
func (m *Monitor) ExportCSV() (string, error) {
	m.mu.Lock()
	rows := m.store.Flattened()
	m.mu.Unlock()
	return csvcodec.EncodeString(m.opts.Variant, rows)
}

// ExportFilename is the suggested name for an export made now.
func (m *Monitor) ExportFilename() string {
	return csvcodec.ExportFilename(m.opts.Now())
}

// RefreshAlerts re-evaluates alerts for the monitored plant and stores the
// report. A failing alert feed degrades to locally computed alerts. When
// refreshes overlap, the report from the newest snapshot wins regardless of
// which evaluation finishes last.
func (m *Monitor) RefreshAlerts(ctx context.Context) alerts.Report {
	m.mu.Lock()
	m.refreshSeq++
	seq := m.refreshSeq
	entries := m.store.All(m.opts.MonitoredPlant)
	m.mu.Unlock()

	report, err := m.engine.Evaluate(ctx, entries)
	if err != nil {
		m.logger.Errorw("alert evaluation failed, keeping previous report", "error", err)
		return m.Alerts()
	}

	m.mu.Lock()
	if seq < m.reportSeq {
		m.mu.Unlock()
		m.logger.Debugw("discarding superseded alert report", "snapshot", seq)
		return m.Alerts()
	}
	m.report = report
	m.reportSeq = seq
	m.mu.Unlock()
	return report
}

// Alerts returns the most recent alert report.
func (m *Monitor) Alerts() alerts.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.report
	r.Alerts = append([]string(nil), m.report.Alerts...)
	if r.Alerts == nil {
		r.Alerts = []string{}
	}
	return r
}

// Entries returns the plant's series in insertion order.
func (m *Monitor) Entries(p types.Plant) []types.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.All(p)
}

// Recent returns up to limit entries across all plants, newest first.
func (m *Monitor) Recent(limit int) []types.PlantEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Recent(limit)
}

// Trend analyzes metric over the last days days; days <= 0 uses the
// configured default.
func (m *Monitor) Trend(metric types.Metric, days int) (trend.Result, error) {
	if days <= 0 {
		days = m.opts.TrendDays
	}
	m.mu.Lock()
	entries := m.store.Flattened()
	m.mu.Unlock()
	return m.analyzer.Analyze(entries, metric, days)
}

// Chart projects the store for a multi-series chart of metric.
func (m *Monitor) Chart(metric types.Metric) ([]chart.Row, error) {
	if !m.opts.Variant.Tracks(metric) {
		return nil, fmt.Errorf("%w: %s", trend.ErrUnsupportedMetric, metric)
	}
	m.mu.Lock()
	entries := m.store.Flattened()
	m.mu.Unlock()
	return chart.Project(m.opts.Variant, entries, metric), nil
}
