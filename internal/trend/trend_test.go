package trend

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/hydromonitor/internal/types"
)

var now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func analyzer() *Analyzer {
	return &Analyzer{Variant: types.VariantSensor, Now: func() time.Time { return now }}
}

func phEntry(p types.Plant, date string, ph float64) types.PlantEntry {
	return types.PlantEntry{Plant: p, Entry: types.Entry{Date: date, Timestamp: date + " 09:00:00", PH: ph, TDS: 1000, Temperature: 22}}
}

func TestAnalyzeIncreasingExample(t *testing.T) {
	entries := []types.PlantEntry{
		phEntry(types.Chili, "2025-05-15", 6.0),
		phEntry(types.Chili, "2025-05-16", 6.0),
		phEntry(types.Chili, "2025-05-17", 7.0),
		phEntry(types.Chili, "2025-05-18", 7.0),
	}

	r, err := analyzer().Analyze(entries, types.MetricPH, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Trend != Increasing {
		t.Errorf("expected %s, got %s", Increasing, r.Trend)
	}
	if math.Abs(r.Slope-1.0) > 1e-9 {
		t.Errorf("expected slope 1.0, got %v", r.Slope)
	}
	if r.SlopeText() != "1.00" {
		t.Errorf("expected slope text 1.00, got %s", r.SlopeText())
	}
	if r.RangeStatus != "Chili: Within optimal (6.0-6.8). " {
		t.Errorf("unexpected range status %q", r.RangeStatus)
	}
	if r.Samples != 4 {
		t.Errorf("expected 4 samples, got %d", r.Samples)
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		entries []types.PlantEntry
	}{
		{name: "no entries"},
		{
			name:    "one entry",
			entries: []types.PlantEntry{phEntry(types.Chili, "2025-05-19", 9.0)},
		},
		{
			name: "second entry outside window",
			entries: []types.PlantEntry{
				phEntry(types.Chili, "2025-05-19", 9.0),
				phEntry(types.Chili, "2025-04-01", 3.0),
			},
		},
		{
			name: "unparseable date",
			entries: []types.PlantEntry{
				phEntry(types.Chili, "2025-05-19", 9.0),
				phEntry(types.Chili, "yesterday", 3.0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := analyzer().Analyze(tt.entries, types.MetricPH, 7)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Trend != InsufficientData || r.Slope != 0 || r.RangeStatus != "" {
				t.Errorf("expected insufficient data result, got %+v", r)
			}
		})
	}
}

func TestAnalyzeOddCountOverlapsMiddle(t *testing.T) {
	entries := []types.PlantEntry{
		phEntry(types.Chili, "2025-05-19", 8.0),
		phEntry(types.Chili, "2025-05-17", 6.0),
		phEntry(types.Chili, "2025-05-18", 7.0),
	}

	r, _ := analyzer().Analyze(entries, types.MetricPH, 7)
	// Sorted: 6, 7, 8. First half {6, 7}, second half {7, 8}.
	if math.Abs(r.Slope-1.0) > 1e-9 {
		t.Errorf("expected slope 1.0, got %v", r.Slope)
	}
}

func TestClassifyThresholdEdges(t *testing.T) {
	tests := []struct {
		slope    float64
		expected string
	}{
		{0, Stable},
		{0.1, Stable},
		{-0.1, Stable},
		{0.1000001, Increasing},
		{-0.1000001, Decreasing},
		{2.5, Increasing},
	}
	for _, tt := range tests {
		if got := Classify(tt.slope); got != tt.expected {
			t.Errorf("slope %v: expected %s, got %s", tt.slope, tt.expected, got)
		}
	}
}

func TestAnalyzeSlopeExactlyAtBand(t *testing.T) {
	entries := []types.PlantEntry{
		phEntry(types.Chili, "2025-05-15", 0),
		phEntry(types.Chili, "2025-05-16", 0),
		phEntry(types.Chili, "2025-05-17", 0.1),
		phEntry(types.Chili, "2025-05-18", 0.1),
	}

	r, _ := analyzer().Analyze(entries, types.MetricPH, 7)
	if r.Trend != Stable {
		t.Errorf("slope %v should be Stable, got %s", r.Slope, r.Trend)
	}
}

func TestAnalyzePooledMeanAgainstEachPlant(t *testing.T) {
	tds := func(p types.Plant, date string, v float64) types.PlantEntry {
		e := phEntry(p, date, 6.0)
		e.TDS = v
		return e
	}
	entries := []types.PlantEntry{
		tds(types.PurpleBasil, "2025-05-18", 1000),
		tds(types.BokChoy, "2025-05-17", 1000),
		tds(types.Chili, "2025-05-19", 700),
	}

	r, err := analyzer().Analyze(entries, types.MetricTDS, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Pooled mean is 900; plants are listed by first appearance in date order.
	expected := "Bok choy: Within optimal (900-1200). " +
		"Purple basil: Above optimal (500-800). " +
		"Chili: Below optimal (1000-1750). "
	if r.RangeStatus != expected {
		t.Errorf("expected %q, got %q", expected, r.RangeStatus)
	}
	if r.Trend != Decreasing {
		t.Errorf("expected Decreasing, got %s (slope %v)", r.Trend, r.Slope)
	}
}

func TestAnalyzeSkipsInvalidPlantInRangeStatus(t *testing.T) {
	entries := []types.PlantEntry{
		phEntry(types.Plant(0), "2025-05-18", 6.2),
		phEntry(types.Plant(42), "2025-05-18", 6.2),
		phEntry(types.Chili, "2025-05-19", 6.4),
	}

	r, err := analyzer().Analyze(entries, types.MetricPH, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Samples != 3 {
		t.Errorf("expected 3 samples, got %d", r.Samples)
	}
	if r.RangeStatus != "Chili: Within optimal (6.0-6.8). " {
		t.Errorf("unexpected range status %q", r.RangeStatus)
	}
}

func TestAnalyzeWindowClampsToOneDay(t *testing.T) {
	entries := []types.PlantEntry{
		phEntry(types.Chili, "2025-05-20", 6.0),
		phEntry(types.Chili, "2025-05-20", 6.5),
		phEntry(types.Chili, "2025-05-19", 6.5),
	}

	r, _ := analyzer().Analyze(entries, types.MetricPH, 0)
	if r.Days != 1 {
		t.Errorf("expected window of 1 day, got %d", r.Days)
	}
	// Cutoff is 2025-05-19T12:00Z, so only the two entries dated the 20th count.
	if r.Samples != 2 {
		t.Errorf("expected 2 samples, got %d", r.Samples)
	}
}

func TestAnalyzeUnsupportedMetric(t *testing.T) {
	_, err := analyzer().Analyze(nil, types.MetricEC, 7)
	if !errors.Is(err, ErrUnsupportedMetric) {
		t.Errorf("expected ErrUnsupportedMetric, got %v", err)
	}
}
