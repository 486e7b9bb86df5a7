// Package trend summarizes how a metric moved over a trailing window of days.
package trend

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// DefaultDays is the lookback window used when none is given.
const DefaultDays = 7

// noiseBand is the slope magnitude that must be exceeded to report a trend.
const noiseBand = 0.1

const (
	Increasing       = "Increasing"
	Decreasing       = "Decreasing"
	Stable           = "Stable"
	InsufficientData = "Insufficient data"
)

// ErrUnsupportedMetric is returned for a metric the variant does not track.
var ErrUnsupportedMetric = errors.New("metric not tracked by this variant")

// Result is the outcome of one analysis.
type Result struct {
	Metric      types.Metric `json:"metric"`
	Days        int          `json:"days"`
	Trend       string       `json:"trend"`
	Slope       float64      `json:"slope"`
	RangeStatus string       `json:"rangeStatus"`
	Samples     int          `json:"samples"`
}

// SlopeText is the slope rounded to two decimals, as shown to operators.
func (r Result) SlopeText() string {
	return fmt.Sprintf("%.2f", r.Slope)
}

// Analyzer runs trend analysis for one variant.
type Analyzer struct {
	Variant types.Variant
	// Now anchors the lookback window. Defaults to time.Now.
	Now func() time.Time
}

// Analyze looks at every entry, across all plants, dated on or after
// now minus days. Windows shorter than one day are widened to one.
//
// The series is split into halves of ceil(n/2) and the remaining tail from
// index floor(n/2), so with an odd count the middle sample is averaged into
// both. The range status compares the mean of the whole window, pooled over
// all plants, against each plant's own optimal range.
func (a *Analyzer) Analyze(entries []types.PlantEntry, m types.Metric, days int) (Result, error) {
	if !a.Variant.Tracks(m) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
	}
	if days < 1 {
		days = 1
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	result := Result{Metric: m, Days: days}

	window := inWindow(entries, now().AddDate(0, 0, -days))
	result.Samples = len(window)
	if len(window) < 2 {
		result.Trend = InsufficientData
		return result, nil
	}

	values := make([]float64, len(window))
	for i, w := range window {
		values[i] = w.Value(m)
	}

	n := len(values)
	first := values[:(n+1)/2]
	second := values[n/2:]
	result.Slope = stat.Mean(second, nil) - stat.Mean(first, nil)
	result.Trend = Classify(result.Slope)
	result.RangeStatus = rangeStatus(window, m, stat.Mean(values, nil))

	return result, nil
}

// Classify maps a slope onto a trend label. The noise band is open, so a
// slope of exactly ±0.1 is Stable.
func Classify(slope float64) string {
	switch {
	case slope > noiseBand:
		return Increasing
	case slope < -noiseBand:
		return Decreasing
	}
	return Stable
}

type dated struct {
	types.PlantEntry
	day time.Time
}

// inWindow keeps entries whose date falls on or after cutoff, sorted by date
// with ties in input order. Entries without a parseable date are ignored.
func inWindow(entries []types.PlantEntry, cutoff time.Time) []dated {
	var out []dated
	for _, e := range entries {
		day, ok := e.Day()
		if !ok || day.Before(cutoff) {
			continue
		}
		out = append(out, dated{PlantEntry: e, day: day})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].day.Before(out[j].day)
	})
	return out
}

func rangeStatus(window []dated, m types.Metric, mean float64) string {
	var (
		b    strings.Builder
		seen [types.PlantCount]bool
	)
	for _, w := range window {
		if !w.Plant.Valid() || seen[w.Plant.Index()] {
			continue
		}
		seen[w.Plant.Index()] = true

		profile, _ := types.Profile(w.Plant)
		r, ok := profile.Range(m)
		if !ok {
			continue
		}

		verdict := "Within"
		switch {
		case mean < r.Min:
			verdict = "Below"
		case mean > r.Max:
			verdict = "Above"
		case math.IsNaN(mean):
			continue
		}
		fmt.Fprintf(&b, "%s: %s optimal (%s). ", w.Plant, verdict, r)
	}
	return b.String()
}
