package restserver

import (
	"github.com/chrissnell/hydromonitor/internal/alerts"
	"github.com/chrissnell/hydromonitor/internal/chart"
	"github.com/chrissnell/hydromonitor/internal/trend"
	"github.com/chrissnell/hydromonitor/internal/types"
)

// PlantsResponse lists the static plant table.
type PlantsResponse struct {
	Variant types.Variant        `json:"variant"`
	Metrics []types.Metric       `json:"metrics"`
	Plants  []types.PlantProfile `json:"plants"`
}

// EntriesResponse is one plant's series in insertion order.
type EntriesResponse struct {
	Plant   types.Plant   `json:"plant"`
	Entries []types.Entry `json:"entries"`
}

// RecentResponse lists entries across all plants, newest first.
type RecentResponse struct {
	Entries []types.PlantEntry `json:"entries"`
}

// AlertsResponse is the current alert report. FeedError is set when the
// report was computed locally because the feed could not be read.
type AlertsResponse struct {
	Alerts     []string      `json:"alerts"`
	Highlights alerts.Flags  `json:"highlights"`
	Source     alerts.Source `json:"source"`
	Degraded   bool          `json:"degraded"`
	FeedError  string        `json:"feedError,omitempty"`
}

func newAlertsResponse(r alerts.Report) AlertsResponse {
	resp := AlertsResponse{
		Alerts:     r.Alerts,
		Highlights: r.Flags,
		Source:     r.Source,
		Degraded:   r.Degraded,
	}
	if resp.Alerts == nil {
		resp.Alerts = []string{}
	}
	if r.FeedErr != nil {
		resp.FeedError = r.FeedErr.Error()
	}
	return resp
}

// TrendResponse is a trend result with the slope as shown to operators.
type TrendResponse struct {
	Metric      types.Metric `json:"metric"`
	Days        int          `json:"days"`
	Trend       string       `json:"trend"`
	Slope       float64      `json:"slope"`
	SlopeText   string       `json:"slopeText"`
	RangeStatus string       `json:"rangeStatus"`
	Samples     int          `json:"samples"`
}

func newTrendResponse(r trend.Result) TrendResponse {
	return TrendResponse{
		Metric:      r.Metric,
		Days:        r.Days,
		Trend:       r.Trend,
		Slope:       r.Slope,
		SlopeText:   r.SlopeText(),
		RangeStatus: r.RangeStatus,
		Samples:     r.Samples,
	}
}

// ChartResponse carries the projected rows plus the series keys, one per
// plant present, so a chart can draw a line for each.
type ChartResponse struct {
	Metric types.Metric `json:"metric"`
	Series []string     `json:"series"`
	Rows   []chart.Row  `json:"rows"`
}

func newChartResponse(m types.Metric, rows []chart.Row) ChartResponse {
	var seen [types.PlantCount]bool
	series := []string{}
	for _, r := range rows {
		if r.Plant.Valid() && !seen[r.Plant.Index()] {
			seen[r.Plant.Index()] = true
			series = append(series, r.Plant.String())
		}
	}
	if rows == nil {
		rows = []chart.Row{}
	}
	return ChartResponse{Metric: m, Series: series, Rows: rows}
}
