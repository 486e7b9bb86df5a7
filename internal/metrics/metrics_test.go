package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/hydromonitor/internal/alerts"
	"github.com/chrissnell/hydromonitor/internal/types"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.EntriesAppended(types.ThaiBasil, 1)
	m.EntriesAppended(types.ThaiBasil, 1)
	m.ImportFinished(false, 3)
	m.ImportFinished(true, 0)
	m.FeedFailed("alerts")
	m.AlertsEvaluated(alerts.SourceComputed, 4)
	m.ObserveHTTP("/trend/{metric}", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	expected := []string{
		`hydromonitor_entries_appended_total{plant="Thai basil"} 2`,
		`hydromonitor_imports_total{result="ok"} 1`,
		`hydromonitor_imports_total{result="rejected"} 1`,
		`hydromonitor_import_rows_skipped_total 3`,
		`hydromonitor_feed_failures_total{feed="alerts"} 1`,
		`hydromonitor_active_alerts{source="computed"} 4`,
		`hydromonitor_http_request_duration_seconds_count{route="/trend/{metric}",status="200"} 1`,
	}
	for _, line := range expected {
		if !strings.Contains(out, line) {
			t.Errorf("expected exposition to contain %q", line)
		}
	}
}

func TestActiveAlertsTracksLatestSource(t *testing.T) {
	m := New()
	m.AlertsEvaluated(alerts.SourceFeed, 2)
	m.AlertsEvaluated(alerts.SourceComputed, 5)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "hydromonitor_active_alerts" {
			continue
		}
		if len(f.GetMetric()) != 1 {
			t.Fatalf("expected a single active_alerts series, got %d", len(f.GetMetric()))
		}
		if got := f.GetMetric()[0].GetGauge().GetValue(); got != 5 {
			t.Errorf("expected 5 active alerts, got %v", got)
		}
		return
	}
	t.Error("active_alerts not gathered")
}
