package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/hydromonitor/internal/metrics"
	"github.com/chrissnell/hydromonitor/internal/monitor"
	"github.com/chrissnell/hydromonitor/internal/types"
	"github.com/chrissnell/hydromonitor/pkg/config"
)

var fixedNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

const sensorLog = "id,timestamp,temperature,ph,tds\n" +
	"1,2025-05-18 10:00:00,24,6.2,1200\n" +
	"2,2025-05-19 10:00:00,25,5.0,1300\n" +
	"3,2025-05-20 10:00:00,26,6.6,1400\n"

func newTestServer(t *testing.T, v types.Variant) (http.Handler, *monitor.Monitor, *metrics.Metrics) {
	t.Helper()
	met := metrics.New()
	mon := monitor.New(monitor.Options{
		Variant:        v,
		MonitoredPlant: types.Chili,
		Recorder:       met,
		Observer:       met,
		Now:            func() time.Time { return fixedNow },
	})
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{}, mon, met, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if ctrl.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("expected default address, got %q", ctrl.Server.Addr)
	}
	return ctrl.Server.Handler, mon, met
}

func do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestEntryRoutes(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{
			name:   "valid entry",
			target: "/plants/chili/entries",
			body:   `{"date":"2025-05-20","ph":"6.4","tds":"1200","temperature":"24"}`,
			status: http.StatusCreated,
		},
		{
			name:   "missing field",
			target: "/plants/chili/entries",
			body:   `{"date":"2025-05-20","ph":"6.4"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			target: "/plants/chili/entries",
			body:   `{"date":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown plant",
			target: "/plants/tomato/entries",
			body:   `{"date":"2025-05-20","ph":"6.4","tds":"1200","temperature":"24"}`,
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, tt.target, strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(h, http.MethodGet, "/plants/Chili/entries", nil, "")
	var resp EntriesResponse
	decode(t, rec, &resp)
	if resp.Plant != types.Chili || len(resp.Entries) != 1 || resp.Entries[0].PH != 6.4 {
		t.Errorf("unexpected entries response %+v", resp)
	}
}

func TestZeroReadingsAreSerialized(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)

	rec := do(h, http.MethodPost, "/plants/chili/entries",
		strings.NewReader(`{"date":"2025-05-20","ph":"6.4","tds":"0","temperature":"0"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	for _, target := range []string{"/plants/chili/entries", "/entries/recent"} {
		body := do(h, http.MethodGet, target, nil, "").Body.String()
		if !strings.Contains(body, `"tds":0`) || !strings.Contains(body, `"temperature":0`) {
			t.Errorf("%s dropped zero readings: %s", target, body)
		}
	}
}

func TestImportExportRoutes(t *testing.T) {
	h, mon, _ := newTestServer(t, types.VariantSensor)

	rec := do(h, http.MethodPost, "/import", strings.NewReader(sensorLog), "text/csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result monitor.ImportResult
	decode(t, rec, &result)
	if result.Imported != 3 || result.BatchID == "" {
		t.Errorf("unexpected import result %+v", result)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "log.csv")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, sensorLog)
	mw.Close()
	rec = do(h, http.MethodPost, "/import", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := len(mon.Entries(types.Chili)); n != 6 {
		t.Errorf("expected 6 entries after two imports, got %d", n)
	}

	rec = do(h, http.MethodPost, "/import", strings.NewReader("id,ph\n1,6\n"), "text/csv")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad header: expected 400, got %d", rec.Code)
	}
	if n := len(mon.Entries(types.Chili)); n != 6 {
		t.Errorf("rejected import changed the store: %d entries", n)
	}

	rec = do(h, http.MethodGet, "/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="hydro_monitor_data_2025-05-20.csv"` {
		t.Errorf("unexpected Content-Disposition %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 7 || !strings.HasPrefix(lines[0], "id,timestamp,temperature,ph,tds") {
		t.Errorf("unexpected export:\n%s", rec.Body.String())
	}
}

func TestRecentRoute(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)
	do(h, http.MethodPost, "/import", strings.NewReader(sensorLog), "text/csv")

	rec := do(h, http.MethodGet, "/entries/recent?limit=2", nil, "")
	var resp RecentResponse
	decode(t, rec, &resp)
	if len(resp.Entries) != 2 || resp.Entries[0].ID != 3 || resp.Entries[1].ID != 2 {
		t.Errorf("unexpected recent entries %+v", resp.Entries)
	}

	rec = do(h, http.MethodGet, "/entries/recent?limit=-1", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestAlertRoutes(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)
	do(h, http.MethodPost, "/import", strings.NewReader(sensorLog), "text/csv")

	rec := do(h, http.MethodGet, "/alerts", nil, "")
	var resp AlertsResponse
	decode(t, rec, &resp)
	if len(resp.Alerts) != 1 || resp.Alerts[0] != "pH out of range at 2025-05-19 10:00:00: 5.0" {
		t.Errorf("unexpected alerts %q", resp.Alerts)
	}
	if !resp.Highlights.PH || resp.Source != "computed" {
		t.Errorf("unexpected report %+v", resp)
	}

	rec = do(h, http.MethodPost, "/alerts/refresh", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("refresh: expected 200, got %d", rec.Code)
	}
}

func TestTrendAndChartRoutes(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)
	do(h, http.MethodPost, "/import", strings.NewReader(sensorLog), "text/csv")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "trend default window", target: "/trend/tds", status: http.StatusOK},
		{name: "trend with days", target: "/trend/temperature?days=3", status: http.StatusOK},
		{name: "trend bad days", target: "/trend/tds?days=week", status: http.StatusBadRequest},
		{name: "trend unknown metric", target: "/trend/humidity", status: http.StatusNotFound},
		{name: "trend untracked metric", target: "/trend/ec", status: http.StatusBadRequest},
		{name: "chart", target: "/chart/ph", status: http.StatusOK},
		{name: "chart untracked metric", target: "/chart/ec", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, nil, "")
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(h, http.MethodGet, "/trend/tds", nil, "")
	var tr TrendResponse
	decode(t, rec, &tr)
	if tr.Trend != "Increasing" || tr.SlopeText != "100.00" || tr.Days != 7 {
		t.Errorf("unexpected trend %+v", tr)
	}

	rec = do(h, http.MethodGet, "/chart/ph?format=msgpack", nil, "")
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Fatalf("expected msgpack, got %q", ct)
	}
	var chart struct {
		Metric string           `msgpack:"metric"`
		Series []string         `msgpack:"series"`
		Rows   []map[string]any `msgpack:"rows"`
	}
	if err := msgpack.NewDecoder(rec.Body).Decode(&chart); err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	if len(chart.Rows) != 3 || len(chart.Series) != 1 || chart.Series[0] != "Chili" {
		t.Errorf("unexpected chart %+v", chart)
	}
	if chart.Rows[0]["date"] != "2025-05-18" {
		t.Errorf("rows not ordered by date: %v", chart.Rows[0])
	}
}

func TestPlantsAndMetricsRoutes(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantJournal)

	rec := do(h, http.MethodGet, "/plants", nil, "")
	var resp PlantsResponse
	decode(t, rec, &resp)
	if resp.Variant != types.VariantJournal || len(resp.Plants) != types.PlantCount {
		t.Errorf("unexpected plants response %+v", resp)
	}
	if len(resp.Metrics) != 2 || resp.Metrics[1] != types.MetricEC {
		t.Errorf("unexpected metrics %v", resp.Metrics)
	}

	do(h, http.MethodGet, "/plants", nil, "")
	rec = do(h, http.MethodGet, "/metrics", nil, "")
	if !strings.Contains(rec.Body.String(), `hydromonitor_http_request_duration_seconds_count{route="/plants",status="200"} 2`) {
		t.Errorf("request durations not recorded:\n%s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _, _ := newTestServer(t, types.VariantSensor)

	req := httptest.NewRequest(http.MethodOptions, "/import", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}
