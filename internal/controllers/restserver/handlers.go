package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chrissnell/hydromonitor/internal/csvcodec"
	"github.com/chrissnell/hydromonitor/internal/trend"
	"github.com/chrissnell/hydromonitor/internal/types"
	"github.com/chrissnell/hydromonitor/pkg/responseformat"
)

// maxUploadBytes caps CSV uploads and entry bodies. Journal entries can carry
// base64 images, so the cap is generous.
const maxUploadBytes = 32 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// GetPlants handles GET /plants
func (h *Handlers) GetPlants(w http.ResponseWriter, req *http.Request) {
	mon := h.controller.monitor
	h.write(w, req, http.StatusOK, PlantsResponse{
		Variant: mon.Variant(),
		Metrics: mon.Variant().Metrics(),
		Plants:  mon.Profiles(),
	})
}

// GetEntries handles GET /plants/{plant}/entries
func (h *Handlers) GetEntries(w http.ResponseWriter, req *http.Request) {
	p, ok := h.plantParam(w, req)
	if !ok {
		return
	}
	entries := h.controller.monitor.Entries(p)
	if entries == nil {
		entries = []types.Entry{}
	}
	h.write(w, req, http.StatusOK, EntriesResponse{Plant: p, Entries: entries})
}

// AddEntry handles POST /plants/{plant}/entries with a JSON entry form
func (h *Handlers) AddEntry(w http.ResponseWriter, req *http.Request) {
	p, ok := h.plantParam(w, req)
	if !ok {
		return
	}

	var form types.EntryForm
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxUploadBytes)).Decode(&form); err != nil {
		h.fail(w, req, http.StatusBadRequest, fmt.Sprintf("invalid entry body: %v", err))
		return
	}

	entry, err := h.controller.monitor.AddEntry(req.Context(), p, form)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	h.write(w, req, http.StatusCreated, entry)
}

// GetRecent handles GET /entries/recent?limit=N. No limit returns every entry.
func (h *Handlers) GetRecent(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, req, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := h.controller.monitor.Recent(limit)
	if entries == nil {
		entries = []types.PlantEntry{}
	}
	h.write(w, req, http.StatusOK, RecentResponse{Entries: entries})
}

// ImportCSV handles POST /import. The CSV is either the raw request body or
// the "file" part of a multipart form.
func (h *Handlers) ImportCSV(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)

	text, err := readUpload(req)
	if err != nil {
		h.fail(w, req, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	result, err := h.controller.monitor.ImportCSV(req.Context(), text)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, result)
}

func readUpload(req *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(req.Body)
		return string(body), err
	}

	file, _, err := req.FormFile("file")
	if err != nil {
		return "", err
	}
	defer file.Close()
	body, err := io.ReadAll(file)
	return string(body), err
}

// ExportCSV handles GET /export
func (h *Handlers) ExportCSV(w http.ResponseWriter, req *http.Request) {
	text, err := h.controller.monitor.ExportCSV()
	if err != nil {
		h.controller.logger.Errorw("export failed", "error", err)
		h.fail(w, req, http.StatusInternalServerError, "error exporting data")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.controller.monitor.ExportFilename()))
	io.WriteString(w, text)
}

// GetAlerts handles GET /alerts
func (h *Handlers) GetAlerts(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, newAlertsResponse(h.controller.monitor.Alerts()))
}

// RefreshAlerts handles POST /alerts/refresh
func (h *Handlers) RefreshAlerts(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, newAlertsResponse(h.controller.monitor.RefreshAlerts(req.Context())))
}

// GetTrend handles GET /trend/{metric}?days=N
func (h *Handlers) GetTrend(w http.ResponseWriter, req *http.Request) {
	m, ok := h.metricParam(w, req)
	if !ok {
		return
	}

	days := 0
	if raw := req.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, req, http.StatusBadRequest, "days must be an integer")
			return
		}
		// The analyzer widens anything below one day to one.
		days = n
		if days <= 0 {
			days = 1
		}
	}

	result, err := h.controller.monitor.Trend(m, days)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, newTrendResponse(result))
}

// GetChart handles GET /chart/{metric}
func (h *Handlers) GetChart(w http.ResponseWriter, req *http.Request) {
	m, ok := h.metricParam(w, req)
	if !ok {
		return
	}

	rows, err := h.controller.monitor.Chart(m)
	if err != nil {
		h.writeErr(w, req, err)
		return
	}
	h.write(w, req, http.StatusOK, newChartResponse(m, rows))
}

func (h *Handlers) plantParam(w http.ResponseWriter, req *http.Request) (types.Plant, bool) {
	name := mux.Vars(req)["plant"]
	p, ok := types.ParsePlant(name)
	if !ok {
		h.fail(w, req, http.StatusNotFound, fmt.Sprintf("unknown plant %q", name))
		return 0, false
	}
	return p, true
}

func (h *Handlers) metricParam(w http.ResponseWriter, req *http.Request) (types.Metric, bool) {
	m, err := types.ParseMetric(mux.Vars(req)["metric"])
	if err != nil {
		h.fail(w, req, http.StatusNotFound, err.Error())
		return "", false
	}
	return m, true
}

// writeErr maps monitor errors onto HTTP statuses.
func (h *Handlers) writeErr(w http.ResponseWriter, req *http.Request, err error) {
	var (
		verr *types.ValidationError
		ferr *csvcodec.FormatError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &ferr), errors.Is(err, trend.ErrUnsupportedMetric):
		h.fail(w, req, http.StatusBadRequest, err.Error())
	default:
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
		h.fail(w, req, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, status int, message string) {
	h.formatter.WriteError(w, req, status, message)
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteStatus(w, req, status, data, nil); err != nil {
		h.controller.logger.Errorw("error encoding response", "path", req.URL.Path, "error", err)
	}
}
