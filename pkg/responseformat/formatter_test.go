package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type sample struct {
	Plant string  `json:"plant"`
	PH    float64 `json:"ph"`
}

func TestWriteStatus(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		accept      string
		contentType string
	}{
		{name: "default json", target: "/alerts", contentType: ContentTypeJSON},
		{name: "query msgpack", target: "/alerts?format=msgpack", contentType: ContentTypeMsgPack},
		{name: "accept msgpack", target: "/alerts", accept: ContentTypeMsgPack, contentType: ContentTypeMsgPack},
		{name: "unknown format falls back to json", target: "/alerts?format=xml", contentType: ContentTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			err := NewFormatter().WriteStatus(rec, req, http.StatusCreated, sample{Plant: "Chili", PH: 6.4}, map[string]string{"X-Batch": "b1"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if rec.Code != http.StatusCreated {
				t.Errorf("expected status 201, got %d", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, got)
			}
			if rec.Header().Get("X-Batch") != "b1" {
				t.Error("extra header not set")
			}

			var got sample
			if tt.contentType == ContentTypeMsgPack {
				dec := msgpack.NewDecoder(rec.Body)
				dec.SetCustomStructTag("json")
				err = dec.Decode(&got)
			} else {
				err = json.NewDecoder(rec.Body).Decode(&got)
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Plant != "Chili" || got.PH != 6.4 {
				t.Errorf("unexpected body %+v", got)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/trend/humidity", nil)
	if err := NewFormatter().WriteError(rec, req, http.StatusBadRequest, "unknown metric"); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "unknown metric" {
		t.Errorf("unexpected body %v", body)
	}
}
