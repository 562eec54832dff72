package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	RunID  string  `json:"run_id"`
	Peak   float64 `json:"peak_rate"`
	Flares int     `json:"flare_count"`
}

func TestWriteResponseJSON(t *testing.T) {
	f := NewFormatter("*")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/abc", nil)

	if err := f.WriteResponse(rec, req, http.StatusCreated, payload{RunID: "abc", Peak: 15, Flares: 1}); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS header, got %q", origin)
	}

	var decoded payload
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RunID != "abc" || decoded.Peak != 15 || decoded.Flares != 1 {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestWriteResponseMsgPackUsesJSONTags(t *testing.T) {
	f := NewFormatter("")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/abc?format=msgpack", nil)

	if err := f.WriteResponse(rec, req, http.StatusOK, payload{RunID: "abc", Flares: 2}); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("expected msgpack content type, got %q", ct)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "" {
		t.Errorf("expected no CORS header, got %q", origin)
	}

	var decoded map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["run_id"] != "abc" {
		t.Errorf("expected run_id key from json tag, got %v", decoded)
	}
}

func TestWriteError(t *testing.T) {
	f := NewFormatter("*")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/missing", nil)

	f.WriteError(rec, req, http.StatusNotFound, "run not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "run not found" {
		t.Errorf("unexpected error body: %+v", body)
	}
}
