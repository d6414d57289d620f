package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSettingsRequireOwnerHeader(t *testing.T) {
	h := NewSettingsHandler(nil, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Get without owner header: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader("{}")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Update without owner header: expected 400, got %d", rec.Code)
	}
}

func TestSettingsUpdateRejectsInvalidDocuments(t *testing.T) {
	h := NewSettingsHandler(nil, nil, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad timezone", `{"timezone":"Mars/Olympus","displayOptions":{"lookAheadDays":7}}`},
		{"inverted range", `{"timezone":"UTC","weeklySchedule":{"monday":{"available":true,"timeRanges":[{"start":"17:00","end":"09:00"}]}},"displayOptions":{"lookAheadDays":7}}`},
		{"look-ahead out of bounds", `{"timezone":"UTC","displayOptions":{"lookAheadDays":90}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(tc.body))
			req.Header.Set("X-Owner-Id", "owner-1")
			rec := httptest.NewRecorder()
			h.Update(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSettingsMethodNotAllowed(t *testing.T) {
	h := NewSettingsHandler(nil, nil, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/settings", nil)
	req.Header.Set("X-Owner-Id", "owner-1")
	h.Get(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestConnectionCreateValidation(t *testing.T) {
	h := NewConnectionsHandler(nil, nil, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"unknown provider", `{"provider":"caldav","accountId":"a"}`},
		{"ics without feed url", `{"provider":"ics"}`},
		{"ics with bad feed url", `{"provider":"ics","feedUrl":"not-a-url"}`},
		{"oauth without account", `{"provider":"google"}`},
		{"invalid metadata", `{"provider":"google","accountId":"a","metadata":"{broken"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/settings/connections", strings.NewReader(tc.body))
			req.Header.Set("X-Owner-Id", "owner-1")
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConnectionSetActiveRequiresID(t *testing.T) {
	h := NewConnectionsHandler(nil, nil, testLogger())
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/connections/active", strings.NewReader(`{"isActive":false}`))
	req.Header.Set("X-Owner-Id", "owner-1")
	rec := httptest.NewRecorder()
	h.SetActive(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
