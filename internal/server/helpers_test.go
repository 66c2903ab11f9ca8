package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/enori/stock-skills/internal/services/risk"
)

func TestPathParam(t *testing.T) {
	tests := []struct {
		path, prefix, suffix, want string
	}{
		{"/api/portfolios/core/risk", "/api/portfolios/", "/risk", "core"},
		{"/api/portfolios/core/risk", "/api/portfolios/", "", "core"},
		{"/api/portfolios/core", "/api/portfolios/", "/risk", "core"},
		{"/api/reports/abc-123", "/api/reports/", "", "abc-123"},
		{"/api/reports/", "/api/reports/", "", ""},
		{"/other", "/api/reports/", "", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := PathParam(r, tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("PathParam(%q, %q, %q) = %q, want %q", tt.path, tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestRequireMethod(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/portfolios/core/risk", nil)
	if RequireMethod(rr, r, http.MethodGet, http.MethodPost) {
		t.Fatal("DELETE should be rejected")
	}
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q", got)
	}

	rr = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	if !RequireMethod(rr, r, http.MethodGet, http.MethodPost) {
		t.Error("POST should be accepted")
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"core"}`))
	if !DecodeJSON(rr, r, &v) || v.Name != "core" {
		t.Errorf("decode failed: %+v", v)
	}

	rr = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	if DecodeJSON(rr, r, &v) {
		t.Error("truncated body should fail")
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _ := newTestServer(t, nil)
	handler := recoveryMiddleware(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestNewAnalyzeLimiter_Disabled(t *testing.T) {
	if newAnalyzeLimiter(0, 10) != nil {
		t.Error("zero rate should disable limiting")
	}
	if l := newAnalyzeLimiter(1, 0); l == nil || l.Burst() != 1 {
		t.Error("burst should be at least 1")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{fmt.Errorf("%w: no positions", risk.ErrInvalidPortfolio), CodeInvalidPortfolio, http.StatusBadRequest},
		{fmt.Errorf("snapshot core: %w", os.ErrNotExist), CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("analyze: %w", context.Canceled), CodeCancelled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, CodeCancelled, http.StatusServiceUnavailable},
		{errors.New("disk full"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code := classifyError(tt.err)
		if code != tt.code {
			t.Errorf("classifyError(%v) = %q, want %q", tt.err, code, tt.code)
		}
		if code.Status() != tt.status {
			t.Errorf("%q.Status() = %d, want %d", code, code.Status(), tt.status)
		}
	}
	if ErrorCode("unknown").Status() != http.StatusInternalServerError {
		t.Error("unknown codes should map to 500")
	}
}

func TestWriteError_SetsCode(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, CodeNotFound, "no such report")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"not_found"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}
