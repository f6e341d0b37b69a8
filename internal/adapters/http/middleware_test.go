package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalysisRoute(t *testing.T) {
	tests := []struct {
		path       string
		wantID     string
		wantAction string
	}{
		{"/v1/analyses/a-17", "a-17", ""},
		{"/v1/analyses/a-17/approve", "a-17", "approve"},
		{"/v1/analyses/a-17/reject", "a-17", "reject"},
		{"/v1/analyses/a-17/activities/act-3", "a-17", "activities"},
		{"/v1/analyses", "", ""},
		{"/v1/aggregates", "", ""},
		{"/healthz", "", ""},
	}
	for _, tt := range tests {
		id, action := analysisRoute(tt.path)
		if id != tt.wantID || action != tt.wantAction {
			t.Errorf("analysisRoute(%q) = (%q, %q), want (%q, %q)", tt.path, id, action, tt.wantID, tt.wantAction)
		}
	}
}

func TestRequestIDMiddlewarePropagatesHeader(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "req-abc" {
		t.Fatalf("context request id = %q, want req-abc", seen)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-abc" {
		t.Fatalf("response header = %q, want req-abc", got)
	}
}

func TestRequestIDMiddlewareGeneratesWhenAbsent(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id header")
	}
}
