package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

func TestClassifyActivitiesParsesModelResponse(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"{\"activities\":[{\"name\":\"Trainings delivered\",\"kra\":\"KRA3\",\"indicator\":\"KPI 1\",\"value\":\"25\",\"confidence\":0.92},{\"name\":\"no identifiers\",\"kra\":\"\",\"indicator\":\"\",\"value\":\"5\"}]}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "classifier-model", 0, nil)
	candidates, err := client.ClassifyActivities(context.Background(), "report text", 2026, 2)
	if err != nil {
		t.Fatalf("ClassifyActivities() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 (row without identifiers dropped)", len(candidates))
	}
	got := candidates[0]
	if got.KRARaw != "KRA3" || got.InitiativeRaw != "KPI 1" || got.RawValue != "25" {
		t.Fatalf("candidate = %+v", got)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
	if !strings.Contains(capturedPrompt, "2026 Q2") || !strings.Contains(capturedPrompt, "report text") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestClassifyActivitiesWrapsServerErrorsAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "classifier-model", 0, nil)
	_, err := client.ClassifyActivities(context.Background(), "report text", 2026, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestClassifyActivitiesBadRequestIsNotTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "classifier-model", 0, nil)
	_, err := client.ClassifyActivities(context.Background(), "report text", 2026, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("bad request should not be temporary: %v", err)
	}
}

func TestClassifyActivitiesToleratesProseAroundJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Here is the result: {\"activities\":[{\"name\":\"x\",\"kra\":\"KRA 1\",\"indicator\":\"KPI 1\",\"value\":\"10\"}]} "}`))
	}))
	defer server.Close()

	client := New(server.URL, "classifier-model", 0, nil)
	candidates, err := client.ClassifyActivities(context.Background(), "report text", 2026, 1)
	if err != nil {
		t.Fatalf("ClassifyActivities() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
}
