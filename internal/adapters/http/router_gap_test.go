package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGapClassifyEndpoint(t *testing.T) {
	handler := routerFixture{}.handler().Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/gap/classify?kind=percentage", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["category"] != "EFFICIENCY" {
		t.Fatalf("expected EFFICIENCY, got %v", resp["category"])
	}
}

func TestGapInterpretEndpoint(t *testing.T) {
	handler := routerFixture{}.handler().Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/gap/interpret?category=milestone", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["category"] != "MILESTONE" {
		t.Fatalf("expected MILESTONE framing, got %v", resp["category"])
	}
	if resp["gap_type"] == "" {
		t.Fatalf("expected non-empty gap type")
	}
}

func TestGapValidateFlagsForbiddenAdvice(t *testing.T) {
	handler := routerFixture{}.handler().Handler()

	payload, _ := json.Marshal(map[string]string{
		"text": "The unit should collect more data next quarter.",
		"kind": "percentage",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/gap/validate", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp struct {
		IsValid  bool     `json:"is_valid"`
		Warnings []string `json:"warnings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsValid {
		t.Fatalf("expected validation to fail for volume advice on a rate metric")
	}
	if len(resp.Warnings) == 0 {
		t.Fatalf("expected warnings for forbidden phrase")
	}
}

func TestGapValidateRequiresText(t *testing.T) {
	handler := routerFixture{}.handler().Handler()

	payload, _ := json.Marshal(map[string]string{"kind": "count"})
	req := httptest.NewRequest(http.MethodPost, "/v1/gap/validate", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
