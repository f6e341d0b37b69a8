// Package remote talks to the activity-classification model service. The
// service runs an instruction-tuned model behind an ollama-compatible API
// and returns activity line items as strict JSON.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type candidatePayload struct {
	Activities []struct {
		Name        string   `json:"name"`
		KRA         string   `json:"kra"`
		Indicator   string   `json:"indicator"`
		Value       string   `json:"value"`
		Denominator *float64 `json:"denominator"`
		Target      *float64 `json:"target"`
		Confidence  float64  `json:"confidence"`
	} `json:"activities"`
}

func (c *Client) ClassifyActivities(ctx context.Context, text string, year, quarter int) ([]domain.ActivityCandidate, error) {
	respText, err := c.generateJSON(ctx, buildActivityPrompt(text, year, quarter))
	if err != nil {
		return nil, err
	}

	var payload candidatePayload
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &payload); err != nil {
		return nil, fmt.Errorf("parse activity json: %w", err)
	}

	out := make([]domain.ActivityCandidate, 0, len(payload.Activities))
	for _, a := range payload.Activities {
		if strings.TrimSpace(a.KRA) == "" || strings.TrimSpace(a.Indicator) == "" {
			continue
		}
		out = append(out, domain.ActivityCandidate{
			Name:          strings.TrimSpace(a.Name),
			KRARaw:        a.KRA,
			InitiativeRaw: a.Indicator,
			RawValue:      strings.TrimSpace(a.Value),
			Denominator:   a.Denominator,
			Target:        a.Target,
			Confidence:    clampConfidence(a.Confidence),
		})
	}
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "classify")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "classifier.generate", call, classifyRemoteError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("classify activities", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
