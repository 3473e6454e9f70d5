// Package oracle implements the optional weight advisor: given a textual
// summary of grid conditions and pending demand, it asks an OpenAI-compatible
// chat endpoint for three scheduling weights. The oracle is advisory only;
// every failure path falls back to the caller's static weights, and all
// returned values are clamped before use.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// Suggestion is one set of advised scheduling weights.
type Suggestion struct {
	CarbonPenaltyWeight float64 `json:"carbon_penalty_weight"`
	SLAPenaltyWeight    float64 `json:"sla_penalty_weight"`
	MaxPowerKW          float64 `json:"max_power_kw"`
	Reason              string  `json:"reason"`
}

// Oracle advises scheduling weights from a grid and demand summary.
type Oracle interface {
	SuggestWeights(ctx context.Context, gridSummary, demandSummary string) (*Suggestion, error)
}

// HTTPClient interface allows mocking http.Client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatOracle talks to an OpenAI-compatible chat-completions endpoint.
type ChatOracle struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient HTTPClient
}

// Option allows customizing the oracle client.
type Option func(*ChatOracle)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(o *ChatOracle) {
		o.httpClient = hc
	}
}

// NewChatOracle creates an oracle client against baseURL (for example
// https://api.openai.com/v1) using the given model.
func NewChatOracle(baseURL, apiKey, model string, timeout time.Duration, opts ...Option) *ChatOracle {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	o := &ChatOracle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

const systemPrompt = `You are a scheduling strategist for a carbon-aware compute cluster.
Given a grid summary and a demand summary, respond with a single JSON object:
{"carbon_penalty_weight": <0..10>, "sla_penalty_weight": <0..10>, "max_power_kw": <>=1000>, "reason": "<one sentence>"}
Respond with the JSON object only, no prose.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SuggestWeights asks the model for weights. Any transport, status, or
// parse failure is returned as an error; the caller keeps its static
// weights in that case.
func (o *ChatOracle) SuggestWeights(ctx context.Context, gridSummary, demandSummary string) (*Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Grid summary:\n%s\n\nDemand summary:\n%s", gridSummary, demandSummary)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	klog.V(3).InfoS("Consulting weight oracle", "model", o.model)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("response contains no choices")
	}

	suggestion, err := parseSuggestion(payload.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

// parseSuggestion extracts the JSON object from the model reply, tolerating
// surrounding prose and markdown fences.
func parseSuggestion(content string) (*Suggestion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in oracle reply")
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("failed to parse oracle reply: %v", err)
	}
	return &s, nil
}

// Clamp bounds a suggestion to the ranges the engine accepts.
func (s *Suggestion) Clamp() {
	s.CarbonPenaltyWeight = clamp(s.CarbonPenaltyWeight, 0, 10)
	s.SLAPenaltyWeight = clamp(s.SLAPenaltyWeight, 0, 10)
	if s.MaxPowerKW < 1000 {
		s.MaxPowerKW = 1000
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
