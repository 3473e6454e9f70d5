package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// HTTPClient allows injecting a transport in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends single request/response exchanges to remote agents.
type Client struct {
	httpClient HTTPClient
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client with a 30s overall exchange timeout unless a
// custom HTTP client is supplied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText posts one text payload to the agent at baseURL and returns the
// text payload of the correlated response.
func (c *Client) SendText(ctx context.Context, baseURL, contextID, payload string) (string, error) {
	if contextID == "" {
		contextID = newID()
	}

	envelope := Request{
		Message: Message{
			MessageID: newID(),
			ContextID: contextID,
			Role:      "user",
			Parts:     []Part{{Kind: "text", Text: payload}},
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %v", err)
	}

	url := strings.TrimRight(baseURL, "/") + MessagePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	klog.V(3).InfoS("Sending agent message", "url", url, "contextID", contextID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read agent response: %v", err)
	}

	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("invalid agent response (status %d): %v", resp.StatusCode, err)
	}

	if response.Message.ContextID != "" && response.Message.ContextID != contextID {
		return "", fmt.Errorf("context id mismatch: sent %s, got %s", contextID, response.Message.ContextID)
	}

	return TextPayload(response.Message)
}

func newID() string {
	return uuid.NewString()
}
