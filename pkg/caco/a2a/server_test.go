package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// echoExecutor returns its input wrapped in a JSON object.
type echoExecutor struct{}

func (echoExecutor) Execute(ctx *RequestContext) (string, error) {
	out, _ := json.Marshal(map[string]string{"status": "ok", "echo": ctx.Input})
	return string(out), nil
}

// failingExecutor always errors at the executor level.
type failingExecutor struct{}

func (failingExecutor) Execute(*RequestContext) (string, error) {
	return "", fmt.Errorf("boom")
}

func testCard() AgentCard {
	return AgentCard{Name: "test_agent", Description: "test", Version: "0.0.1"}
}

func postMessage(t *testing.T, ts *httptest.Server, contextID, text string) Response {
	t.Helper()
	req := Request{Message: Message{
		MessageID: "m-1",
		ContextID: contextID,
		Parts:     []Part{{Kind: "text", Text: text}},
	}}
	body, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+MessagePath, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestServerEchoesWithCorrelation(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), echoExecutor{}).Handler())
	defer ts.Close()

	resp := postMessage(t, ts, "ctx-42", `{"command":"noop"}`)
	if resp.Message.ContextID != "ctx-42" {
		t.Errorf("context id = %q, want ctx-42", resp.Message.ContextID)
	}
	payload, err := TextPayload(resp.Message)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded["echo"] != `{"command":"noop"}` {
		t.Errorf("echo = %q", decoded["echo"])
	}
}

func TestServerMalformedEnvelope(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), echoExecutor{}).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+MessagePath, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("error response must still be an envelope: %v", err)
	}
	payload, _ := TextPayload(out.Message)
	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["status"] != "error" {
		t.Errorf("status field = %q, want error", decoded["status"])
	}
}

func TestServerExecutorFailure(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), failingExecutor{}).Handler())
	defer ts.Close()

	req := Request{Message: Message{MessageID: "m-2", ContextID: "c", Parts: []Part{{Kind: "text", Text: "{}"}}}}
	body, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+MessagePath, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestServerServesAgentCard(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), echoExecutor{}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		t.Fatal(err)
	}
	if card.Name != "test_agent" {
		t.Errorf("card name = %q", card.Name)
	}
}

func TestClientRoundTrip(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), echoExecutor{}).Handler())
	defer ts.Close()

	client := NewClient()
	payload, err := client.SendText(context.Background(), ts.URL, "ctx-7", `{"command":"ping"}`)
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("status = %q", decoded["status"])
	}
}

func TestClientGeneratesContextID(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), echoExecutor{}).Handler())
	defer ts.Close()

	client := NewClient()
	if _, err := client.SendText(context.Background(), ts.URL, "", `{}`); err != nil {
		t.Fatalf("SendText with empty context id: %v", err)
	}
}

func TestTextPayloadMissingPart(t *testing.T) {
	if _, err := TextPayload(Message{MessageID: "x"}); err == nil {
		t.Error("expected error for message without parts")
	}
}
