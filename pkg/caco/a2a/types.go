// Package a2a implements the framed request/response transport the CACO
// agents speak to each other: one JSON message in, one JSON message out,
// correlated end-to-end by a caller-assigned context id. Payloads travel as
// text parts carrying serialized JSON objects.
package a2a

import "fmt"

// Part is one fragment of a message. Only text parts are used.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Message is the unit of exchange. Exactly one request message maps to at
// most one response message with the same context id.
type Message struct {
	MessageID string `json:"message_id"`
	ContextID string `json:"context_id,omitempty"`
	Role      string `json:"role,omitempty"`
	Parts     []Part `json:"parts"`
}

// Request wraps the inbound message envelope.
type Request struct {
	Message Message `json:"message"`
}

// Response wraps the outbound message envelope.
type Response struct {
	Message Message `json:"message"`
}

// AgentCard describes an agent for discovery. Served on GET /.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// TextPayload extracts the first text part of a message.
func TextPayload(msg Message) (string, error) {
	for _, part := range msg.Parts {
		if part.Kind == "" || part.Kind == "text" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("message %s has no text part", msg.MessageID)
}

// NewTextMessage builds a single-part text message bound to a context id.
func NewTextMessage(messageID, contextID, text string) Message {
	return Message{
		MessageID: messageID,
		ContextID: contextID,
		Role:      "agent",
		Parts:     []Part{{Kind: "text", Text: text}},
	}
}
