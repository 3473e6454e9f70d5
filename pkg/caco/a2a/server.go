package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// MessagePath is the single RPC endpoint every agent exposes.
const MessagePath = "/a2a/message"

// Executor processes one textual request payload and returns one textual
// response payload. Implementations encode their own failures as JSON
// payloads with a status field; a returned error means the executor itself
// could not produce a payload and surfaces as HTTP 500.
type Executor interface {
	Execute(ctx *RequestContext) (string, error)
}

// RequestContext carries the correlation id and raw input for one exchange.
type RequestContext struct {
	ContextID string
	MessageID string
	Input     string

	httpReq *http.Request
}

// Context returns the request-scoped context for cancellation and deadline
// propagation into outbound calls.
func (rc *RequestContext) Context() context.Context {
	if rc.httpReq == nil {
		return context.Background()
	}
	return rc.httpReq.Context()
}

// Server hosts one agent behind the a2a wire contract.
type Server struct {
	card     AgentCard
	executor Executor
	router   *mux.Router
}

// NewServer wires an executor behind the standard routes: POST /a2a/message,
// GET / (agent card), GET /metrics, GET /healthz.
func NewServer(card AgentCard, executor Executor) *Server {
	s := &Server{card: card, executor: executor}

	r := mux.NewRouter()
	r.HandleFunc(MessagePath, s.handleMessage).Methods(http.MethodPost)
	r.HandleFunc("/", s.handleCard).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router = r

	return s
}

// Handler exposes the server as a plain http.Handler so it can be mounted
// in-process or on a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving the agent on addr.
func (s *Server) ListenAndServe(addr string) error {
	klog.InfoS("Agent listening", "agent", s.card.Name, "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("", fmt.Sprintf("failed to read request: %v", err)))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		// Malformed envelope is still answered on the wire, not dropped.
		writeJSON(w, http.StatusBadRequest, errorEnvelope("", fmt.Sprintf("invalid message envelope: %v", err)))
		return
	}

	input, err := TextPayload(req.Message)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope(req.Message.ContextID, err.Error()))
		return
	}

	rc := &RequestContext{
		ContextID: req.Message.ContextID,
		MessageID: req.Message.MessageID,
		Input:     input,
		httpReq:   r,
	}

	output, err := s.executor.Execute(rc)
	if err != nil {
		klog.ErrorS(err, "Executor failed", "agent", s.card.Name, "contextID", rc.ContextID)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope(rc.ContextID, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: NewTextMessage(newID(), rc.ContextID, output),
	})
}

func errorEnvelope(contextID, message string) Response {
	payload, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	return Response{Message: NewTextMessage(newID(), contextID, string(payload))}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Failed to write response")
	}
}
