package compute

import (
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

type request struct {
	Command   string       `json:"command"`
	Jobs      []domain.Job `json:"jobs"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	ClusterID string       `json:"cluster_id"`
}

// Executor dispatches ledger commands arriving over the agent transport.
type Executor struct {
	agent *Agent
}

func NewExecutor(agent *Agent) *Executor {
	return &Executor{agent: agent}
}

func (e *Executor) Execute(rc *a2a.RequestContext) (string, error) {
	var req request
	if err := json.Unmarshal([]byte(rc.Input), &req); err != nil {
		return errorPayload(fmt.Sprintf("invalid request: %v", err)), nil
	}

	klog.V(2).InfoS("Compute agent request", "command", req.Command, "contextID", rc.ContextID)

	switch req.Command {
	case "ingest_jobs":
		return e.ingestJobs(req)
	case "get_flexibility_profile":
		return e.flexibilityProfile(req)
	default:
		return errorPayload(fmt.Sprintf("Unknown command '%s'", req.Command)), nil
	}
}

func (e *Executor) ingestJobs(req request) (string, error) {
	applied := e.agent.ingest(req.Jobs)

	e.agent.mu.RLock()
	total := len(e.agent.jobs)
	e.agent.mu.RUnlock()

	return marshal(map[string]interface{}{
		"status":            "ok",
		"num_jobs_ingested": applied,
		"total_jobs":        total,
	})
}

func (e *Executor) flexibilityProfile(req request) (string, error) {
	from, err := domain.ParseTime(req.From)
	if err != nil {
		return errorPayload("Invalid window"), nil
	}
	to, err := domain.ParseTime(req.To)
	if err != nil {
		return errorPayload("Invalid window"), nil
	}

	jobs := e.agent.profile(from, to, req.ClusterID)
	if jobs == nil {
		jobs = []profileJob{}
	}
	return marshal(map[string]interface{}{
		"status": "ok",
		"jobs":   jobs,
	})
}

func errorPayload(message string) string {
	out, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	return string(out)
}

func marshal(v interface{}) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return errorPayload(fmt.Sprintf("encoding response: %v", err)), nil
	}
	return string(out), nil
}
