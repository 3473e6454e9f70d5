package coordination

import (
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

type request struct {
	Command      string  `json:"command"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	HorizonHours float64 `json:"horizon_hours"`
	Region       string  `json:"region"`
	ClusterID    string  `json:"cluster_id"`
	Endpoints    *struct {
		GridAgentURL    string `json:"grid_agent_url"`
		ComputeAgentURL string `json:"compute_agent_url"`
	} `json:"endpoints"`
	Optimization *weightOverrides `json:"optimization"`
}

// Executor dispatches coordination commands arriving over the agent
// transport.
type Executor struct {
	agent *Agent
}

func NewExecutor(agent *Agent) *Executor {
	return &Executor{agent: agent}
}

func (e *Executor) Execute(rc *a2a.RequestContext) (string, error) {
	var req request
	if err := json.Unmarshal([]byte(rc.Input), &req); err != nil {
		return errorPayload(fmt.Sprintf("invalid request: %v", err), nil), nil
	}

	klog.V(2).InfoS("Coordination agent request", "command", req.Command, "contextID", rc.ContextID)

	switch req.Command {
	case "run_caco_planning":
		return e.runPlanning(rc, req)
	case "export_beckn_catalog":
		return e.exportCatalog()
	default:
		return errorPayload(fmt.Sprintf("Unknown command '%s'", req.Command), nil), nil
	}
}

func (e *Executor) runPlanning(rc *a2a.RequestContext, req request) (string, error) {
	in, err := e.planningInput(req)
	if err != nil {
		return errorPayload("Invalid window", nil), nil
	}

	result, err := e.agent.plan(rc.Context(), rc.ContextID, in)
	if err != nil {
		if ce, ok := err.(*computeError); ok {
			return errorPayload(ce.Error(), ce.profile), nil
		}
		return errorPayload(err.Error(), nil), nil
	}

	out, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Sprintf("encoding response: %v", err), nil), nil
	}
	return string(out), nil
}

func (e *Executor) planningInput(req request) (planningInput, error) {
	in := planningInput{
		region:     req.Region,
		clusterID:  req.ClusterID,
		gridURL:    e.agent.cfg.Agents.GridURL,
		computeURL: e.agent.cfg.Agents.ComputeURL,
		overrides:  req.Optimization,
	}
	if in.region == "" {
		in.region = "GB"
	}
	if req.Endpoints != nil {
		if req.Endpoints.GridAgentURL != "" {
			in.gridURL = req.Endpoints.GridAgentURL
		}
		if req.Endpoints.ComputeAgentURL != "" {
			in.computeURL = req.Endpoints.ComputeAgentURL
		}
	}

	if req.From != "" {
		from, err := domain.ParseTime(req.From)
		if err != nil {
			return in, err
		}
		in.from = from
	} else {
		in.from = e.agent.clk.Now()
	}

	if req.To != "" {
		to, err := domain.ParseTime(req.To)
		if err != nil {
			return in, err
		}
		in.to = to
	} else {
		horizon := req.HorizonHours
		if horizon <= 0 {
			horizon = DefaultHorizonHours
		}
		in.to = in.from.Add(domain.DurationFromHours(horizon))
	}
	return in, nil
}

func (e *Executor) exportCatalog() (string, error) {
	offers := []domain.FlexOffer{}
	if snapshot := e.agent.LastSnapshot(); snapshot != nil && snapshot.FlexOffers != nil {
		offers = snapshot.FlexOffers
	}

	out, err := json.Marshal(map[string]interface{}{
		"status":      "ok",
		"flex_offers": offers,
	})
	if err != nil {
		return errorPayload(fmt.Sprintf("encoding response: %v", err), nil), nil
	}
	return string(out), nil
}

// errorPayload builds an error response; when inner is set, the failing
// downstream payload is embedded for diagnosis.
func errorPayload(message string, inner *flexibilityProfile) string {
	body := map[string]interface{}{
		"status":  "error",
		"message": message,
	}
	if inner != nil {
		body["compute_response"] = inner
	}
	out, _ := json.Marshal(body)
	return string(out)
}
