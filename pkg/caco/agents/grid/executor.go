package grid

import (
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

type request struct {
	Command string `json:"command"`
	From    string `json:"from"`
	To      string `json:"to"`
	Region  string `json:"region"`
}

// forecastResponse is the wire shape of a grid forecast. Unlike the other
// agents it carries no status field; failure is expressed only for bad
// requests.
type forecastResponse struct {
	CarbonSeries []domain.CarbonPoint `json:"carbon_series"`
	PriceSeries  []domain.PricePoint  `json:"price_series"`
}

// Executor dispatches forecast commands arriving over the agent transport.
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

	klog.V(2).InfoS("Grid agent request", "command", req.Command, "region", req.Region, "contextID", rc.ContextID)

	if req.Command != "get_grid_forecast" {
		return errorPayload(fmt.Sprintf("Unknown command '%s'", req.Command)), nil
	}

	from, err := domain.ParseTime(req.From)
	if err != nil {
		return errorPayload("Invalid window"), nil
	}
	to, err := domain.ParseTime(req.To)
	if err != nil {
		return errorPayload("Invalid window"), nil
	}

	region := req.Region
	if region == "" {
		region = "GB"
	}

	series := e.agent.Forecast(rc.Context(), from, to, region)
	resp := forecastResponse{
		CarbonSeries: series.Carbon,
		PriceSeries:  series.Price,
	}
	if resp.CarbonSeries == nil {
		resp.CarbonSeries = []domain.CarbonPoint{}
	}
	if resp.PriceSeries == nil {
		resp.PriceSeries = []domain.PricePoint{}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return errorPayload(fmt.Sprintf("encoding response: %v", err)), nil
	}
	return string(out), nil
}

func errorPayload(message string) string {
	out, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	return string(out)
}
