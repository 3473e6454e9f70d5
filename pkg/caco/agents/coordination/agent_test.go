package coordination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/agents/compute"
	"github.com/elevated-systems/caco-planner/pkg/caco/agents/grid"
	"github.com/elevated-systems/caco-planner/pkg/caco/clock"
	"github.com/elevated-systems/caco-planner/pkg/caco/config"
	"github.com/elevated-systems/caco-planner/pkg/caco/gridsource"
	"github.com/elevated-systems/caco-planner/pkg/caco/oracle"
)

// failingHTTP simulates a dead upstream so the grid agent serves its
// synthetic fallback series.
type failingHTTP struct{}

func (failingHTTP) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(bytes.NewReader([]byte("upstream down"))),
	}, nil
}

// testHarness hosts real compute and grid agents on loopback servers and a
// coordination agent pointed at them.
type testHarness struct {
	executor *Executor
	compute  *compute.Agent
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()

	computeAgent := compute.NewAgent("")
	computeSrv := httptest.NewServer(a2a.NewServer(compute.Card("", "test"), compute.NewExecutor(computeAgent)).Handler())
	t.Cleanup(computeSrv.Close)

	carbon := gridsource.NewCarbonClient("https://carbon.test", time.Second, gridsource.WithCarbonHTTPClient(failingHTTP{}))
	price := gridsource.NewPriceClient("https://price.test", "", time.Second, gridsource.WithPriceHTTPClient(failingHTTP{}))
	gridAgent := grid.NewAgent(carbon, price)
	gridSrv := httptest.NewServer(a2a.NewServer(grid.Card("", "test"), grid.NewExecutor(gridAgent)).Handler())
	t.Cleanup(gridSrv.Close)

	cfg := config.Config{
		Agents: config.AgentsConfig{
			ComputeURL: computeSrv.URL,
			GridURL:    gridSrv.URL,
		},
		Optimization: config.OptimizationConfig{
			CarbonPenaltyWeight: 0.5,
			SLAPenaltyWeight:    1.0,
			MaxPowerKW:          10000,
		},
	}

	opts = append([]Option{WithClock(clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))}, opts...)
	agent := NewAgent(cfg, opts...)
	return &testHarness{executor: NewExecutor(agent), compute: computeAgent}
}

func (h *testHarness) execute(t *testing.T, payload string) map[string]interface{} {
	t.Helper()
	out, err := h.executor.Execute(&a2a.RequestContext{ContextID: "ctx-test", Input: payload})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response not JSON: %v\n%s", err, out)
	}
	return resp
}

func (h *testHarness) ingest(t *testing.T, jobs string) {
	t.Helper()
	out, err := compute.NewExecutor(h.compute).Execute(&a2a.RequestContext{
		ContextID: "ctx-ingest",
		Input:     fmt.Sprintf(`{"command":"ingest_jobs","jobs":%s}`, jobs),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var resp map[string]interface{}
	json.Unmarshal([]byte(out), &resp)
	if resp["status"] != "ok" {
		t.Fatalf("ingest status = %v", resp["status"])
	}
}

func TestPlanningCycleWithGridFallback(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, `[
		{"job_id":"j1","arrival_time":"2024-01-01T00:00:00Z","deadline":"2024-01-01T06:00:00Z",
		 "duration_hours":1,"power_kw":100,"max_deferral_hours":2,"priority":1}
	]`)

	resp := h.execute(t, `{"command":"run_caco_planning",
		"from":"2024-01-01T00:00:00Z","to":"2024-01-01T12:00:00Z",
		"region":"GB","cluster_id":"default",
		"optimization":{"carbon_penalty_weight":2.5}}`)

	if resp["status"] != "success" {
		t.Fatalf("status = %v: %v", resp["status"], resp["message"])
	}

	window := resp["window"].(map[string]interface{})
	if window["from"] != "2024-01-01T00:00:00Z" || window["to"] != "2024-01-01T12:00:00Z" {
		t.Errorf("window = %v", window)
	}

	// Upstreams are down; the schedule is built against the synthetic
	// fallback series.
	scheduled := resp["scheduled_jobs"].([]interface{})
	if len(scheduled) != 1 {
		t.Fatalf("scheduled = %d, want 1", len(scheduled))
	}
	offers := resp["flex_offers"].([]interface{})
	if len(offers) != 1 {
		t.Fatalf("offers = %d, want 1", len(offers))
	}
	if offers[0].(map[string]interface{})["offer_id"] != "flex-j1" {
		t.Errorf("offer = %v", offers[0])
	}

	strategy := resp["strategy"].(map[string]interface{})
	if strategy["carbon_penalty_weight"].(float64) != 2.5 {
		t.Errorf("strategy carbon weight = %v, want override 2.5", strategy["carbon_penalty_weight"])
	}
	if strategy["sla_penalty_weight"].(float64) != 1.0 || strategy["max_power_kw"].(float64) != 10000 {
		t.Errorf("strategy defaults = %v", strategy)
	}
	if strategy["source"] != "override" {
		t.Errorf("strategy source = %v", strategy["source"])
	}
}

func TestPlanningDefaultsWindowFromClock(t *testing.T) {
	h := newHarness(t)

	resp := h.execute(t, `{"command":"run_caco_planning","region":"GB","cluster_id":"default"}`)
	if resp["status"] != "success" {
		t.Fatalf("status = %v", resp["status"])
	}
	window := resp["window"].(map[string]interface{})
	if window["from"] != "2024-01-01T00:00:00Z" {
		t.Errorf("window from = %v, want clock now", window["from"])
	}
	if window["to"] != "2024-01-02T00:00:00Z" {
		t.Errorf("window to = %v, want now + 24h", window["to"])
	}
}

func TestPlanningHorizonHours(t *testing.T) {
	h := newHarness(t)

	resp := h.execute(t, `{"command":"run_caco_planning","horizon_hours":6,"region":"GB"}`)
	window := resp["window"].(map[string]interface{})
	if window["to"] != "2024-01-01T06:00:00Z" {
		t.Errorf("window to = %v, want now + 6h", window["to"])
	}
}

func TestExportBecknCatalog(t *testing.T) {
	h := newHarness(t)

	// Before any cycle: empty list, not an error.
	resp := h.execute(t, `{"command":"export_beckn_catalog"}`)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v", resp["status"])
	}
	if len(resp["flex_offers"].([]interface{})) != 0 {
		t.Errorf("offers before planning = %v", resp["flex_offers"])
	}

	h.ingest(t, `[
		{"job_id":"j1","arrival_time":"2024-01-01T00:00:00Z","deadline":"2024-01-01T06:00:00Z",
		 "duration_hours":0.5,"power_kw":100,"max_deferral_hours":2}
	]`)
	h.execute(t, `{"command":"run_caco_planning","from":"2024-01-01T00:00:00Z","to":"2024-01-01T12:00:00Z","region":"GB"}`)

	resp = h.execute(t, `{"command":"export_beckn_catalog"}`)
	offers := resp["flex_offers"].([]interface{})
	if len(offers) != 1 {
		t.Fatalf("offers after planning = %d, want 1", len(offers))
	}
	if offers[0].(map[string]interface{})["min_activation_notice_minutes"].(float64) != 60 {
		t.Errorf("offer = %v", offers[0])
	}
}

// errorExecutor stands in for a compute agent whose ledger rejects the
// request.
type errorExecutor struct{}

func (errorExecutor) Execute(*a2a.RequestContext) (string, error) {
	return `{"status":"error","message":"ledger unavailable"}`, nil
}

func TestComputeErrorFailsCycle(t *testing.T) {
	badCompute := httptest.NewServer(a2a.NewServer(compute.Card("", "test"), errorExecutor{}).Handler())
	t.Cleanup(badCompute.Close)

	h := newHarness(t)
	resp := h.execute(t, fmt.Sprintf(`{"command":"run_caco_planning",
		"from":"2024-01-01T00:00:00Z","to":"2024-01-01T12:00:00Z","region":"GB",
		"endpoints":{"compute_agent_url":"%s"}}`, badCompute.URL))

	if resp["status"] != "error" {
		t.Fatalf("status = %v, want error", resp["status"])
	}
	inner := resp["compute_response"].(map[string]interface{})
	if inner["message"] != "ledger unavailable" {
		t.Errorf("inner payload = %v", inner)
	}
}

func TestInvalidWindow(t *testing.T) {
	h := newHarness(t)
	resp := h.execute(t, `{"command":"run_caco_planning","from":"yesterday","region":"GB"}`)
	if resp["status"] != "error" || resp["message"] != "Invalid window" {
		t.Errorf("resp = %v", resp)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	resp := h.execute(t, `{"command":"publish_catalog"}`)
	if resp["status"] != "error" || resp["message"] != "Unknown command 'publish_catalog'" {
		t.Errorf("resp = %v", resp)
	}
}

// fixedOracle returns one canned suggestion.
type fixedOracle struct {
	suggestion oracle.Suggestion
	err        error
}

func (f fixedOracle) SuggestWeights(context.Context, string, string) (*oracle.Suggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.suggestion
	return &s, nil
}

func TestOracleWeightsClamped(t *testing.T) {
	h := newHarness(t, WithOracle(fixedOracle{suggestion: oracle.Suggestion{
		CarbonPenaltyWeight: 42,
		SLAPenaltyWeight:    3,
		MaxPowerKW:          10,
		Reason:              "stress test",
	}}))

	resp := h.execute(t, `{"command":"run_caco_planning","from":"2024-01-01T00:00:00Z","to":"2024-01-01T12:00:00Z","region":"GB"}`)
	strategy := resp["strategy"].(map[string]interface{})
	if strategy["source"] != "oracle" {
		t.Fatalf("source = %v", strategy["source"])
	}
	if strategy["carbon_penalty_weight"].(float64) != 10 {
		t.Errorf("carbon weight = %v, want clamped 10", strategy["carbon_penalty_weight"])
	}
	if strategy["max_power_kw"].(float64) != 1000 {
		t.Errorf("power cap = %v, want clamped 1000", strategy["max_power_kw"])
	}
	if strategy["reason"] != "stress test" {
		t.Errorf("reason = %v", strategy["reason"])
	}
}

func TestOracleFailureKeepsStaticWeights(t *testing.T) {
	h := newHarness(t, WithOracle(fixedOracle{err: fmt.Errorf("model unavailable")}))

	resp := h.execute(t, `{"command":"run_caco_planning","from":"2024-01-01T00:00:00Z","to":"2024-01-01T12:00:00Z","region":"GB"}`)
	if resp["status"] != "success" {
		t.Fatalf("status = %v", resp["status"])
	}
	strategy := resp["strategy"].(map[string]interface{})
	if strategy["source"] != "static" {
		t.Errorf("source = %v, want static", strategy["source"])
	}
	if strategy["carbon_penalty_weight"].(float64) != 0.5 {
		t.Errorf("carbon weight = %v", strategy["carbon_penalty_weight"])
	}
}
