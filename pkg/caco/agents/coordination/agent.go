// Package coordination implements the planning orchestrator. One planning
// cycle fans out to the Grid and Compute agents concurrently, resolves the
// scheduling weights (static, payload overrides, optional oracle), runs the
// placement engine, and caches the result for catalog export.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/clock"
	"github.com/elevated-systems/caco-planner/pkg/caco/config"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
	"github.com/elevated-systems/caco-planner/pkg/caco/engine"
	"github.com/elevated-systems/caco-planner/pkg/caco/metrics"
	"github.com/elevated-systems/caco-planner/pkg/caco/oracle"
	"github.com/elevated-systems/caco-planner/pkg/caco/telemetry"
)

// DefaultHorizonHours is the planning window length when the request gives
// neither an end time nor a horizon.
const DefaultHorizonHours = 24

// Snapshot is the outcome of the last successful planning cycle. It is
// replaced wholesale, never mutated, so catalog exports always observe a
// consistent schedule/offer pair.
type Snapshot struct {
	WindowFrom time.Time
	WindowTo   time.Time
	Scheduled  []domain.ScheduledJob
	FlexOffers []domain.FlexOffer
}

// Agent orchestrates planning cycles.
type Agent struct {
	cfg     config.Config
	client  *a2a.Client
	clk     clock.Clock
	advisor oracle.Oracle
	events  *telemetry.CsvEventLogger

	last atomic.Pointer[Snapshot]
}

// Option configures the agent.
type Option func(*Agent)

// WithClock injects a clock, used to default the planning window.
func WithClock(c clock.Clock) Option {
	return func(a *Agent) { a.clk = c }
}

// WithClient injects the agent RPC client.
func WithClient(c *a2a.Client) Option {
	return func(a *Agent) { a.client = c }
}

// WithOracle enables the weight oracle.
func WithOracle(o oracle.Oracle) Option {
	return func(a *Agent) { a.advisor = o }
}

// WithEventLogger enables CSV telemetry.
func WithEventLogger(l *telemetry.CsvEventLogger) Option {
	return func(a *Agent) { a.events = l }
}

// NewAgent builds a coordination agent from config.
func NewAgent(cfg config.Config, opts ...Option) *Agent {
	a := &Agent{
		cfg:    cfg,
		client: a2a.NewClient(),
		clk:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LastSnapshot returns the latest planning outcome, or nil before the first
// successful cycle.
func (a *Agent) LastSnapshot() *Snapshot {
	return a.last.Load()
}

// strategy describes the weights a cycle actually used and where they came
// from.
type strategy struct {
	engine.Weights
	Source string `json:"source"`
	Reason string `json:"reason,omitempty"`
}

type planningInput struct {
	from, to   time.Time
	region     string
	clusterID  string
	gridURL    string
	computeURL string
	overrides  *weightOverrides
}

type weightOverrides struct {
	CarbonPenaltyWeight *float64 `json:"carbon_penalty_weight"`
	SLAPenaltyWeight    *float64 `json:"sla_penalty_weight"`
	MaxPowerKW          *float64 `json:"max_power_kw"`
	UseOracle           *bool    `json:"use_oracle"`
}

type gridForecast struct {
	CarbonSeries []domain.CarbonPoint `json:"carbon_series"`
	PriceSeries  []domain.PricePoint  `json:"price_series"`
}

type flexibilityProfile struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Jobs    []domain.Job `json:"jobs"`
}

// plan runs one planning cycle and returns the response payload fields.
func (a *Agent) plan(ctx context.Context, contextID string, in planningInput) (map[string]interface{}, error) {
	started := time.Now()

	forecast, profile, err := a.fanOut(ctx, contextID, in)
	if err != nil {
		metrics.PlanningCycles.WithLabelValues("error").Inc()
		return nil, err
	}
	if profile.Status != "ok" {
		metrics.PlanningCycles.WithLabelValues("error").Inc()
		return nil, &computeError{profile: profile}
	}

	weights, strat := a.resolveWeights(ctx, in, forecast, profile.Jobs)

	scheduled, offers := engine.Optimize(profile.Jobs, forecast.CarbonSeries, forecast.PriceSeries, weights)

	snapshot := &Snapshot{
		WindowFrom: in.from,
		WindowTo:   in.to,
		Scheduled:  scheduled,
		FlexOffers: offers,
	}
	a.last.Store(snapshot)

	metrics.PlanningCycles.WithLabelValues("success").Inc()
	metrics.PlanningDuration.Observe(time.Since(started).Seconds())
	metrics.ScheduledJobs.Set(float64(len(scheduled)))
	metrics.FlexOffers.Set(float64(len(offers)))

	a.events.Log(telemetry.Event{
		Name:                "planning_cycle",
		Region:              in.region,
		ClusterID:           in.clusterID,
		ScheduledJobs:       len(scheduled),
		FlexOffers:          len(offers),
		CarbonPenaltyWeight: weights.CarbonPenaltyWeight,
		SLAPenaltyWeight:    weights.SLAPenaltyWeight,
		MaxPowerKW:          weights.MaxPowerKW,
		Detail:              strat.Source,
	})

	klog.InfoS("Planning cycle complete",
		"region", in.region,
		"cluster", in.clusterID,
		"jobs", len(profile.Jobs),
		"scheduled", len(scheduled),
		"flexOffers", len(offers),
		"weightSource", strat.Source,
		"duration", time.Since(started).String())

	if scheduled == nil {
		scheduled = []domain.ScheduledJob{}
	}
	if offers == nil {
		offers = []domain.FlexOffer{}
	}
	return map[string]interface{}{
		"status": "success",
		"window": map[string]string{
			"from": domain.FormatTime(in.from),
			"to":   domain.FormatTime(in.to),
		},
		"scheduled_jobs": scheduled,
		"flex_offers":    offers,
		"strategy":       strat,
	}, nil
}

// computeError carries the Compute agent's failing payload back to the
// caller.
type computeError struct {
	profile *flexibilityProfile
}

func (e *computeError) Error() string {
	return fmt.Sprintf("compute agent returned status %q: %s", e.profile.Status, e.profile.Message)
}

// fanOut issues the grid and compute RPCs concurrently and waits for both.
func (a *Agent) fanOut(ctx context.Context, contextID string, in planningInput) (*gridForecast, *flexibilityProfile, error) {
	gridPayload, _ := json.Marshal(map[string]string{
		"command": "get_grid_forecast",
		"from":    domain.FormatTime(in.from),
		"to":      domain.FormatTime(in.to),
		"region":  in.region,
	})
	computePayload, _ := json.Marshal(map[string]string{
		"command":    "get_flexibility_profile",
		"from":       domain.FormatTime(in.from),
		"to":         domain.FormatTime(in.to),
		"cluster_id": in.clusterID,
	})

	var forecast gridForecast
	var profile flexibilityProfile
	var gridErr, computeErr error

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		reply, err := a.client.SendText(ctx, in.gridURL, contextID, string(gridPayload))
		if err != nil {
			gridErr = fmt.Errorf("grid agent: %v", err)
			return
		}
		if err := json.Unmarshal([]byte(reply), &forecast); err != nil {
			gridErr = fmt.Errorf("grid agent reply: %v", err)
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		reply, err := a.client.SendText(ctx, in.computeURL, contextID, string(computePayload))
		if err != nil {
			computeErr = fmt.Errorf("compute agent: %v", err)
			return
		}
		if err := json.Unmarshal([]byte(reply), &profile); err != nil {
			computeErr = fmt.Errorf("compute agent reply: %v", err)
		}
	}()
	<-done
	<-done

	if gridErr != nil {
		return nil, nil, gridErr
	}
	if computeErr != nil {
		return nil, nil, computeErr
	}
	for i := range profile.Jobs {
		profile.Jobs[i].Normalize()
	}
	return &forecast, &profile, nil
}

// resolveWeights layers payload overrides over the configured defaults and
// optionally consults the oracle. Oracle output is clamped; oracle failure
// keeps the static weights.
func (a *Agent) resolveWeights(ctx context.Context, in planningInput, forecast *gridForecast, jobs []domain.Job) (engine.Weights, strategy) {
	weights := engine.Weights{
		CarbonPenaltyWeight: a.cfg.Optimization.CarbonPenaltyWeight,
		SLAPenaltyWeight:    a.cfg.Optimization.SLAPenaltyWeight,
		MaxPowerKW:          a.cfg.Optimization.MaxPowerKW,
	}
	source := "static"
	reason := ""

	useOracle := a.advisor != nil
	if in.overrides != nil {
		if in.overrides.CarbonPenaltyWeight != nil {
			weights.CarbonPenaltyWeight = *in.overrides.CarbonPenaltyWeight
			source = "override"
		}
		if in.overrides.SLAPenaltyWeight != nil {
			weights.SLAPenaltyWeight = *in.overrides.SLAPenaltyWeight
			source = "override"
		}
		if in.overrides.MaxPowerKW != nil {
			weights.MaxPowerKW = *in.overrides.MaxPowerKW
			source = "override"
		}
		if in.overrides.UseOracle != nil {
			useOracle = useOracle && *in.overrides.UseOracle
		}
	}

	if useOracle {
		suggestion, err := a.advisor.SuggestWeights(ctx,
			oracle.GridSummary(forecast.CarbonSeries, forecast.PriceSeries),
			oracle.DemandSummary(jobs))
		if err != nil {
			klog.InfoS("Weight oracle failed, keeping static weights", "error", err)
			a.events.Log(telemetry.Event{
				Name:      "oracle_failure",
				Region:    in.region,
				ClusterID: in.clusterID,
				Detail:    err.Error(),
			})
		} else {
			suggestion.Clamp()
			weights = engine.Weights{
				CarbonPenaltyWeight: suggestion.CarbonPenaltyWeight,
				SLAPenaltyWeight:    suggestion.SLAPenaltyWeight,
				MaxPowerKW:          suggestion.MaxPowerKW,
			}
			source = "oracle"
			reason = suggestion.Reason
			a.events.Log(telemetry.Event{
				Name:                "oracle_suggestion",
				Region:              in.region,
				ClusterID:           in.clusterID,
				CarbonPenaltyWeight: weights.CarbonPenaltyWeight,
				SLAPenaltyWeight:    weights.SLAPenaltyWeight,
				MaxPowerKW:          weights.MaxPowerKW,
				Detail:              suggestion.Reason,
			})
		}
	}

	return weights, strategy{Weights: weights, Source: source, Reason: reason}
}

// Card describes the agent for discovery.
func Card(baseURL, version string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:        "caco-coordination-agent",
		Description: "Planning cycle orchestration for carbon-aware compute scheduling",
		URL:         baseURL,
		Version:     version,
	}
}
