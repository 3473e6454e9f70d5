package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/agents/compute"
	"github.com/elevated-systems/caco-planner/pkg/caco/agents/coordination"
	"github.com/elevated-systems/caco-planner/pkg/caco/agents/grid"
	"github.com/elevated-systems/caco-planner/pkg/caco/cache"
	"github.com/elevated-systems/caco-planner/pkg/caco/config"
	"github.com/elevated-systems/caco-planner/pkg/caco/gridsource"
	"github.com/elevated-systems/caco-planner/pkg/caco/history"
	"github.com/elevated-systems/caco-planner/pkg/caco/oracle"
	"github.com/elevated-systems/caco-planner/pkg/caco/telemetry"
)

var version = "dev"

func main() {
	var (
		agentName        = pflag.String("agent", "all", "Agent to run: coordination, compute, grid, or all")
		coordinationPort = pflag.Int("coordination-port", 9001, "Listen port for the coordination agent")
		computePort      = pflag.Int("compute-port", 9002, "Listen port for the compute agent")
		gridPort         = pflag.Int("grid-port", 9003, "Listen port for the grid agent")
	)

	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		klog.ErrorS(err, "Failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		klog.ErrorS(err, "Invalid configuration")
		os.Exit(1)
	}

	klog.InfoS("Starting CACO planner", "version", version, "agent", *agentName)

	errCh := make(chan error, 3)

	runGrid := *agentName == "grid" || *agentName == "all"
	runCompute := *agentName == "compute" || *agentName == "all"
	runCoordination := *agentName == "coordination" || *agentName == "all"
	if !runGrid && !runCompute && !runCoordination {
		klog.ErrorS(nil, "Unknown agent", "agent", *agentName)
		os.Exit(1)
	}

	if runGrid {
		carbon := gridsource.NewCarbonClient(cfg.Upstream.CarbonIntensityURL, cfg.Upstream.Timeout)
		price := gridsource.NewPriceClient(cfg.Upstream.BMRSURL, cfg.Upstream.BMRSAPIKey, cfg.Upstream.Timeout)

		opts := []grid.Option{
			grid.WithCache(cache.New(cfg.Upstream.CacheTTL, cfg.Upstream.CacheMaxAge)),
		}
		if cfg.History.DatabasePath != "" {
			recorder, err := history.NewSQLiteRecorder(cfg.History.DatabasePath)
			if err != nil {
				klog.ErrorS(err, "Failed to open grid history database", "path", cfg.History.DatabasePath)
				os.Exit(1)
			}
			defer recorder.Close()
			opts = append(opts, grid.WithRecorder(recorder))
		}

		agent := grid.NewAgent(carbon, price, opts...)
		serve(errCh, "grid", *gridPort, a2a.NewServer(grid.Card(cfg.Agents.GridURL, version), grid.NewExecutor(agent)))
	}

	if runCompute {
		agent := compute.NewAgent(cfg.Compute.BootstrapJobsPath)
		serve(errCh, "compute", *computePort, a2a.NewServer(compute.Card(cfg.Agents.ComputeURL, version), compute.NewExecutor(agent)))
	}

	if runCoordination {
		opts := []coordination.Option{}
		if cfg.Oracle.Enabled() {
			klog.InfoS("Weight oracle enabled", "provider", cfg.Oracle.Provider, "model", cfg.Oracle.Model)
			opts = append(opts, coordination.WithOracle(
				oracle.NewChatOracle(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, 30*time.Second)))
		}
		if cfg.Telemetry.EventCSVPath != "" {
			opts = append(opts, coordination.WithEventLogger(telemetry.NewCsvEventLogger(cfg.Telemetry.EventCSVPath)))
		}

		agent := coordination.NewAgent(*cfg, opts...)
		serve(errCh, "coordination", *coordinationPort, a2a.NewServer(coordination.Card(cfg.Agents.CoordinationURL, version), coordination.NewExecutor(agent)))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		klog.InfoS("Shutting down", "signal", sig.String())
	case err := <-errCh:
		klog.ErrorS(err, "Agent server failed")
		os.Exit(1)
	}
}

func serve(errCh chan<- error, name string, port int, server *a2a.Server) {
	addr := fmt.Sprintf(":%d", port)
	go func() {
		if err := server.ListenAndServe(addr); err != nil {
			errCh <- fmt.Errorf("%s agent: %v", name, err)
		}
	}()
}
