// Package compute implements the workload ledger agent: it ingests job
// specs, retains them in memory keyed by job id, and projects flexibility
// profiles for a planning window on request.
package compute

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
	"github.com/elevated-systems/caco-planner/pkg/caco/metrics"
)

// Agent holds the in-memory job ledger. Ingests are last-write-wins by
// job id; insertion order is preserved for deterministic projections.
type Agent struct {
	mu    sync.RWMutex
	jobs  map[string]domain.Job
	order []string
}

// NewAgent returns an empty ledger. If bootstrapPath is non-empty and the
// file exists, its jobs are preloaded; a missing file is not an error.
func NewAgent(bootstrapPath string) *Agent {
	a := &Agent{jobs: make(map[string]domain.Job)}
	if bootstrapPath != "" {
		if err := a.loadBootstrap(bootstrapPath); err != nil {
			klog.ErrorS(err, "Failed to load bootstrap jobs", "path", bootstrapPath)
		}
	}
	return a
}

func (a *Agent) loadBootstrap(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			klog.V(2).InfoS("No bootstrap jobs file", "path", path)
			return nil
		}
		return err
	}

	var jobs []domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		// Also accept a wrapped {"jobs": [...]} document.
		var wrapped struct {
			Jobs []domain.Job `json:"jobs"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return fmt.Errorf("parsing bootstrap jobs: %w", err)
		}
		jobs = wrapped.Jobs
	}

	n := a.ingest(jobs)
	klog.InfoS("Loaded bootstrap jobs", "path", path, "count", n)
	return nil
}

// ingest merges jobs into the ledger and returns how many were applied.
func (a *Agent) ingest(jobs []domain.Job) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	applied := 0
	for _, job := range jobs {
		if job.JobID == "" {
			continue
		}
		job.Normalize()
		if _, exists := a.jobs[job.JobID]; !exists {
			a.order = append(a.order, job.JobID)
		}
		a.jobs[job.JobID] = job
		applied++
	}
	metrics.LedgerJobs.Set(float64(len(a.jobs)))
	return applied
}

// snapshot returns the retained jobs in insertion order.
func (a *Agent) snapshot() []domain.Job {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Job, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.jobs[id])
	}
	return out
}

// profileJob is a ledger job augmented with its window projection.
type profileJob struct {
	domain.Job
	EarliestStart time.Time `json:"earliest_start"`
	LatestEnd     time.Time `json:"latest_end"`
	SlackHours    float64   `json:"slack_hours"`
	IsFlexible    bool      `json:"is_flexible"`
}

// profile selects jobs overlapping [from, to], optionally filtered by
// cluster, and computes their placement slack inside the window.
func (a *Agent) profile(from, to time.Time, clusterID string) []profileJob {
	var out []profileJob
	for _, job := range a.snapshot() {
		if job.Deadline.Before(from) || job.ArrivalTime.After(to) {
			continue
		}
		if clusterID != "" && job.ClusterID != clusterID {
			continue
		}

		earliest := job.ArrivalTime
		if from.After(earliest) {
			earliest = from
		}
		latest := job.Deadline
		if to.Before(latest) {
			latest = to
		}
		slack := math.Max(0, domain.HoursBetween(earliest, latest)-job.DurationHours)

		out = append(out, profileJob{
			Job:           job,
			EarliestStart: domain.EnsureUTC(earliest),
			LatestEnd:     domain.EnsureUTC(latest),
			SlackHours:    math.Round(slack*100) / 100,
			IsFlexible:    job.IsFlexible(),
		})
	}
	return out
}

// Card describes the agent for discovery.
func Card(baseURL, version string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:        "caco-compute-agent",
		Description: "Workload ledger and flexibility projection for CACO planning",
		URL:         baseURL,
		Version:     version,
	}
}
