// Package engine implements the heuristic placement core: a greedy,
// multi-objective placer over a half-hour-quantized timeline that balances
// energy price, embedded carbon, and SLA lateness under an aggregate power
// cap, then derives marketable flex offers from the flexible placements.
//
// The engine is deliberately heuristic: it scans candidate starts per job
// in priority order and commits the cheapest feasible one. It is a pure
// function of its inputs; identical inputs produce identical schedules.
package engine

import (
	"math"
	"sort"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// Weights are the tunable objective parameters for one planning cycle.
type Weights struct {
	CarbonPenaltyWeight float64 `json:"carbon_penalty_weight"`
	SLAPenaltyWeight    float64 `json:"sla_penalty_weight"`
	MaxPowerKW          float64 `json:"max_power_kw"`
}

// MinActivationNoticeMinutes is the activation notice attached to every
// flex offer.
const MinActivationNoticeMinutes = 60

// Optimize places jobs against the grid series and returns the schedule
// plus the flex offers derived from flexible placements. Infeasible jobs
// are dropped silently; internal faults (for example an empty timeline)
// yield empty results, never an error.
func Optimize(jobs []domain.Job, carbonSeries []domain.CarbonPoint, priceSeries []domain.PricePoint, weights Weights) ([]domain.ScheduledJob, []domain.FlexOffer) {
	if len(jobs) == 0 {
		return nil, nil
	}

	tl := buildTimeline(carbonSeries, priceSeries)
	if tl.empty() {
		klog.V(2).InfoS("Empty timeline, nothing to schedule",
			"carbonPoints", len(carbonSeries), "pricePoints", len(priceSeries))
		return nil, nil
	}

	powerUsage := make([]float64, len(tl.slots))
	ordered := orderJobs(jobs)

	var scheduled []domain.ScheduledJob
	for _, job := range ordered {
		startIndex, lateness, ok := selectStartIndex(job, tl, powerUsage, weights)
		if !ok {
			klog.V(2).InfoS("Dropping infeasible job",
				"jobID", job.JobID, "durationHours", job.DurationHours)
			continue
		}

		slotCount := job.DurationSlots()
		startTime := tl.slots[startIndex]
		endTime := tl.slots[startIndex+slotCount-1].Add(domain.SlotDuration)

		var priceCost, carbonCost float64
		for offset := 0; offset < slotCount; offset++ {
			idx := startIndex + offset
			slotEnergy := job.PowerKW * domain.SlotHours
			priceCost += tl.priceAt(tl.slots[idx]) * slotEnergy
			carbonCost += tl.carbonAt(tl.slots[idx]) * slotEnergy / 1000 // g -> kg
			powerUsage[idx] += job.PowerKW
		}

		scheduled = append(scheduled, domain.ScheduledJob{
			JobID:            job.JobID,
			StartTime:        startTime,
			EndTime:          endTime,
			PowerKW:          job.PowerKW,
			ExpectedCostGBP:  round2(priceCost),
			ExpectedCarbonKg: round3(carbonCost),
			IsFlexibleOffer:  job.IsFlexible(),
			Metadata: map[string]interface{}{
				"lateness_hours": lateness,
				"cluster_id":     job.ClusterID,
				"priority":       job.Priority,
			},
		})
	}

	offers := flexOffersFromSchedule(scheduled, tl, weights.CarbonPenaltyWeight)
	return scheduled, offers
}

// orderJobs sorts by descending priority, then shorter duration (better
// bin-packing), then arrival for determinism. The input slice is not
// mutated.
func orderJobs(jobs []domain.Job) []domain.Job {
	ordered := make([]domain.Job, len(jobs))
	copy(ordered, jobs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.DurationHours != b.DurationHours {
			return a.DurationHours < b.DurationHours
		}
		return a.ArrivalTime.Before(b.ArrivalTime)
	})
	return ordered
}

// selectStartIndex scans every feasible start slot for the job and returns
// the index with the strictly smallest score; ties keep the earliest start.
func selectStartIndex(job domain.Job, tl *timeline, powerUsage []float64, weights Weights) (int, float64, bool) {
	slotCount := job.DurationSlots()
	bestIndex := -1
	bestScore := math.Inf(1)
	bestLateness := 0.0

	for idx, slotStart := range tl.slots {
		if idx+slotCount > len(tl.slots) {
			break
		}
		if slotStart.Before(job.ArrivalTime) {
			continue
		}

		slotEnd := tl.slots[idx+slotCount-1].Add(domain.SlotDuration)
		lateness := math.Max(0, domain.HoursBetween(job.Deadline, slotEnd))
		// A zero deferral bound is treated as unbounded here; see the
		// lateness semantics note in DESIGN.md.
		if lateness > job.MaxDeferralHours && job.MaxDeferralHours > 0 {
			continue
		}

		if exceedsPowerCap(powerUsage, idx, slotCount, job.PowerKW, weights.MaxPowerKW) {
			continue
		}

		score := 0.0
		for offset := 0; offset < slotCount; offset++ {
			ts := tl.slots[idx+offset]
			slotEnergy := job.PowerKW * domain.SlotHours
			score += tl.priceAt(ts) * slotEnergy
			score += weights.CarbonPenaltyWeight * tl.carbonAt(ts) * slotEnergy / 1000
		}
		score += (weights.SLAPenaltyWeight + job.SLAPenaltyPerHour) * lateness

		if score < bestScore {
			bestScore = score
			bestIndex = idx
			bestLateness = lateness
		}
	}

	if bestIndex < 0 {
		return 0, 0, false
	}
	return bestIndex, bestLateness, true
}

func exceedsPowerCap(powerUsage []float64, start, slotCount int, powerKW, maxPowerKW float64) bool {
	for offset := 0; offset < slotCount; offset++ {
		if powerUsage[start+offset]+powerKW > maxPowerKW {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
