package domain

import (
	"math"
	"time"
)

// Job is a unit of deferrable compute work. Jobs are ingested into the
// compute ledger and never mutated afterwards.
type Job struct {
	JobID             string                 `json:"job_id"`
	ClusterID         string                 `json:"cluster_id"`
	WorkloadType      string                 `json:"workload_type"`
	ArrivalTime       time.Time              `json:"arrival_time"`
	Deadline          time.Time              `json:"deadline"`
	DurationHours     float64                `json:"duration_hours"`
	PowerKW           float64                `json:"power_kw"`
	MaxDeferralHours  float64                `json:"max_deferral_hours"`
	Priority          int                    `json:"priority"`
	SLAPenaltyPerHour float64                `json:"sla_penalty_per_hour"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Normalize fills in defaults for optional fields and pins timestamps to
// UTC. Call after decoding a job from the wire.
func (j *Job) Normalize() {
	if j.WorkloadType == "" {
		j.WorkloadType = "batch"
	}
	if j.ClusterID == "" {
		j.ClusterID = "default"
	}
	j.ArrivalTime = EnsureUTC(j.ArrivalTime)
	j.Deadline = EnsureUTC(j.Deadline)
}

// DurationSlots is the number of half-hour slots the job occupies.
func (j Job) DurationSlots() int {
	slots := int(math.Round(j.DurationHours * 2))
	if slots < 1 {
		return 1
	}
	return slots
}

// IsFlexible reports whether the job may finish past its deadline and is
// therefore eligible to back a flex offer.
func (j Job) IsFlexible() bool {
	return j.MaxDeferralHours > 0
}

// CarbonPoint is one half-hourly carbon intensity forecast sample.
type CarbonPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	ForecastGPerKWh float64   `json:"forecast_g_per_kwh"`
	Index           string    `json:"index"`
}

// PricePoint is one settlement-period system price sample. Prices may be
// negative during imbalance surpluses.
type PricePoint struct {
	Timestamp             time.Time `json:"timestamp"`
	SystemBuyPriceGBPMWh  float64   `json:"system_buy_price_gbp_per_mwh"`
	SystemSellPriceGBPMWh float64   `json:"system_sell_price_gbp_per_mwh"`
}

// ScheduledJob is a committed placement decision for one job.
type ScheduledJob struct {
	JobID            string                 `json:"job_id"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	PowerKW          float64                `json:"power_kw"`
	ExpectedCostGBP  float64                `json:"expected_cost_gbp"`
	ExpectedCarbonKg float64                `json:"expected_carbon_kg"`
	IsFlexibleOffer  bool                   `json:"is_flexible_offer"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// FlexOffer is a marketable capacity window derived from a flexible
// scheduled job. Offers are projected into the Beckn catalog verbatim.
type FlexOffer struct {
	OfferID                   string            `json:"offer_id"`
	ClusterID                 string            `json:"cluster_id"`
	PowerKW                   float64           `json:"power_kw"`
	DurationHours             float64           `json:"duration_hours"`
	EarliestStart             time.Time         `json:"earliest_start"`
	LatestEnd                 time.Time         `json:"latest_end"`
	MinActivationNoticeMin    int               `json:"min_activation_notice_minutes"`
	PriceGBPPerMWh            float64           `json:"price_gbp_per_mwh"`
	CarbonIntensityCapGPerKWh float64           `json:"carbon_intensity_cap_g_per_kwh"`
	Tags                      map[string]string `json:"tags"`
}
