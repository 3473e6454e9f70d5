package engine

import (
	"math"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// flexOffersFromSchedule derives one marketable flex offer per flexible
// scheduled job. The offer window is the committed placement window, and
// the offer price is the window's mean energy price marked up by the carbon
// weight, floored at 1 GBP/MWh.
func flexOffersFromSchedule(scheduled []domain.ScheduledJob, tl *timeline, carbonPenaltyWeight float64) []domain.FlexOffer {
	var offers []domain.FlexOffer
	for _, job := range scheduled {
		if !job.IsFlexibleOffer {
			continue
		}

		avgPriceKWh := averageBetween(tl.slots, tl.price, job.StartTime, job.EndTime)
		avgCarbon := averageBetween(tl.slots, tl.carbon, job.StartTime, job.EndTime)

		clusterID := "default"
		if v, ok := job.Metadata["cluster_id"].(string); ok && v != "" {
			clusterID = v
		}

		offers = append(offers, domain.FlexOffer{
			OfferID:                   "flex-" + job.JobID,
			ClusterID:                 clusterID,
			PowerKW:                   job.PowerKW,
			DurationHours:             domain.HoursBetween(job.StartTime, job.EndTime),
			EarliestStart:             job.StartTime,
			LatestEnd:                 job.EndTime,
			MinActivationNoticeMin:    MinActivationNoticeMinutes,
			PriceGBPPerMWh:            math.Max(1.0, avgPriceKWh*1000*(1+carbonPenaltyWeight/10)),
			CarbonIntensityCapGPerKWh: avgCarbon,
			Tags: map[string]string{
				"job_id":          job.JobID,
				"scheduled_start": domain.FormatTime(job.StartTime),
			},
		})
	}
	return offers
}
