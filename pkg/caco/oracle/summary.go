package oracle

import (
	"fmt"
	"strings"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// GridSummary renders a short textual digest of the forecast series for
// the oracle prompt.
func GridSummary(carbon []domain.CarbonPoint, price []domain.PricePoint) string {
	var b strings.Builder

	if len(carbon) > 0 {
		min, max, sum := carbon[0].ForecastGPerKWh, carbon[0].ForecastGPerKWh, 0.0
		for _, p := range carbon {
			if p.ForecastGPerKWh < min {
				min = p.ForecastGPerKWh
			}
			if p.ForecastGPerKWh > max {
				max = p.ForecastGPerKWh
			}
			sum += p.ForecastGPerKWh
		}
		fmt.Fprintf(&b, "Carbon intensity over %d half-hour slots: min %.0f, mean %.0f, max %.0f g/kWh.\n",
			len(carbon), min, sum/float64(len(carbon)), max)
	} else {
		b.WriteString("No carbon forecast available.\n")
	}

	if len(price) > 0 {
		min, max, sum := price[0].SystemBuyPriceGBPMWh, price[0].SystemBuyPriceGBPMWh, 0.0
		for _, p := range price {
			if p.SystemBuyPriceGBPMWh < min {
				min = p.SystemBuyPriceGBPMWh
			}
			if p.SystemBuyPriceGBPMWh > max {
				max = p.SystemBuyPriceGBPMWh
			}
			sum += p.SystemBuyPriceGBPMWh
		}
		fmt.Fprintf(&b, "System buy price over %d points: min %.1f, mean %.1f, max %.1f GBP/MWh.",
			len(price), min, sum/float64(len(price)), max)
	} else {
		b.WriteString("No price forecast available.")
	}

	return b.String()
}

// DemandSummary renders a short textual digest of the pending workload for
// the oracle prompt.
func DemandSummary(jobs []domain.Job) string {
	if len(jobs) == 0 {
		return "No pending jobs."
	}

	var totalEnergy float64
	flexible := 0
	for _, job := range jobs {
		totalEnergy += job.PowerKW * job.DurationHours
		if job.IsFlexible() {
			flexible++
		}
	}
	return fmt.Sprintf("%d pending jobs (%d flexible), total %.1f kWh of demand.",
		len(jobs), flexible, totalEnergy)
}
