package gridsource

import (
	"time"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// FallbackCarbonPeriods is the length of the synthetic carbon series: 24
// hours of half-hour slots.
const FallbackCarbonPeriods = 48

// FallbackCarbonSeries generates the deterministic synthetic carbon series
// used whenever the upstream forecast is unavailable. Slots start at the
// hour floor of start and follow a 16-slot sawtooth between 80 and 100
// g/kWh.
func FallbackCarbonSeries(start time.Time, periods int) []domain.CarbonPoint {
	base := domain.HourFloor(start)
	series := make([]domain.CarbonPoint, 0, periods)
	for slot := 0; slot < periods; slot++ {
		forecast := 80 + 20*(float64(slot%16)/16)
		index := "low"
		if forecast >= 100 {
			index = "moderate"
		}
		series = append(series, domain.CarbonPoint{
			Timestamp:       base.Add(time.Duration(slot) * domain.SlotDuration),
			ForecastGPerKWh: forecast,
			Index:           index,
		})
	}
	return series
}

// FallbackPriceSeries generates the deterministic synthetic price series
// covering the hour floors of start through end inclusive, at half-hour
// resolution. Buy prices cycle over a 12-slot sawtooth from 100 GBP/MWh;
// sell tracks buy at a fixed 30 GBP/MWh discount.
func FallbackPriceSeries(start, end time.Time) []domain.PricePoint {
	current := domain.HourFloor(start)
	last := domain.HourFloor(end)
	var series []domain.PricePoint
	for slot := 0; !current.After(last); slot++ {
		buy := 100 + 20*(float64(slot%12)/12)
		series = append(series, domain.PricePoint{
			Timestamp:             current,
			SystemBuyPriceGBPMWh:  buy,
			SystemSellPriceGBPMWh: buy - 30,
		})
		current = current.Add(domain.SlotDuration)
	}
	return series
}
