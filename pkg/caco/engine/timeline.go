package engine

import (
	"sort"
	"time"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// timeline is the ordered union of the carbon and price series timestamps,
// with both lookups forward-filled so every slot has a defined price
// (GBP/kWh) and carbon intensity (g/kWh).
type timeline struct {
	slots  []time.Time
	price  map[int64]float64
	carbon map[int64]float64
}

func key(t time.Time) int64 {
	return t.UnixNano()
}

func buildTimeline(carbonSeries []domain.CarbonPoint, priceSeries []domain.PricePoint) *timeline {
	if len(carbonSeries) == 0 || len(priceSeries) == 0 {
		return &timeline{}
	}

	priceMap := make(map[int64]float64, len(priceSeries))
	for _, point := range priceSeries {
		priceMap[key(point.Timestamp)] = point.SystemBuyPriceGBPMWh / 1000 // GBP/kWh
	}
	carbonMap := make(map[int64]float64, len(carbonSeries))
	for _, point := range carbonSeries {
		carbonMap[key(point.Timestamp)] = point.ForecastGPerKWh
	}

	seen := make(map[int64]bool, len(priceMap)+len(carbonMap))
	var slots []time.Time
	for _, point := range carbonSeries {
		if ts := domain.EnsureUTC(point.Timestamp); !seen[key(ts)] {
			seen[key(ts)] = true
			slots = append(slots, ts)
		}
	}
	for _, point := range priceSeries {
		if ts := domain.EnsureUTC(point.Timestamp); !seen[key(ts)] {
			seen[key(ts)] = true
			slots = append(slots, ts)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	// Forward-fill both lookups across the full timeline. A side that is
	// missing at the head is seeded with its first series value.
	lastPrice := priceSeries[0].SystemBuyPriceGBPMWh / 1000
	lastCarbon := carbonSeries[0].ForecastGPerKWh

	filledPrice := make(map[int64]float64, len(slots))
	filledCarbon := make(map[int64]float64, len(slots))
	for _, ts := range slots {
		if v, ok := priceMap[key(ts)]; ok {
			lastPrice = v
		}
		if v, ok := carbonMap[key(ts)]; ok {
			lastCarbon = v
		}
		filledPrice[key(ts)] = lastPrice
		filledCarbon[key(ts)] = lastCarbon
	}

	return &timeline{slots: slots, price: filledPrice, carbon: filledCarbon}
}

func (tl *timeline) empty() bool {
	return len(tl.slots) == 0
}

func (tl *timeline) priceAt(t time.Time) float64 {
	return tl.price[key(t)]
}

func (tl *timeline) carbonAt(t time.Time) float64 {
	return tl.carbon[key(t)]
}

// averageBetween computes the mean of lookup values over slots within
// [start, end] inclusive. If no slot falls inside, the value at the first
// timeline slot is used; an empty timeline yields 0.
func averageBetween(slots []time.Time, lookup map[int64]float64, start, end time.Time) float64 {
	var sum float64
	var count int
	for _, ts := range slots {
		if !ts.Before(start) && !ts.After(end) {
			sum += lookup[key(ts)]
			count++
		}
	}
	if count == 0 {
		if len(slots) == 0 {
			return 0
		}
		return lookup[key(slots[0])]
	}
	return sum / float64(count)
}
