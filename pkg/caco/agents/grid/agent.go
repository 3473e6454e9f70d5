// Package grid implements the forecast fan-out agent. It fetches carbon
// intensity and system price series for a planning window, concurrently,
// with per-window caching and optional history recording. Upstream failures
// never reach the caller: the data clients substitute synthetic series.
package grid

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/a2a"
	"github.com/elevated-systems/caco-planner/pkg/caco/cache"
	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
	"github.com/elevated-systems/caco-planner/pkg/caco/gridsource"
	"github.com/elevated-systems/caco-planner/pkg/caco/history"
	"github.com/elevated-systems/caco-planner/pkg/caco/metrics"
)

// Agent assembles grid forecasts from the two upstream data clients.
type Agent struct {
	carbon   *gridsource.CarbonClient
	price    *gridsource.PriceClient
	cache    *cache.SeriesCache
	recorder history.Recorder
}

// Option configures the agent.
type Option func(*Agent)

// WithCache enables per-window series caching.
func WithCache(c *cache.SeriesCache) Option {
	return func(a *Agent) { a.cache = c }
}

// WithRecorder enables best-effort history recording of fetched series.
func WithRecorder(r history.Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// NewAgent wires the agent around the given upstream clients.
func NewAgent(carbon *gridsource.CarbonClient, price *gridsource.PriceClient, opts ...Option) *Agent {
	a := &Agent{carbon: carbon, price: price}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Forecast returns the carbon and price series covering [from, to] for a
// region. The two upstream fetches run concurrently. This method never
// fails; each client falls back to its synthetic series on upstream error.
func (a *Agent) Forecast(ctx context.Context, from, to time.Time, region string) *cache.GridSeries {
	key := cache.Key(region, from, to)
	if a.cache != nil {
		if series, ok := a.cache.Get(key); ok {
			klog.V(3).InfoS("Grid series cache hit", "key", key)
			return series
		}
	}

	var carbonSeries []domain.CarbonPoint
	var priceSeries []domain.PricePoint

	done := make(chan struct{}, 2)
	go func() {
		carbonSeries = a.carbon.GetForecast24h(ctx, from)
		done <- struct{}{}
	}()
	go func() {
		priceSeries = a.price.GetSystemPrices(ctx, from, to)
		done <- struct{}{}
	}()
	<-done
	<-done

	carbonSeries = filterWindow(carbonSeries, from, to)

	series := &cache.GridSeries{Carbon: carbonSeries, Price: priceSeries}
	if a.cache != nil {
		a.cache.Set(key, series)
	}
	if a.recorder != nil {
		if err := a.recorder.RecordSeries(region, carbonSeries, priceSeries); err != nil {
			klog.ErrorS(err, "Failed to record grid series", "region", region)
		}
	}
	if len(carbonSeries) > 0 {
		metrics.GridCarbonIntensity.WithLabelValues(region).Set(carbonSeries[0].ForecastGPerKWh)
	}

	return series
}

// filterWindow keeps carbon points inside [from, to]. When the filter
// empties the series (slot boundaries just off the window), the raw series
// is kept instead.
func filterWindow(series []domain.CarbonPoint, from, to time.Time) []domain.CarbonPoint {
	var filtered []domain.CarbonPoint
	for _, point := range series {
		if !point.Timestamp.Before(from) && !point.Timestamp.After(to) {
			filtered = append(filtered, point)
		}
	}
	if len(filtered) == 0 {
		return series
	}
	return filtered
}

// Card describes the agent for discovery.
func Card(baseURL, version string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:        "caco-grid-agent",
		Description: "Carbon intensity and system price forecasts with graceful fallback",
		URL:         baseURL,
		Version:     version,
	}
}
