// Package gridsource fetches carbon intensity and system price series from
// the external grid data providers. Both clients substitute deterministic
// synthetic series on any upstream failure instead of surfacing an error:
// the planner must always have a usable forecast.
package gridsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
	"github.com/elevated-systems/caco-planner/pkg/caco/metrics"
)

// HTTPClient interface allows mocking http.Client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CarbonClient fetches half-hourly carbon intensity forecasts from the UK
// Carbon Intensity API.
type CarbonClient struct {
	baseURL    string
	httpClient HTTPClient
}

// CarbonOption allows customizing the client.
type CarbonOption func(*CarbonClient)

// WithCarbonHTTPClient injects a custom HTTP client.
func WithCarbonHTTPClient(hc HTTPClient) CarbonOption {
	return func(c *CarbonClient) {
		c.httpClient = hc
	}
}

// NewCarbonClient creates a carbon intensity client.
func NewCarbonClient(baseURL string, timeout time.Duration, opts ...CarbonOption) *CarbonClient {
	if baseURL == "" {
		baseURL = "https://api.carbonintensity.org.uk"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &CarbonClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type carbonIntensityBody struct {
	Forecast *float64 `json:"forecast"`
	Actual   *float64 `json:"actual"`
	Index    string   `json:"index"`
}

// carbonEntry tolerates both the upstream shape and the planner's own wire
// shape.
type carbonEntry struct {
	From            string              `json:"from"`
	Timestamp       string              `json:"timestamp"`
	Intensity       carbonIntensityBody `json:"intensity"`
	ForecastGPerKWh *float64            `json:"forecast_g_per_kwh"`
	Index           string              `json:"index"`
}

type carbonResponse struct {
	Data []carbonEntry `json:"data"`
}

// GetForecast24h returns the next 24h forecast in half-hour steps. On any
// upstream failure the synthetic fallback series is returned; this method
// never fails.
func (c *CarbonClient) GetForecast24h(ctx context.Context, start time.Time) []domain.CarbonPoint {
	series, err := c.fetch(ctx, start)
	if err != nil {
		klog.InfoS("Carbon intensity API failed, using fallback series", "error", err)
		metrics.GridFallbacks.WithLabelValues("carbon").Inc()
		return FallbackCarbonSeries(start, FallbackCarbonPeriods)
	}
	return series
}

func (c *CarbonClient) fetch(ctx context.Context, start time.Time) ([]domain.CarbonPoint, error) {
	url := fmt.Sprintf("%s/intensity/%s/fw24h", c.baseURL, domain.FormatTime(start))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	klog.V(3).InfoS("Fetching carbon intensity forecast", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload carbonResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("response contains no data")
	}

	series := make([]domain.CarbonPoint, 0, len(payload.Data))
	for _, entry := range payload.Data {
		point, err := entry.toPoint()
		if err != nil {
			return nil, err
		}
		series = append(series, point)
	}
	return series, nil
}

func (e carbonEntry) toPoint() (domain.CarbonPoint, error) {
	raw := e.From
	if raw == "" {
		raw = e.Timestamp
	}
	ts, err := domain.ParseTime(raw)
	if err != nil {
		return domain.CarbonPoint{}, fmt.Errorf("bad carbon entry timestamp: %v", err)
	}

	var forecast float64
	switch {
	case e.Intensity.Forecast != nil:
		forecast = *e.Intensity.Forecast
	case e.ForecastGPerKWh != nil:
		forecast = *e.ForecastGPerKWh
	case e.Intensity.Actual != nil:
		forecast = *e.Intensity.Actual
	}

	index := e.Intensity.Index
	if index == "" {
		index = e.Index
	}
	if index == "" {
		index = "unknown"
	}

	return domain.CarbonPoint{
		Timestamp:       ts,
		ForecastGPerKWh: forecast,
		Index:           index,
	}, nil
}
