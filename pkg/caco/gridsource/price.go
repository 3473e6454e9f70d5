package gridsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
	"github.com/elevated-systems/caco-planner/pkg/caco/metrics"
)

// PriceClient fetches system imbalance prices from the Elexon BMRS /
// Insights DISEBSP dataset.
type PriceClient struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// PriceOption allows customizing the client.
type PriceOption func(*PriceClient)

// WithPriceHTTPClient injects a custom HTTP client.
func WithPriceHTTPClient(hc HTTPClient) PriceOption {
	return func(c *PriceClient) {
		c.httpClient = hc
	}
}

// NewPriceClient creates a BMRS system price client. The API key is
// optional; when set it is sent as an x-api-key header.
func NewPriceClient(baseURL, apiKey string, timeout time.Duration, opts ...PriceOption) *PriceClient {
	if baseURL == "" {
		baseURL = "https://data.elexon.co.uk/bmrs/api/v1"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &PriceClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// priceRecord tolerates the several field spellings the dataset has been
// observed to use.
type priceRecord struct {
	SettlementPeriodStart string   `json:"settlementPeriodStart"`
	Time                  string   `json:"time"`
	Timestamp             string   `json:"timestamp"`
	StartTime             string   `json:"startTime"`
	SystemBuyPrice        *float64 `json:"systemBuyPrice"`
	BuyPrice              *float64 `json:"buyPrice"`
	Price                 *float64 `json:"price"`
	SystemSellPrice       *float64 `json:"systemSellPrice"`
	SellPrice             *float64 `json:"sellPrice"`
	SellPriceSnake        *float64 `json:"sell_price"`
}

type priceResponse struct {
	Data     []priceRecord `json:"data"`
	Response struct {
		Data []priceRecord `json:"data"`
	} `json:"response"`
}

// GetSystemPrices returns settlement-period buy/sell prices covering
// [start, end]. On any upstream failure (including an empty dataset) the
// synthetic fallback series is returned; this method never fails.
func (c *PriceClient) GetSystemPrices(ctx context.Context, start, end time.Time) []domain.PricePoint {
	series, err := c.fetch(ctx, start, end)
	if err != nil {
		klog.InfoS("BMRS API failed, using fallback series", "error", err)
		metrics.GridFallbacks.WithLabelValues("price").Inc()
		return FallbackPriceSeries(start, end)
	}
	return series
}

func (c *PriceClient) fetch(ctx context.Context, start, end time.Time) ([]domain.PricePoint, error) {
	query := url.Values{}
	query.Set("from", domain.FormatTime(start))
	query.Set("to", domain.FormatTime(end))
	endpoint := fmt.Sprintf("%s/datasets/DISEBSP?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	klog.V(3).InfoS("Fetching system prices", "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	records := payload.Data
	if len(records) == 0 {
		records = payload.Response.Data
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("response contains no data")
	}

	series := make([]domain.PricePoint, 0, len(records))
	for _, record := range records {
		point, err := record.toPoint()
		if err != nil {
			return nil, err
		}
		series = append(series, point)
	}
	return series, nil
}

func (r priceRecord) toPoint() (domain.PricePoint, error) {
	raw := firstNonEmpty(r.SettlementPeriodStart, r.Time, r.Timestamp, r.StartTime)
	ts, err := domain.ParseTime(raw)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("bad price record timestamp: %v", err)
	}
	return domain.PricePoint{
		Timestamp:             ts,
		SystemBuyPriceGBPMWh:  firstFloat(r.SystemBuyPrice, r.BuyPrice, r.Price),
		SystemSellPriceGBPMWh: firstFloat(r.SystemSellPrice, r.SellPrice, r.SellPriceSnake),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
