package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
)

// alternativeMeBaseURL serves the crypto fear & greed index.
const alternativeMeBaseURL = "https://api.alternative.me"

// FearGreedClient fetches the market-wide fear & greed index.
type FearGreedClient struct {
	http *resty.Client
}

// NewFearGreedClient creates a fear & greed index client.
func NewFearGreedClient() *FearGreedClient {
	return &FearGreedClient{
		http: resty.New().
			SetBaseURL(alternativeMeBaseURL).
			SetTimeout(10 * time.Second),
	}
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Fetch returns the latest index reading as a market-wide sentiment point
// (empty symbol).
func (c *FearGreedClient) Fetch(ctx context.Context) (*domain.SentimentPoint, error) {
	var result fearGreedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":  "1",
			"format": "json",
		}).
		SetResult(&result).
		Get("/fng/")
	if err != nil {
		return nil, fmt.Errorf("get fng: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fng http %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("fng response has no data")
	}

	entry := result.Data[0]
	value, err := decimal.NewFromString(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("parse fng value %q: %w", entry.Value, err)
	}

	ts := time.Now().UTC()
	if unix, err := strconv.ParseInt(entry.Timestamp, 10, 64); err == nil {
		ts = time.Unix(unix, 0).UTC()
	}

	return &domain.SentimentPoint{
		Source:         domain.SentimentSourceFearGreed,
		Symbol:         "",
		Timestamp:      ts,
		Value:          value,
		Classification: entry.ValueClassification,
		RawData:        string(resp.Body()),
	}, nil
}
