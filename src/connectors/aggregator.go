package connectors

// REST client for the external quote aggregator.
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 250 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	return false
}

// Quote is one spot quote from the aggregator.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume_24h"`
	Ts     int64           `json:"ts"`
}

// OrderBook is a depth snapshot. Levels are [price, size] pairs the way the
// aggregator sends them.
type OrderBook struct {
	Symbol string      `json:"symbol"`
	Bids   [][]float64 `json:"bids"`
	Asks   [][]float64 `json:"asks"`
	Ts     int64       `json:"ts"`
}

// AggregatorClient talks to the external quote/order-book aggregator.
type AggregatorClient struct {
	baseURL string
	http    *resty.Client
}

func NewAggregatorClient(baseURL string, timeout time.Duration) *AggregatorClient {
	retryCount := defaultRetryAttempts - 1

	if strings.TrimSpace(baseURL) == "" {
		baseURL = GetConfig().AggregatorBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &AggregatorClient{
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *AggregatorClient) doGet(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// GetQuote fetches the current spot quote for a pair.
func (c *AggregatorClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.doGet(ctx, "/v1/quote", map[string]string{"symbol": symbol}, &q); err != nil {
		logger.WithFields(map[string]interface{}{
			"connector": "aggregator",
			"op":        "GetQuote",
			"symbol":    symbol,
		}).WithError(err).Error("Quote lookup failed")
		return nil, err
	}

	return &q, nil
}

// GetOrderBook fetches a depth snapshot for a pair.
func (c *AggregatorClient) GetOrderBook(ctx context.Context, symbol string) (*OrderBook, error) {
	var ob OrderBook
	if err := c.doGet(ctx, "/v1/orderbook", map[string]string{"symbol": symbol}, &ob); err != nil {
		logger.WithFields(map[string]interface{}{
			"connector": "aggregator",
			"op":        "GetOrderBook",
			"symbol":    symbol,
		}).WithError(err).Error("Order book lookup failed")
		return nil, err
	}

	return &ob, nil
}
