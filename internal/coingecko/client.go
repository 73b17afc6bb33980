package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptofolio/internal/metrics"
	"cryptofolio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultUserAgent = "cryptofolio/1.0"

	endpointSimplePrice = "simple_price"
	endpointMarketChart = "market_chart"
)

type Options struct {
	BaseURL   string
	APIKey    string // sent as x-cg-pro-api-key when set
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: SharedHTTPClient(opts.Timeout),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		userAgent:  opts.UserAgent,
	}
}

// SimplePrice returns the coin's price in currency. found is false when the
// body is valid JSON but carries no numeric value for the pair, whatever its
// shape. Only unparseable bodies are errors.
func (c *Client) SimplePrice(ctx context.Context, coin, currency string) (price float64, found bool, err error) {
	params := url.Values{}
	params.Set("ids", coin)
	params.Set("vs_currencies", currency)

	var body any
	if err := c.get(ctx, endpointSimplePrice, coin, "/simple/price?"+params.Encode(), &body); err != nil {
		return 0, false, err
	}

	price, found = lookupPrice(body, coin, currency)
	return price, found, nil
}

func lookupPrice(body any, coin, currency string) (float64, bool) {
	coins, ok := body.(map[string]any)
	if !ok {
		return 0, false
	}
	quotes, ok := coins[coin].(map[string]any)
	if !ok {
		return 0, false
	}
	price, ok := quotes[currency].(float64)
	return price, ok
}

type marketChartResponse struct {
	Prices []models.PricePoint `json:"prices"`
}

// MarketChart returns the prices array of coins/{id}/market_chart as sent.
// The result is never nil on success.
func (c *Client) MarketChart(ctx context.Context, coin, currency string, days int) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("days", strconv.Itoa(days))

	var body marketChartResponse
	path := fmt.Sprintf("/coins/%s/market_chart?%s", url.PathEscape(coin), params.Encode())
	if err := c.get(ctx, endpointMarketChart, coin, path, &body); err != nil {
		return nil, err
	}

	if body.Prices == nil {
		body.Prices = []models.PricePoint{}
	}
	return body.Prices, nil
}

func (c *Client) get(ctx context.Context, endpoint, coin, path string, out any) error {
	defer metrics.TimeUpstream(endpoint)()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return newAPIError(endpoint, coin, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newAPIError(endpoint, coin, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return newAPIError(endpoint, coin, resp.StatusCode, ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return newAPIError(endpoint, coin, resp.StatusCode, fmt.Errorf("%w: %s", ErrBadStatus, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newAPIError(endpoint, coin, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
