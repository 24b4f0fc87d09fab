package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("exchange config invalid")
	ErrRequestFailed   = errors.New("exchange request failed")
	ErrResponseInvalid = errors.New("exchange response invalid")
	ErrRateMissing     = errors.New("exchange rate missing")
)

const defaultTimeout = 5 * time.Second

// RateFetcher 汇率获取接口
type RateFetcher interface {
	GetLatestRate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error)
}

// Client 外部汇率服务客户端，实现 RateFetcher。
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient 创建汇率客户端
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: endpoint is invalid", ErrConfigInvalid)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type latestRateResponse struct {
	Base  string                 `json:"base"`
	Rates map[string]json.Number `json:"rates"`
}

// GetLatestRate 获取最新汇率
func (c *Client) GetLatestRate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == "" || to == "" {
		return decimal.Zero, fmt.Errorf("%w: currency code is required", ErrConfigInvalid)
	}

	query := url.Values{}
	query.Set("base", from)
	query.Set("symbols", to)
	endpoint := strings.TrimRight(c.endpoint, "/") + "/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var parsed latestRateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	raw, ok := parsed.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrRateMissing, from, to)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: bad rate value %q", ErrResponseInvalid, raw.String())
	}
	return rate, nil
}
