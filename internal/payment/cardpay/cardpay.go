package cardpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumen-shop/internal/payment"
)

var (
	ErrConfigInvalid   = errors.New("cardpay config invalid")
	ErrRequestFailed   = errors.New("cardpay request failed")
	ErrResponseInvalid = errors.New("cardpay response invalid")
	ErrChargeDeclined  = errors.New("cardpay charge declined")
)

const defaultTimeout = 12 * time.Second

// Config 卡支付网关配置。
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client 卡支付网关客户端，实现 payment.Gateway。
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New 创建网关客户端。
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: endpoint is invalid", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chargeResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ReceiptURL string `json:"receipt_url"`
	CustomerID string `json:"customer_id"`
	Message    string `json:"message"`
}

// Charge 发起一次扣款。网关侧不做重试：传输层失败时扣款结果不可知，
// 由上层按不可重试处理。
func (c *Client) Charge(ctx context.Context, input payment.ChargeInput) (*payment.ChargeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := payment.ValidateCard(input.Card, time.Now()); err != nil {
		return nil, err
	}
	if input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(input.AmountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("reference", strings.TrimSpace(input.Reference))
	form.Set("description", strings.TrimSpace(input.Description))
	form.Set("card[holder_name]", strings.TrimSpace(input.Card.HolderName))
	form.Set("card[number]", strings.TrimSpace(input.Card.Number))
	form.Set("card[exp_month]", strings.TrimSpace(input.Card.ExpiryMonth))
	form.Set("card[exp_year]", strings.TrimSpace(input.Card.ExpiryYear))
	form.Set("card[cvv]", strings.TrimSpace(input.Card.CVV))

	body, statusCode, err := c.doFormRequest(ctx, http.MethodPost, "/v1/charges", form)
	if err != nil {
		return nil, err
	}

	var resp chargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	if statusCode < 200 || statusCode >= 300 {
		message := strings.TrimSpace(resp.Message)
		if message == "" {
			message = fmt.Sprintf("status %d", statusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrChargeDeclined, message)
	}
	if strings.TrimSpace(resp.ID) == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrResponseInvalid)
	}
	status := strings.TrimSpace(resp.Status)
	if status != payment.ChargeStatusSucceeded {
		return nil, fmt.Errorf("%w: charge status %s", ErrChargeDeclined, status)
	}

	return &payment.ChargeResult{
		ChargeID:   strings.TrimSpace(resp.ID),
		Status:     payment.ChargeStatusSucceeded,
		ReceiptURL: strings.TrimSpace(resp.ReceiptURL),
		CustomerID: strings.TrimSpace(resp.CustomerID),
	}, nil
}

func (c *Client) doFormRequest(ctx context.Context, method, path string, form url.Values) ([]byte, int, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(c.cfg.Endpoint), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}
