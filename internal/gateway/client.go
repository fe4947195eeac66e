package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrChargeNotFound means the gateway has no record of the charge
// reference, typically because the charge was already canceled upstream.
var ErrChargeNotFound = errors.New("charge not found at gateway")

// ChargeStatus is the gateway's view of a single charge.
type ChargeStatus struct {
	Amount int64
	Status string
}

type CancelResult struct {
	Status string
}

// PaymentRecord is a settled charge as the gateway reports it, including
// the correlation data the checkout page attached (user_uid, product_id).
type PaymentRecord struct {
	ChargeUID   string
	MerchantUID string
	Amount      int64
	PaidAt      time.Time
	Method      string
	Custom      map[string]string
}

type Client interface {
	Verify(ctx context.Context, chargeUID string) (*ChargeStatus, error)
	Cancel(ctx context.Context, chargeUID string, amount int64) (*CancelResult, error)
	ListPaid(ctx context.Context, from, to time.Time) ([]PaymentRecord, error)
	FetchByChargeUID(ctx context.Context, chargeUID string) (*PaymentRecord, error)
}

// tokenExpirySlack forces a refresh shortly before the gateway-reported
// expiry so an in-flight call never rides a token that dies mid-request.
const tokenExpirySlack = 30 * time.Second

type httpClient struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) Client {
	return &httpClient{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

type tokenResponse struct {
	Response struct {
		AccessToken string `json:"access_token"`
		Now         int64  `json:"now"`
		ExpiredAt   int64  `json:"expired_at"`
	} `json:"response"`
}

func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expiresAt) > tokenExpirySlack {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/getToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: gateway returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.Response.AccessToken == "" {
		return "", errors.New("token exchange: empty access token")
	}

	c.token = tr.Response.AccessToken
	c.expiresAt = time.Unix(tr.Response.ExpiredAt, 0)
	return c.token, nil
}

type paymentPayload struct {
	ChargeUID   string            `json:"imp_uid"`
	MerchantUID string            `json:"merchant_uid"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	PaidAt      int64             `json:"paid_at"`
	Method      string            `json:"pay_method"`
	Custom      map[string]string `json:"custom_data"`
}

func (p paymentPayload) record() PaymentRecord {
	return PaymentRecord{
		ChargeUID:   p.ChargeUID,
		MerchantUID: p.MerchantUID,
		Amount:      p.Amount,
		PaidAt:      time.Unix(p.PaidAt, 0),
		Method:      p.Method,
		Custom:      p.Custom,
	}
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *httpClient) Verify(ctx context.Context, chargeUID string) (*ChargeStatus, error) {
	var body struct {
		Code     int             `json:"code"`
		Message  string          `json:"message"`
		Response *paymentPayload `json:"response"`
	}
	if err := c.get(ctx, "/payments/"+url.PathEscape(chargeUID), &body); err != nil {
		return nil, err
	}
	if body.Response == nil {
		return nil, fmt.Errorf("%w: %s", ErrChargeNotFound, body.Message)
	}
	return &ChargeStatus{Amount: body.Response.Amount, Status: body.Response.Status}, nil
}

func (c *httpClient) Cancel(ctx context.Context, chargeUID string, amount int64) (*CancelResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(map[string]any{
		"imp_uid": chargeUID,
		"amount":  amount,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/cancel", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d for cancel", resp.StatusCode)
	}

	var body struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		Response *struct {
			Status string `json:"status"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Response == nil {
		return nil, fmt.Errorf("cancel rejected: %s", body.Message)
	}
	return &CancelResult{Status: body.Response.Status}, nil
}

func (c *httpClient) ListPaid(ctx context.Context, from, to time.Time) ([]PaymentRecord, error) {
	var body struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		Response struct {
			Total int              `json:"total"`
			List  []paymentPayload `json:"list"`
		} `json:"response"`
	}
	path := fmt.Sprintf("/payments/status/paid?from=%d&to=%d", from.Unix(), to.Unix())
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	records := make([]PaymentRecord, 0, len(body.Response.List))
	for _, p := range body.Response.List {
		records = append(records, p.record())
	}
	return records, nil
}

func (c *httpClient) FetchByChargeUID(ctx context.Context, chargeUID string) (*PaymentRecord, error) {
	var body struct {
		Code     int             `json:"code"`
		Message  string          `json:"message"`
		Response *paymentPayload `json:"response"`
	}
	if err := c.get(ctx, "/payments/"+url.PathEscape(chargeUID), &body); err != nil {
		return nil, err
	}
	if body.Response == nil {
		return nil, fmt.Errorf("%w: %s", ErrChargeNotFound, body.Message)
	}
	rec := body.Response.record()
	return &rec, nil
}
