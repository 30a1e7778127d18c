package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const paypalSandboxURL = "https://api-m.sandbox.paypal.com"

var ErrOrderNotFound = errors.New("paypal order not found")

// PayPalClient implementa Provider usando la API REST de PayPal.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient construye un cliente apuntando a la API de checkout.
func NewPayPalClient(baseURL, clientID, clientSecret string, logger *zap.Logger) *PayPalClient {
	if baseURL == "" {
		baseURL = paypalSandboxURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayPalClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Capture captura la orden. Si ya estaba capturada devuelve el estado actual,
// asi un reintento no se convierte en error.
func (c *PayPalClient) Capture(ctx context.Context, orderID string) (Capture, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Capture{}, ErrOrderNotFound
	}

	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	status, body, err := c.do(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return Capture{}, err
	}

	switch {
	case status == http.StatusUnprocessableEntity && bytes.Contains(body, []byte("ORDER_ALREADY_CAPTURED")):
		status, body, err = c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil)
		if err != nil {
			return Capture{}, err
		}
	case status == http.StatusNotFound:
		return Capture{}, ErrOrderNotFound
	}

	if status >= 400 {
		c.logger.Warn("paypal capture failed",
			zap.Int("status", status),
			zap.String("order_id", orderID),
			zap.ByteString("body", body),
		)
		return Capture{}, fmt.Errorf("paypal http error: status=%d", status)
	}

	var o orderResponse
	if err := json.Unmarshal(body, &o); err != nil {
		return Capture{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return o.toCapture()
}

func (c *PayPalClient) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// token obtiene un access token client-credentials y lo reutiliza hasta un
// minuto antes de su vencimiento.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("paypal token error: status=%d", resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("unmarshal token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("paypal empty access token")
	}
	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o orderResponse) toCapture() (Capture, error) {
	res := Capture{OrderID: o.ID}
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			amount, err := ParseMinorUnits(c.Amount.Value)
			if err != nil {
				return Capture{}, err
			}
			res.TransactionID = c.ID
			res.Amount = amount
			res.Currency = strings.ToUpper(c.Amount.CurrencyCode)
			res.Completed = o.Status == "COMPLETED" && c.Status == "COMPLETED"
			return res, nil
		}
	}
	return res, nil
}

// ParseMinorUnits convierte "25.5" o "25.50" en 2550. Se asumen dos decimales.
func ParseMinorUnits(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", value)
	}
	frac += strings.Repeat("0", 2-len(frac))
	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return units, nil
}
