package vest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/voltrade/revbot/internal/crypto"
	"github.com/voltrade/revbot/internal/domain"
)

const (
	// restRateLimit bounds authenticated REST calls per restRateWindow.
	restRateLimit  = 10
	restRateWindow = time.Second
)

// Client is the REST client for the exchange API. It handles session
// registration, account queries, and order placement.
type Client struct {
	baseURL    string
	asset      string // settlement asset for balance lookups, e.g. "USDC"
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	limiter    domain.RateLimiter // optional
	nonce      atomic.Int64
}

// NewClient creates a REST client.
//
// baseURL is the API root, e.g. "https://serverprod.vest.exchange/v2".
// signer signs session registration and order digests.
func NewClient(baseURL, asset string, signer *crypto.Signer) *Client {
	c := &Client{
		baseURL: baseURL,
		asset:   asset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
	c.nonce.Store(time.Now().UnixMilli())
	return c
}

// WithRateLimiter attaches a request rate limiter. Requests that exceed the
// budget fail with ErrRateLimited instead of reaching the exchange.
func (c *Client) WithRateLimiter(limiter domain.RateLimiter) *Client {
	c.limiter = limiter
	return c
}

// Register performs the session registration flow: it signs a registration
// message and exchanges it for HMAC API credentials, which authenticate all
// subsequent requests.
func (c *Client) Register(ctx context.Context) error {
	expiresAt := time.Now().Add(7 * 24 * time.Hour).Unix()
	sig, err := c.signer.SignRegistration(expiresAt)
	if err != nil {
		return fmt.Errorf("vest: sign registration: %w", err)
	}

	body := map[string]any{
		"account":   c.signer.Address().Hex(),
		"expiresAt": expiresAt,
		"signature": sig,
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/register", body)
	if err != nil {
		return fmt.Errorf("vest: register: %w", err)
	}

	var creds struct {
		APIKey string `json:"apiKey"`
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(respBody, &creds); err != nil {
		return fmt.Errorf("vest: decode registration response: %w", err)
	}
	c.hmacAuth = &crypto.HMACAuth{Key: creds.APIKey, Secret: creds.Secret}
	return nil
}

// GetBalance returns the available balance in the settlement asset.
func (c *Client) GetBalance(ctx context.Context) (domain.Balance, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("vest: get balance: %w", err)
	}

	var acct apiAccount
	if err := json.Unmarshal(respBody, &acct); err != nil {
		return domain.Balance{}, fmt.Errorf("vest: decode account: %w", err)
	}
	for _, b := range acct.Balances {
		if b.Asset != c.asset {
			continue
		}
		avail, err := fromX18(b.Available)
		if err != nil {
			return domain.Balance{}, fmt.Errorf("vest: balance for %s: %w", b.Asset, err)
		}
		return domain.Balance{Available: avail}, nil
	}
	return domain.Balance{}, fmt.Errorf("vest: no %s balance in account: %w", c.asset, domain.ErrNotFound)
}

// GetInstrument returns the instrument metadata and current mark price for
// a symbol.
func (c *Client) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	path := "/exchangeInfo?symbols=" + symbol
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("vest: get instrument %s: %w", symbol, err)
	}

	var instruments []apiInstrument
	if err := json.Unmarshal(respBody, &instruments); err != nil {
		return domain.Instrument{}, fmt.Errorf("vest: decode exchange info: %w", err)
	}
	for _, inst := range instruments {
		if inst.Symbol != symbol {
			continue
		}
		mark, err := fromX18(inst.MarkPrice)
		if err != nil {
			return domain.Instrument{}, fmt.Errorf("vest: mark price for %s: %w", symbol, err)
		}
		return domain.Instrument{ID: inst.ID, Symbol: inst.Symbol, MarkPrice: mark}, nil
	}
	return domain.Instrument{}, fmt.Errorf("vest: instrument %s: %w", symbol, domain.ErrNotFound)
}

// SubmitOrder signs and submits a limit order. A rejection by the exchange
// comes back as SubmitResult.Rejected, not as an error; errors mean the
// outcome is unknown.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.SubmitResult, error) {
	nonce := c.nonce.Add(1)
	account := c.signer.Address().Hex()
	priceX18 := toX18(req.Price)
	sizeX18 := toX18(req.Size)

	side := 0
	if req.Side == domain.OrderSideSell {
		side = 1
	}
	sig, err := c.signer.SignOrder(crypto.OrderDigest{
		Account:    account,
		Symbol:     req.Symbol,
		Side:       side,
		Price:      priceX18,
		Size:       sizeX18,
		Nonce:      nonce,
		ReduceOnly: req.ReduceOnly,
	})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("vest: sign order: %w", err)
	}

	body := apiOrderRequest{
		Account:    account,
		Symbol:     req.Symbol,
		Side:       string(req.Side),
		Type:       "LIMIT",
		Price:      priceX18,
		Size:       sizeX18,
		Nonce:      nonce,
		ReduceOnly: req.ReduceOnly,
		ClientID:   req.ClientID,
		Signature:  sig,
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("vest: submit order: %w", err)
	}

	var resp apiOrderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("vest: decode order response: %w", err)
	}
	if resp.Status == "REJECTED" {
		return domain.SubmitResult{Rejected: &domain.OrderRejected{Reason: resp.Reason}}, nil
	}
	if resp.OrderID == "" {
		return domain.SubmitResult{}, fmt.Errorf("vest: order response missing order id")
	}
	return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: resp.OrderID}}, nil
}

// CancelOrder cancels an order by exchange ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderId": orderID}
	if _, err := c.doRequest(ctx, http.MethodDelete, "/orders", body); err != nil {
		return fmt.Errorf("vest: cancel order %s: %w", orderID, err)
	}
	return nil
}

// OrderStatus looks up an order by exchange ID or, when the exchange never
// returned one, by client order ID.
func (c *Client) OrderStatus(ctx context.Context, id string) (domain.OrderStatusInfo, error) {
	path := "/orders/" + id
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.OrderStatusInfo{}, fmt.Errorf("vest: order status %s: %w", id, err)
	}

	var resp apiOrderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.OrderStatusInfo{}, fmt.Errorf("vest: decode order status: %w", err)
	}
	return resp.toStatusInfo(), nil
}

// doRequest builds, signs (HMAC), sends, and reads an HTTP request against
// the API. It returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, "vest:rest", restRateLimit, restRateWindow)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.hmacAuth != nil {
		for k, v := range c.hmacAuth.Headers(method, path, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrOrderRejected, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
