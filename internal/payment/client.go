package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the payment provider's REST API. It implements Processor.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewClient constructs a Client for the given provider endpoint.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

var _ Processor = (*Client)(nil)

// providerResponse is the provider's envelope for every call.
//
//	{"id":"hold_abc","status":"succeeded"}
//	{"error":{"code":"card_declined","message":"insufficient funds"}}
type providerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Authorize places a hold on the buyer's payment method.
//
//	POST /v1/holds  {"customer":"...","amount":"101.00","currency":"USD"}
func (c *Client) Authorize(ctx context.Context, buyerRef string, amount decimal.Decimal, currency string) (string, error) {
	resp, err := c.doPost(ctx, "authorize", "/v1/holds", map[string]string{
		"customer": buyerRef,
		"amount":   amount.StringFixed(2),
		"currency": currency,
	})
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &Error{Op: "authorize", Err: fmt.Errorf("empty hold id")}
	}
	return resp.ID, nil
}

// Capture converts a hold into captured funds.
//
//	POST /v1/holds/{ref}/capture
func (c *Client) Capture(ctx context.Context, holdRef string) error {
	_, err := c.doPost(ctx, "capture", "/v1/holds/"+holdRef+"/capture", nil)
	return err
}

// CancelAuthorization voids an uncaptured hold.
//
//	POST /v1/holds/{ref}/void
func (c *Client) CancelAuthorization(ctx context.Context, holdRef string) error {
	_, err := c.doPost(ctx, "void", "/v1/holds/"+holdRef+"/void", nil)
	return err
}

// Transfer pays out to a connected seller account.
//
//	POST /v1/transfers  {"destination":"...","amount":"95.19","currency":"USD"}
func (c *Client) Transfer(ctx context.Context, payoutAccountID string, amount decimal.Decimal, currency string) (string, error) {
	resp, err := c.doPost(ctx, "transfer", "/v1/transfers", map[string]string{
		"destination": payoutAccountID,
		"amount":      amount.StringFixed(2),
		"currency":    currency,
	})
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &Error{Op: "transfer", Err: fmt.Errorf("empty transfer id")}
	}
	return resp.ID, nil
}

// Refund returns captured funds to the buyer.
//
//	POST /v1/refunds  {"hold":"...","amount":"101.00"}
func (c *Client) Refund(ctx context.Context, holdRef string, amount decimal.Decimal) (string, error) {
	resp, err := c.doPost(ctx, "refund", "/v1/refunds", map[string]string{
		"hold":   holdRef,
		"amount": amount.StringFixed(2),
	})
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &Error{Op: "refund", Err: fmt.Errorf("empty refund id")}
	}
	return resp.ID, nil
}

// doPost performs an authenticated POST and classifies failures. Network
// errors and provider 5xx are retryable; provider 4xx carry the provider's
// error code and are terminal.
func (c *Client) doPost(ctx context.Context, op, path string, payload map[string]string) (*providerResponse, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and connection failures: the call may or may not have
		// landed, but the state machine tolerates a retry.
		return nil, &Error{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Retryable: true, Err: fmt.Errorf("read body: %w", err)}
	}

	// Classify by status before trusting the body. Proxies and load balancers
	// answer 5xx with plain text, and that is still a retryable outage.
	var pr providerResponse
	var decodeErr error
	if len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &pr)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &Error{Op: op, Code: errCode(&pr), Retryable: true,
			Err: fmt.Errorf("provider status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Op: op, Code: errCode(&pr),
			Err: fmt.Errorf("provider status %d: %s", resp.StatusCode, errMessage(&pr))}
	}
	if decodeErr != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("parse response: %w", decodeErr)}
	}
	return &pr, nil
}

func errCode(pr *providerResponse) string {
	if pr.Error != nil {
		return pr.Error.Code
	}
	return ""
}

func errMessage(pr *providerResponse) string {
	if pr.Error != nil {
		return pr.Error.Message
	}
	return "no error detail"
}
