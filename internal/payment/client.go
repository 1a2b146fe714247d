package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/francium/storefront/internal/money"
)

// Client talks to the processor's REST API. Intent creation posts an
// order for the full amount with immediate capture, mirroring the
// processor's checkout protocol.
type Client struct {
	hc        *http.Client
	baseURL   string
	keyID     string
	keySecret string
}

type ClientOptions struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		baseURL:   opts.BaseURL,
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
	}
}

type createIntentRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type createIntentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (c *Client) CreateIntent(ctx context.Context, amount money.Money) (Intent, error) {
	body, err := json.Marshal(createIntentRequest{
		Amount:         amount.Amount,
		Currency:       amount.Currency,
		PaymentCapture: 1,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("encode intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.hc.Do(req)
	if err != nil {
		// timeouts and transport faults are retryable by the caller
		return Intent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Intent{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return Intent{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return Intent{
		ID:     out.ID,
		Amount: money.Money{Amount: out.Amount, Currency: out.Currency},
	}, nil
}

// VerifySignature recomputes the expected HMAC-SHA256 over
// "intentID|transactionID" and compares in constant time. String
// equality would leak a timing side-channel on the shared secret.
func (c *Client) VerifySignature(intentID, transactionID, signature string) bool {
	return verifySignature(c.keySecret, intentID, transactionID, signature)
}

func verifySignature(secret, intentID, transactionID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + transactionID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign produces the signature the processor would attach to a
// callback. It exists for tests and the local fake processor.
func Sign(secret, intentID, transactionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + transactionID))
	return hex.EncodeToString(mac.Sum(nil))
}
