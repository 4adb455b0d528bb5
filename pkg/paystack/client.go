package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// Client wraps the processor's HTTP API with centralized auth, timeouts, and
// a small bounded retry for transient failures. The authoritative outcome of
// a transfer always arrives later via webhook; nothing here blocks on it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	maxRetries uint64
	backoff    config.PaystackConfig
	logger     *logger.Logger
}

// NewClient validates the credentials and builds the wrapper.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	maxRetries := uint64(cfg.MaxRetries)
	if cfg.MaxRetries < 0 {
		maxRetries = 0
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		secretKey:  secret,
		maxRetries: maxRetries,
		backoff:    cfg,
		logger:     logg,
	}
	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// VerifySignature checks the HMAC-SHA512 signature over the exact raw payload
// bytes. Re-serialized payloads change byte order and must never be used.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TransferRecipientRequest carries a provider's stored bank details.
type TransferRecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// TransferRequest initiates a payout to an existing transfer recipient.
// Reference is the caller's idempotency key: re-issuing with the same
// reference does not create a second transfer at the processor.
type TransferRequest struct {
	AmountCents int64  `json:"-"`
	Recipient   string `json:"recipient"`
	Reference   string `json:"reference"`
	Reason      string `json:"reason"`
	Currency    string `json:"currency"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// CreateTransferRecipient registers the provider's bank account at the
// processor and returns the recipient code to reuse for future transfers.
func (c *Client) CreateTransferRecipient(ctx context.Context, req TransferRecipientRequest) (string, error) {
	if req.Type == "" {
		req.Type = "nuban"
	}
	var data recipientData
	if err := c.post(ctx, "/transferrecipient", req, &data); err != nil {
		return "", fmt.Errorf("create transfer recipient: %w", err)
	}
	if data.RecipientCode == "" {
		return "", fmt.Errorf("create transfer recipient: empty recipient code")
	}
	return data.RecipientCode, nil
}

// InitiateTransfer issues an asynchronous payout. The returned transfer code
// identifies the in-flight transfer; success/failure arrives via webhook.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.Recipient == "" {
		return "", fmt.Errorf("initiate transfer: recipient is required")
	}
	if req.Reference == "" {
		return "", fmt.Errorf("initiate transfer: reference is required")
	}
	body := map[string]any{
		"source":    "balance",
		"amount":    req.AmountCents,
		"recipient": req.Recipient,
		"reference": req.Reference,
		"reason":    req.Reason,
		"currency":  req.Currency,
	}
	var data transferData
	if err := c.post(ctx, "/transfer", body, &data); err != nil {
		return "", fmt.Errorf("initiate transfer: %w", err)
	}
	if data.TransferCode == "" {
		return "", fmt.Errorf("initiate transfer: empty transfer code")
	}
	return data.TransferCode, nil
}

// CreateRefund asks the processor to return an escrowed charge to the client.
// The refund.processed webhook carries the final outcome.
func (c *Client) CreateRefund(ctx context.Context, transactionRef string) error {
	if transactionRef == "" {
		return fmt.Errorf("create refund: transaction reference is required")
	}
	body := map[string]any{"transaction": transactionRef}
	if err := c.post(ctx, "/refund", body, nil); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	backoff := retry.NewFibonacci(c.backoff.RetryBackoff)
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// network errors are worth another attempt
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("processor returned %d", resp.StatusCode))
		}

		var envelope apiEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
			return fmt.Errorf("processor rejected request: %s", envelope.Message)
		}
		if out != nil && len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return fmt.Errorf("decode response data: %w", err)
			}
		}
		return nil
	})
}
