// Package payment holds HTTP clients for the payment rail and the dispute
// provider. Both speak JSON over REST and rely on idempotency keys so that
// retries never duplicate money movement.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streamcart/backend/internal/domain/payout"
	infraconfig "github.com/streamcart/backend/internal/infrastructure/config"
)

const (
	railTransfersPath  = "/v1/transfers"
	defaultRailTimeout = 30 * time.Second
	railRetryBaseDelay = 200 * time.Millisecond
)

// Errors for rail configuration and calls
var (
	ErrRailMissingBaseURL = errors.New("rail: missing base URL")
	ErrRailMissingAPIKey  = errors.New("rail: missing API key")
	ErrRailUnavailable    = errors.New("rail: provider unavailable")
	ErrRailRequestFailed  = errors.New("rail: request failed")
)

// Ensure HTTPRail implements the payout dispatch port
var _ payout.Rail = (*HTTPRail)(nil)

// HTTPRail dispatches payouts through the payment provider's transfer API.
// The idempotency key from the request is forwarded as the provider's dedup
// token, so a retried dispatch returns the original transfer.
type HTTPRail struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

// NewHTTPRail creates a rail client from configuration.
func NewHTTPRail(cfg infraconfig.RailConfig) (*HTTPRail, error) {
	if cfg.BaseURL == "" {
		return nil, ErrRailMissingBaseURL
	}
	if cfg.APIKey == "" {
		return nil, ErrRailMissingAPIKey
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRailTimeout
	}

	return &HTTPRail{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type railTransferRequest struct {
	PayoutID    string `json:"payout_id"`
	Destination string `json:"destination"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type railTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type railErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatch asks the provider to move money to the creator's destination.
// Transient failures (network errors, HTTP 5xx) are retried with backoff;
// the idempotency key makes the retries safe. Client errors are not retried.
func (r *HTTPRail) Dispatch(ctx context.Context, req payout.DispatchRequest) (*payout.DispatchResult, error) {
	body, err := json.Marshal(railTransferRequest{
		PayoutID:    req.PayoutID.String(),
		Destination: req.DestinationRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("rail: failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := railRetryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, retryable, err := r.dispatchOnce(ctx, req.IdempotencyKey, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (r *HTTPRail) dispatchOnce(ctx context.Context, idempotencyKey string, body []byte) (*payout.DispatchResult, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+railTransfersPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("rail: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrRailUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("rail: failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, railError(resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return nil, false, railError(resp.StatusCode, respBody)
	}

	var transfer railTransferResponse
	if err := json.Unmarshal(respBody, &transfer); err != nil {
		return nil, false, fmt.Errorf("rail: failed to parse response: %w", err)
	}
	if transfer.TransferID == "" {
		return nil, false, fmt.Errorf("%w: response missing transfer_id", ErrRailRequestFailed)
	}

	return &payout.DispatchResult{ProviderRef: transfer.TransferID}, false, nil
}

func railError(status int, body []byte) error {
	var errResp railErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("%w: %s - %s", ErrRailRequestFailed, errResp.Code, errResp.Message)
	}
	return fmt.Errorf("%w: HTTP %d", ErrRailRequestFailed, status)
}
