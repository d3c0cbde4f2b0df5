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
	"time"

	"github.com/streamcart/backend/internal/domain/dispute"
	infraconfig "github.com/streamcart/backend/internal/infrastructure/config"
)

const defaultSubmitterTimeout = 30 * time.Second

// Errors for dispute provider configuration and calls
var (
	ErrProviderMissingBaseURL = errors.New("dispute provider: missing base URL")
	ErrProviderMissingAPIKey  = errors.New("dispute provider: missing API key")
	ErrProviderUnavailable    = errors.New("dispute provider: unavailable")
	ErrProviderRequestFailed  = errors.New("dispute provider: request failed")
)

// Ensure HTTPSubmitter implements the dispute submission port
var _ dispute.Submitter = (*HTTPSubmitter)(nil)

// HTTPSubmitter delivers evidence packs to the dispute provider's case API.
type HTTPSubmitter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSubmitter creates a submitter from configuration.
func NewHTTPSubmitter(cfg infraconfig.DisputeConfig) (*HTTPSubmitter, error) {
	if cfg.ProviderBaseURL == "" {
		return nil, ErrProviderMissingBaseURL
	}
	if cfg.ProviderAPIKey == "" {
		return nil, ErrProviderMissingAPIKey
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultSubmitterTimeout
	}

	return &HTTPSubmitter{
		baseURL:    cfg.ProviderBaseURL,
		apiKey:     cfg.ProviderAPIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type evidenceSubmission struct {
	DisputeID      string               `json:"dispute_id"`
	OrderSummary   string               `json:"order_summary,omitempty"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	Carrier        string               `json:"carrier,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	DeliveryProof  string               `json:"delivery_proof,omitempty"`
	Communications []submissionMessage  `json:"communications,omitempty"`
	PolicyText     string               `json:"policy_text,omitempty"`
	RefundEvidence string               `json:"refund_evidence,omitempty"`
	Attachments    []submissionDocument `json:"attachments,omitempty"`
}

type submissionMessage struct {
	Channel    string    `json:"channel"`
	Direction  string    `json:"direction"`
	Excerpt    string    `json:"excerpt"`
	OccurredAt time.Time `json:"occurred_at"`
}

type submissionDocument struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
	SizeBytes   int64  `json:"size_bytes"`
}

type submissionResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

type providerErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitEvidence posts the assembled pack to the provider's case. The
// provider treats repeated submissions for the same case as an update,
// so the call is safe to retry.
func (s *HTTPSubmitter) SubmitEvidence(ctx context.Context, req dispute.SubmissionRequest) (*dispute.SubmissionResult, error) {
	if req.Pack == nil {
		return nil, fmt.Errorf("%w: evidence pack is required", ErrProviderRequestFailed)
	}

	body, err := json.Marshal(buildSubmission(req))
	if err != nil {
		return nil, fmt.Errorf("dispute provider: failed to marshal evidence: %w", err)
	}

	path := fmt.Sprintf("/v1/disputes/%s/evidence", url.PathEscape(req.ProviderCaseID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispute provider: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dispute provider: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp providerErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrProviderRequestFailed, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderRequestFailed, resp.StatusCode)
	}

	var submission submissionResponse
	if err := json.Unmarshal(respBody, &submission); err != nil {
		return nil, fmt.Errorf("dispute provider: failed to parse response: %w", err)
	}
	if submission.SubmissionID == "" {
		return nil, fmt.Errorf("%w: response missing submission_id", ErrProviderRequestFailed)
	}

	return &dispute.SubmissionResult{ProviderRef: submission.SubmissionID}, nil
}

func buildSubmission(req dispute.SubmissionRequest) evidenceSubmission {
	pack := req.Pack

	sub := evidenceSubmission{
		DisputeID:      req.DisputeID.String(),
		OrderSummary:   pack.OrderSummary,
		TrackingNumber: pack.TrackingNumber,
		Carrier:        pack.Carrier,
		DeliveredAt:    pack.DeliveredAt,
		DeliveryProof:  pack.DeliveryProof,
		PolicyText:     pack.PolicyText,
		RefundEvidence: pack.RefundEvidence,
	}

	for _, c := range pack.Communications {
		sub.Communications = append(sub.Communications, submissionMessage{
			Channel:    c.Channel,
			Direction:  c.Direction,
			Excerpt:    c.Excerpt,
			OccurredAt: c.OccurredAt,
		})
	}

	for _, a := range pack.Attachments {
		sub.Attachments = append(sub.Attachments, submissionDocument{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			StorageKey:  a.StorageKey,
			SizeBytes:   a.SizeBytes,
		})
	}

	return sub
}
