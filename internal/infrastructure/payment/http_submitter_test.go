package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/backend/internal/domain/dispute"
	infraconfig "github.com/streamcart/backend/internal/infrastructure/config"
)

func TestNewHTTPSubmitter(t *testing.T) {
	tests := []struct {
		name    string
		config  infraconfig.DisputeConfig
		wantErr error
	}{
		{
			name: "valid config",
			config: infraconfig.DisputeConfig{
				ProviderBaseURL: "https://disputes.example.com",
				ProviderAPIKey:  "dk_test_123",
			},
			wantErr: nil,
		},
		{
			name:    "missing base URL",
			config:  infraconfig.DisputeConfig{ProviderAPIKey: "dk_test_123"},
			wantErr: ErrProviderMissingBaseURL,
		},
		{
			name:    "missing API key",
			config:  infraconfig.DisputeConfig{ProviderBaseURL: "https://disputes.example.com"},
			wantErr: ErrProviderMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter, err := NewHTTPSubmitter(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, submitter)
		})
	}
}

func submissionFixture(t *testing.T) dispute.SubmissionRequest {
	t.Helper()

	disputeID := uuid.New()
	pack, err := dispute.NewEvidencePack(disputeID, dispute.ReasonProductNotReceived)
	require.NoError(t, err)

	require.NoError(t, pack.SetOrderSummary("Order #1042, live stream 2025-06-12"))
	delivered := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, pack.SetShipment("UPS", "1Z999AA10123456784", "signed POD scan", &delivered))
	require.NoError(t, pack.AddCommunication(dispute.Communication{
		Channel:    "email",
		Direction:  "outbound",
		Excerpt:    "Your order shipped on June 13",
		OccurredAt: time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC),
	}))
	_, err = pack.AddAttachment("pod.pdf", "application/pdf", "disputes/d1/p1/pod.pdf", 2048)
	require.NoError(t, err)

	return dispute.SubmissionRequest{
		DisputeID:      disputeID,
		Provider:       "stripe",
		ProviderCaseID: "dp_123",
		Pack:           pack,
	}
}

func TestHTTPSubmitter_SubmitEvidence(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		req := submissionFixture(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/disputes/dp_123/evidence", r.URL.Path)
			assert.Equal(t, "Bearer dk_test_123", r.Header.Get("Authorization"))

			var body evidenceSubmission
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, req.DisputeID.String(), body.DisputeID)
			assert.Equal(t, "1Z999AA10123456784", body.TrackingNumber)
			assert.Equal(t, "UPS", body.Carrier)
			require.Len(t, body.Communications, 1)
			assert.Equal(t, "email", body.Communications[0].Channel)
			require.Len(t, body.Attachments, 1)
			assert.Equal(t, "disputes/d1/p1/pod.pdf", body.Attachments[0].StorageKey)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(submissionResponse{SubmissionID: "sub_456", Status: "received"})
		}))
		defer server.Close()

		submitter, err := NewHTTPSubmitter(infraconfig.DisputeConfig{
			ProviderBaseURL: server.URL,
			ProviderAPIKey:  "dk_test_123",
		})
		require.NoError(t, err)

		result, err := submitter.SubmitEvidence(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "sub_456", result.ProviderRef)
	})

	t.Run("provider error response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(providerErrorResponse{Code: "case_closed", Message: "dispute already resolved"})
		}))
		defer server.Close()

		submitter, err := NewHTTPSubmitter(infraconfig.DisputeConfig{
			ProviderBaseURL: server.URL,
			ProviderAPIKey:  "dk_test_123",
		})
		require.NoError(t, err)

		_, err = submitter.SubmitEvidence(context.Background(), submissionFixture(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderRequestFailed)
		assert.Contains(t, err.Error(), "case_closed")
	})

	t.Run("rejects response without submission ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"received"}`))
		}))
		defer server.Close()

		submitter, err := NewHTTPSubmitter(infraconfig.DisputeConfig{
			ProviderBaseURL: server.URL,
			ProviderAPIKey:  "dk_test_123",
		})
		require.NoError(t, err)

		_, err = submitter.SubmitEvidence(context.Background(), submissionFixture(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing submission_id")
	})

	t.Run("nil pack", func(t *testing.T) {
		submitter, err := NewHTTPSubmitter(infraconfig.DisputeConfig{
			ProviderBaseURL: "https://disputes.example.com",
			ProviderAPIKey:  "dk_test_123",
		})
		require.NoError(t, err)

		_, err = submitter.SubmitEvidence(context.Background(), dispute.SubmissionRequest{
			DisputeID:      uuid.New(),
			ProviderCaseID: "dp_999",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evidence pack is required")
	})

	t.Run("escapes provider case ID in path", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotContains(t, r.URL.Path, "..")
			json.NewEncoder(w).Encode(submissionResponse{SubmissionID: "sub_789"})
		}))
		defer server.Close()

		submitter, err := NewHTTPSubmitter(infraconfig.DisputeConfig{
			ProviderBaseURL: server.URL,
			ProviderAPIKey:  "dk_test_123",
		})
		require.NoError(t, err)

		req := submissionFixture(t)
		req.ProviderCaseID = "dp/../123"

		result, err := submitter.SubmitEvidence(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "sub_789", result.ProviderRef)
	})
}
