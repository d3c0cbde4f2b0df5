package dispute

import (
	"context"

	"github.com/google/uuid"
)

// SubmissionRequest carries the assembled evidence to the provider
type SubmissionRequest struct {
	DisputeID      uuid.UUID
	Provider       string
	ProviderCaseID string
	Pack           *EvidencePack
}

// SubmissionResult is the provider's acknowledgement
type SubmissionResult struct {
	ProviderRef string
}

// Submitter delivers an evidence pack to the dispute provider. The call
// crosses a network boundary; implementations must be safe to retry.
type Submitter interface {
	SubmitEvidence(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error)
}
