package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/dispute"
	"github.com/streamcart/backend/internal/domain/ledger"
	domainpolicy "github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// EventDeduper suppresses redelivered provider webhooks. Seen marks the
// event and reports whether it was already recorded; Forget releases the
// mark so a redelivery is processed after a transient failure.
type EventDeduper interface {
	Seen(ctx context.Context, channel, provider, eventID string) (bool, error)
	Forget(ctx context.Context, channel, provider, eventID string) error
}

// EvidenceStorage stores evidence attachment bodies under a key
type EvidenceStorage interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Service runs the dispute lifecycle: ingestion, evidence assembly, and
// submission to the provider.
type Service struct {
	disputeRepo dispute.Repository
	packRepo    dispute.EvidencePackRepository
	ledgerTxns  ledger.TransactionRepository
	governor    *policyapp.Governor
	deduper     EventDeduper
	storage     EvidenceStorage
	submitter   dispute.Submitter
	logger      *zap.Logger
}

// NewService creates a dispute Service
func NewService(
	disputeRepo dispute.Repository,
	packRepo dispute.EvidencePackRepository,
	ledgerTxns ledger.TransactionRepository,
	governor *policyapp.Governor,
	deduper EventDeduper,
	storage EvidenceStorage,
	submitter dispute.Submitter,
	logger *zap.Logger,
) *Service {
	return &Service{
		disputeRepo: disputeRepo,
		packRepo:    packRepo,
		ledgerTxns:  ledgerTxns,
		governor:    governor,
		deduper:     deduper,
		storage:     storage,
		submitter:   submitter,
		logger:      logger,
	}
}

// log returns the service logger enriched with the trace and request
// correlation fields carried by ctx.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.logger)
}

// publishEvents emits the domain events drained from a persisted
// aggregate. There is no broker yet; events go to the log where the
// audit trail picks them up.
func (s *Service) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	for _, ev := range events {
		s.log(ctx).Debug("domain event",
			zap.String("event_type", ev.EventType()),
			zap.String("aggregate_type", ev.AggregateType()),
			zap.String("aggregate_id", ev.AggregateID().String()))
	}
}

// IngestRequest is one provider dispute notification
type IngestRequest struct {
	EventID          string
	Channel          string
	Provider         string
	ProviderCaseID   string
	ProviderStatus   string
	AmountCents      int64
	Currency         valueobject.Currency
	ReasonCode       dispute.ReasonCode
	EvidenceDeadline time.Time
	OrderID          *uuid.UUID
}

// IngestCase records a provider notification. Redelivered events are
// dropped, and a known (channel, provider, case) updates the existing
// case instead of opening a second one. Returns the case and whether
// this call created it.
func (s *Service) IngestCase(ctx context.Context, req IngestRequest) (d *dispute.Dispute, created bool, retErr error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispute", "ingest_case")
	defer span.End()
	telemetry.SetAttribute(span, "provider_case_id", req.ProviderCaseID)

	if req.EventID != "" {
		seen, err := s.deduper.Seen(ctx, req.Channel, req.Provider, req.EventID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check event dedup: %w", err)
		}
		if seen {
			telemetry.AddEvent(span, "event_already_processed")
			existing, err := s.disputeRepo.FindByProviderCase(ctx, req.Channel, req.Provider, req.ProviderCaseID)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return nil, false, fmt.Errorf("failed to get dispute: %w", err)
			}
			return existing, false, nil
		}
		// Seen marks at check time. Release the mark when ingestion
		// fails so the provider's retry is not dropped as a duplicate.
		defer func() {
			if retErr != nil {
				if err := s.deduper.Forget(ctx, req.Channel, req.Provider, req.EventID); err != nil {
					s.log(ctx).Warn("failed to release event dedup mark",
						zap.String("event_id", req.EventID), zap.Error(err))
				}
			}
		}()
	}

	existing, err := s.disputeRepo.FindByProviderCase(ctx, req.Channel, req.Provider, req.ProviderCaseID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get dispute: %w", err)
	}
	if existing != nil {
		existing.ApplyProviderUpdate(req.ProviderStatus, time.Now().UTC())
		if err := s.disputeRepo.SaveWithLock(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to save dispute: %w", err)
		}
		return existing, false, nil
	}

	d, err = dispute.NewDispute(req.Channel, req.Provider, req.ProviderCaseID,
		req.AmountCents, req.Currency, req.ReasonCode, req.EvidenceDeadline)
	if err != nil {
		return nil, false, err
	}
	d.ProviderStatus = req.ProviderStatus

	if req.OrderID != nil {
		txnIDs, err := s.ledgerTxns.FindTxnIDsBySource(ctx, ledger.SourceTypeOrder, *req.OrderID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up order transactions: %w", err)
		}
		var txnID *uuid.UUID
		if len(txnIDs) > 0 {
			txnID = &txnIDs[0]
		}
		if err := d.AttachOrder(*req.OrderID, txnID); err != nil {
			return nil, false, err
		}
	}

	if err := s.disputeRepo.Save(ctx, d); err != nil {
		return nil, false, fmt.Errorf("failed to save dispute: %w", err)
	}

	s.publishEvents(ctx, d.DrainEvents())
	s.log(ctx).Info("dispute case opened",
		zap.String("dispute_id", d.ID.String()),
		zap.String("provider", req.Provider),
		zap.String("provider_case_id", req.ProviderCaseID),
		zap.Int64("amount_cents", req.AmountCents))

	return d, true, nil
}

// AttachmentInput is one evidence file to upload
type AttachmentInput struct {
	Filename    string
	ContentType string
	Body        []byte
}

// EvidenceInput carries the fields to merge into the evidence pack.
// Zero-valued fields are left untouched.
type EvidenceInput struct {
	OrderSummary   string
	Carrier        string
	TrackingNumber string
	DeliveryProof  string
	DeliveredAt    *time.Time
	Communications []dispute.Communication
	PolicyText     string
	RefundEvidence string
	Attachments    []AttachmentInput
}

// BuildEvidenceResult reports the state of the pack after assembly
type BuildEvidenceResult struct {
	Dispute *dispute.Dispute      `json:"dispute"`
	Pack    *dispute.EvidencePack `json:"pack"`
	// Missing lists the reason code's required fields still absent. The
	// pack is ready when this is empty.
	Missing []string `json:"missing"`
	Ready   bool     `json:"ready"`
}

// BuildEvidence merges input into the dispute's evidence pack and tries
// to finalize it. An incomplete pack is reported through Missing, not as
// an error, so callers can assemble evidence over several calls.
func (s *Service) BuildEvidence(ctx context.Context, disputeID uuid.UUID, input EvidenceInput, actor *uuid.UUID) (*BuildEvidenceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispute", "build_evidence")
	defer span.End()

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	pack, err := s.packRepo.FindByDisputeID(ctx, disputeID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to get evidence pack: %w", err)
	}
	if pack == nil {
		pack, err = dispute.NewEvidencePack(disputeID, d.ReasonCode)
		if err != nil {
			return nil, err
		}
	}
	if pack.Status == dispute.PackStatusReady {
		if err := pack.Reopen(); err != nil {
			return nil, err
		}
	}

	if d.Status == dispute.StatusOpen {
		if err := d.RequireEvidence(actor); err != nil {
			return nil, err
		}
	}
	if err := d.BeginEvidence(pack.ID, actor); err != nil {
		return nil, err
	}

	if err := s.applyInput(ctx, d, pack, input); err != nil {
		return nil, err
	}

	result := &BuildEvidenceResult{Dispute: d, Pack: pack}
	if err := pack.Finalize(); err != nil {
		var domainErr *shared.DomainError
		if !shared.AsDomainError(err, &domainErr) || domainErr.Code != "EVIDENCE_INCOMPLETE" {
			return nil, err
		}
		result.Missing = pack.MissingFields()
	} else {
		if err := d.MarkEvidenceReady(actor); err != nil {
			return nil, err
		}
		result.Ready = true
	}

	if err := s.packRepo.Save(ctx, pack); err != nil {
		return nil, fmt.Errorf("failed to save evidence pack: %w", err)
	}
	if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}
	return result, nil
}

func (s *Service) applyInput(ctx context.Context, d *dispute.Dispute, pack *dispute.EvidencePack, input EvidenceInput) error {
	if input.OrderSummary != "" {
		if err := pack.SetOrderSummary(input.OrderSummary); err != nil {
			return err
		}
	}
	if input.TrackingNumber != "" || input.DeliveryProof != "" {
		if err := pack.SetShipment(input.Carrier, input.TrackingNumber, input.DeliveryProof, input.DeliveredAt); err != nil {
			return err
		}
	}
	for _, c := range input.Communications {
		if err := pack.AddCommunication(c); err != nil {
			return err
		}
	}
	if input.PolicyText != "" {
		if err := pack.SetPolicyText(input.PolicyText); err != nil {
			return err
		}
	}
	if input.RefundEvidence != "" {
		if err := pack.SetRefundEvidence(input.RefundEvidence); err != nil {
			return err
		}
	}
	for _, a := range input.Attachments {
		key := fmt.Sprintf("disputes/%s/%s/%s", d.ID, pack.ID, a.Filename)
		if err := s.storage.Put(ctx, key, a.ContentType, a.Body); err != nil {
			return fmt.Errorf("failed to store attachment: %w", err)
		}
		if _, err := pack.AddAttachment(a.Filename, a.ContentType, key, int64(len(a.Body))); err != nil {
			return err
		}
	}
	return nil
}

// Submit delivers the ready evidence pack to the provider. A
// past-deadline attempt fails closed: the case is flagged for manual
// handling, an incident is recorded, and nothing reaches the provider.
// A provider delivery failure also flags the case rather than leaving
// it stuck in limbo.
func (s *Service) Submit(ctx context.Context, disputeID uuid.UUID, actor *uuid.UUID) (*dispute.Dispute, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispute", "submit")
	defer span.End()

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.EvidencePackID == nil {
		return nil, shared.NewDomainError("NO_EVIDENCE_PACK", "Dispute has no evidence pack")
	}
	pack, err := s.packRepo.FindByID(ctx, *d.EvidencePackID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to get evidence pack: %w", err)
	}
	if pack == nil || pack.Status != dispute.PackStatusReady {
		return nil, shared.NewDomainError("PACK_NOT_READY", "Evidence pack is not ready for submission")
	}

	now := time.Now().UTC()
	if err := d.Submit(now, actor); err != nil {
		var domainErr *shared.DomainError
		if shared.AsDomainError(err, &domainErr) && domainErr.Code == "DEADLINE_PASSED" {
			if saveErr := s.disputeRepo.SaveWithLock(ctx, d); saveErr != nil {
				return nil, fmt.Errorf("failed to save dispute: %w", saveErr)
			}
			if _, incErr := s.governor.RecordIncident(ctx, domainpolicy.IncidentInvalidTransition,
				domainpolicy.IncidentSeverityWarning, "dispute.submit",
				"Evidence deadline passed before submission", &d.ID); incErr != nil {
				s.log(ctx).Error("failed to record incident", zap.Error(incErr))
			}
		}
		return nil, err
	}
	if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}

	// Provider delivery happens after the state transition is committed
	// and outside any database transaction.
	_, submitErr := s.submitter.SubmitEvidence(ctx, dispute.SubmissionRequest{
		DisputeID:      d.ID,
		Provider:       d.Provider,
		ProviderCaseID: d.ProviderCaseID,
		Pack:           pack,
	})
	if submitErr != nil {
		telemetry.RecordError(span, submitErr)
		if err := d.FlagManual(fmt.Sprintf("Provider submission failed: %v", submitErr), actor); err != nil {
			return nil, err
		}
		if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save dispute: %w", err)
		}
		s.log(ctx).Warn("evidence submission failed",
			zap.String("dispute_id", d.ID.String()),
			zap.Error(submitErr))
		return d, nil
	}

	if err := pack.MarkSubmitted(now); err != nil {
		return nil, err
	}
	if err := s.packRepo.Save(ctx, pack); err != nil {
		return nil, fmt.Errorf("failed to save evidence pack: %w", err)
	}

	s.publishEvents(ctx, d.DrainEvents())
	s.log(ctx).Info("evidence submitted",
		zap.String("dispute_id", d.ID.String()),
		zap.String("provider_case_id", d.ProviderCaseID))

	return d, nil
}

// Resolve records the provider's final decision
func (s *Service) Resolve(ctx context.Context, disputeID uuid.UUID, won bool, actor *uuid.UUID) (*dispute.Dispute, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if won {
		err = d.MarkWon(actor)
	} else {
		err = d.MarkLost(actor)
	}
	if err != nil {
		return nil, err
	}
	if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}
	s.publishEvents(ctx, d.DrainEvents())
	return d, nil
}

// Close finalizes a resolved dispute
func (s *Service) Close(ctx context.Context, disputeID uuid.UUID, actor *uuid.UUID) (*dispute.Dispute, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := d.Close(actor); err != nil {
		return nil, err
	}
	if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}
	return d, nil
}

// CancelResult carries the dispute together with the policy decision
type CancelResult struct {
	Dispute  *dispute.Dispute    `json:"dispute"`
	Decision *policyapp.Decision `json:"decision"`
}

// Cancel terminates a case. Cancellation is a governed action: walking
// away from a contestable dispute forfeits the disputed amount.
func (s *Service) Cancel(ctx context.Context, disputeID uuid.UUID, reason string, actor *uuid.UUID) (*CancelResult, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	decision, err := s.governor.CheckPolicy(ctx, "dispute.cancel", domainpolicy.Context{
		"amount_cents": d.AmountCents,
		"status":       d.Status.String(),
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return &CancelResult{Dispute: d, Decision: decision}, nil
	}

	if err := d.Cancel(reason, actor); err != nil {
		return nil, err
	}
	if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}
	return &CancelResult{Dispute: d, Decision: decision}, nil
}

// DeadlineReport summarizes one deadline sweep
type DeadlineReport struct {
	Examined int `json:"examined"`
	Flagged  int `json:"flagged"`
}

// SweepDeadlines flags cases whose evidence deadline falls within the
// warning window and that have not yet been submitted. Repeat sweeps
// skip cases already flagged.
func (s *Service) SweepDeadlines(ctx context.Context, within time.Duration) (*DeadlineReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispute", "sweep_deadlines")
	defer span.End()

	cutoff := time.Now().UTC().Add(within)
	disputes, err := s.disputeRepo.FindApproachingDeadline(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}

	report := &DeadlineReport{}
	for _, d := range disputes {
		report.Examined++
		if d.NeedsManual || d.Status == dispute.StatusSubmitted {
			continue
		}
		if err := d.FlagManual("Evidence deadline approaching without submission", nil); err != nil {
			s.log(ctx).Error("failed to flag dispute",
				zap.String("dispute_id", d.ID.String()),
				zap.Error(err))
			continue
		}
		if err := s.disputeRepo.SaveWithLock(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save dispute: %w", err)
		}
		report.Flagged++
	}

	telemetry.SetAttributes(span,
		"examined", report.Examined,
		"flagged", report.Flagged)

	return report, nil
}

// Get returns one dispute
func (s *Service) Get(ctx context.Context, disputeID uuid.UUID) (*dispute.Dispute, error) {
	return s.getDispute(ctx, disputeID)
}

// GetEvidencePack returns the pack for a dispute
func (s *Service) GetEvidencePack(ctx context.Context, disputeID uuid.UUID) (*dispute.EvidencePack, error) {
	pack, err := s.packRepo.FindByDisputeID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("PACK_NOT_FOUND", "Evidence pack not found")
		}
		return nil, fmt.Errorf("failed to get evidence pack: %w", err)
	}
	return pack, nil
}

// List returns disputes matching the filter
func (s *Service) List(ctx context.Context, filter dispute.Filter) ([]*dispute.Dispute, int64, error) {
	disputes, err := s.disputeRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list disputes: %w", err)
	}
	count, err := s.disputeRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}
	return disputes, count, nil
}

func (s *Service) getDispute(ctx context.Context, disputeID uuid.UUID) (*dispute.Dispute, error) {
	d, err := s.disputeRepo.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("DISPUTE_NOT_FOUND", "Dispute not found")
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil
}
