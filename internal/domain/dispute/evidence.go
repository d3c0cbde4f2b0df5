package dispute

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// ReasonCode classifies why the cardholder or provider opened the case.
// The reason code determines which evidence fields are required.
type ReasonCode string

const (
	ReasonFraudulent         ReasonCode = "FRAUDULENT"
	ReasonProductNotReceived ReasonCode = "PRODUCT_NOT_RECEIVED"
	ReasonNotAsDescribed     ReasonCode = "PRODUCT_NOT_AS_DESCRIBED"
	ReasonDuplicateCharge    ReasonCode = "DUPLICATE_CHARGE"
	ReasonCreditNotProcessed ReasonCode = "CREDIT_NOT_PROCESSED"
	ReasonGeneral            ReasonCode = "GENERAL"
)

// IsValid checks if the reason code is valid
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonFraudulent, ReasonProductNotReceived, ReasonNotAsDescribed,
		ReasonDuplicateCharge, ReasonCreditNotProcessed, ReasonGeneral:
		return true
	}
	return false
}

// String returns the string representation of ReasonCode
func (r ReasonCode) String() string {
	return string(r)
}

// Evidence field keys
const (
	FieldOrderSummary   = "order_summary"
	FieldTracking       = "tracking"
	FieldDeliveryProof  = "delivery_proof"
	FieldCommunications = "communications"
	FieldPolicyText     = "policy_text"
	FieldRefundEvidence = "refund_evidence"
)

// requiredFields maps each reason code to the evidence it must carry
// before the pack can be marked ready
var requiredFields = map[ReasonCode][]string{
	ReasonFraudulent:         {FieldOrderSummary, FieldTracking, FieldDeliveryProof, FieldCommunications},
	ReasonProductNotReceived: {FieldOrderSummary, FieldTracking, FieldDeliveryProof},
	ReasonNotAsDescribed:     {FieldOrderSummary, FieldCommunications, FieldPolicyText},
	ReasonDuplicateCharge:    {FieldOrderSummary, FieldRefundEvidence},
	ReasonCreditNotProcessed: {FieldOrderSummary, FieldRefundEvidence, FieldPolicyText},
	ReasonGeneral:            {FieldOrderSummary},
}

// RequiredFields returns the evidence fields a reason code demands
func RequiredFields(reason ReasonCode) []string {
	fields := requiredFields[reason]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// PackStatus is the evidence pack lifecycle
type PackStatus string

const (
	PackStatusBuilding  PackStatus = "BUILDING"
	PackStatusReady     PackStatus = "READY"
	PackStatusSubmitted PackStatus = "SUBMITTED"
)

// IsValid checks if the pack status is valid
func (s PackStatus) IsValid() bool {
	switch s {
	case PackStatusBuilding, PackStatusReady, PackStatusSubmitted:
		return true
	}
	return false
}

// Communication is one customer interaction included as evidence
type Communication struct {
	Channel    string    `json:"channel"` // e.g. "email", "chat"
	Direction  string    `json:"direction"`
	Excerpt    string    `json:"excerpt"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Attachment references an uploaded evidence file in object storage
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// EvidencePack is the assembled proof bundle for contesting a dispute.
// It transitions BUILDING to READY only when every field required by the
// dispute's reason code is present.
type EvidencePack struct {
	shared.BaseAggregateRoot

	DisputeID  uuid.UUID  `json:"dispute_id"`
	ReasonCode ReasonCode `json:"reason_code"`
	Status     PackStatus `json:"status"`

	OrderSummary   string          `json:"order_summary,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Carrier        string          `json:"carrier,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	DeliveryProof  string          `json:"delivery_proof,omitempty"`
	Communications []Communication `json:"communications,omitempty"`
	PolicyText     string          `json:"policy_text,omitempty"`
	RefundEvidence string          `json:"refund_evidence,omitempty"`
	Attachments    []Attachment    `json:"attachments,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// NewEvidencePack starts an empty pack for a dispute
func NewEvidencePack(disputeID uuid.UUID, reason ReasonCode) (*EvidencePack, error) {
	if disputeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DISPUTE", "Dispute ID cannot be empty")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON_CODE",
			fmt.Sprintf("Invalid dispute reason code: %s", reason))
	}

	return &EvidencePack{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DisputeID:         disputeID,
		ReasonCode:        reason,
		Status:            PackStatusBuilding,
		Communications:    make([]Communication, 0),
		Attachments:       make([]Attachment, 0),
	}, nil
}

// SetOrderSummary fills the order summary field
func (p *EvidencePack) SetOrderSummary(summary string) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.OrderSummary = summary
	p.touch()
	return nil
}

// SetShipment fills tracking and delivery proof
func (p *EvidencePack) SetShipment(carrier, trackingNumber, deliveryProof string, deliveredAt *time.Time) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.Carrier = carrier
	p.TrackingNumber = trackingNumber
	p.DeliveryProof = deliveryProof
	p.DeliveredAt = deliveredAt
	p.touch()
	return nil
}

// AddCommunication appends a customer interaction record
func (p *EvidencePack) AddCommunication(c Communication) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.Communications = append(p.Communications, c)
	p.touch()
	return nil
}

// SetPolicyText fills the applicable store policy excerpt
func (p *EvidencePack) SetPolicyText(text string) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.PolicyText = text
	p.touch()
	return nil
}

// SetRefundEvidence fills proof of any refund or credit already issued
func (p *EvidencePack) SetRefundEvidence(text string) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.RefundEvidence = text
	p.touch()
	return nil
}

// AddAttachment references an uploaded file in object storage
func (p *EvidencePack) AddAttachment(filename, contentType, storageKey string, sizeBytes int64) (*Attachment, error) {
	if err := p.mutable(); err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, shared.NewDomainError("INVALID_ATTACHMENT", "Attachment filename cannot be empty")
	}
	if storageKey == "" {
		return nil, shared.NewDomainError("INVALID_ATTACHMENT", "Attachment storage key cannot be empty")
	}

	att := Attachment{
		ID:          uuid.New(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  storageKey,
		UploadedAt:  nowUTC(),
	}
	p.Attachments = append(p.Attachments, att)
	p.touch()
	return &att, nil
}

// MissingFields reports which required fields are still empty,
// sorted for stable output
func (p *EvidencePack) MissingFields() []string {
	missing := make([]string, 0)
	for _, field := range requiredFields[p.ReasonCode] {
		if !p.hasField(field) {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

func (p *EvidencePack) hasField(field string) bool {
	switch field {
	case FieldOrderSummary:
		return p.OrderSummary != ""
	case FieldTracking:
		return p.TrackingNumber != ""
	case FieldDeliveryProof:
		return p.DeliveryProof != ""
	case FieldCommunications:
		return len(p.Communications) > 0
	case FieldPolicyText:
		return p.PolicyText != ""
	case FieldRefundEvidence:
		return p.RefundEvidence != ""
	}
	return false
}

// Finalize transitions BUILDING to READY when every required field is
// present. Missing evidence keeps the pack in BUILDING and is reported,
// never silently submitted.
func (p *EvidencePack) Finalize() error {
	if p.Status != PackStatusBuilding {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot finalize evidence pack in %s status", p.Status))
	}
	if missing := p.MissingFields(); len(missing) > 0 {
		return shared.NewDomainError("EVIDENCE_INCOMPLETE",
			fmt.Sprintf("Missing required evidence: %v", missing))
	}

	p.Status = PackStatusReady
	p.touch()
	return nil
}

// Reopen returns a READY pack to BUILDING for further edits
func (p *EvidencePack) Reopen() error {
	if p.Status != PackStatusReady {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reopen evidence pack in %s status", p.Status))
	}
	p.Status = PackStatusBuilding
	p.touch()
	return nil
}

// MarkSubmitted records the provider handoff
func (p *EvidencePack) MarkSubmitted(at time.Time) error {
	if p.Status != PackStatusReady {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit evidence pack in %s status", p.Status))
	}
	submitted := at.UTC()
	p.Status = PackStatusSubmitted
	p.SubmittedAt = &submitted
	p.touch()
	return nil
}

func (p *EvidencePack) mutable() error {
	if p.Status == PackStatusSubmitted {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify a submitted evidence pack")
	}
	return nil
}

func (p *EvidencePack) touch() {
	p.UpdatedAt = nowUTC()
}
