package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod represents how one part of a split is paid at the terminal.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileWallet PaymentMethod = "mobile_wallet"
)

// Valid reports whether m is one of the supported payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodMobileWallet:
		return true
	}
	return false
}

// SplitStatus represents the overall status of a split payment.
type SplitStatus string

const (
	SplitStatusPending    SplitStatus = "pending"
	SplitStatusProcessing SplitStatus = "processing"
	SplitStatusCompleted  SplitStatus = "completed"
	SplitStatusFailed     SplitStatus = "failed"
)

// Terminal reports whether no further transition can occur.
func (s SplitStatus) Terminal() bool {
	return s == SplitStatusCompleted || s == SplitStatusFailed
}

// PartState represents the lifecycle status of one part.
type PartState string

const (
	PartStatePending    PartState = "pending"
	PartStateProcessing PartState = "processing"
	PartStateApproved   PartState = "approved"
	PartStateRejected   PartState = "rejected"
	PartStateError      PartState = "error"
)

// Terminal reports whether no further transition can occur.
func (s PartState) Terminal() bool {
	return s == PartStateApproved || s == PartStateRejected || s == PartStateError
}

// SplitPart is one requested share of a split payment.
type SplitPart struct {
	Method     PaymentMethod   `json:"payment_method"`
	Percentage decimal.Decimal `json:"percentage"`
	Label      string          `json:"label,omitempty"`
}

// PartStatus is the progress record of one part.
type PartStatus struct {
	Index              int             `json:"index"`
	Method             PaymentMethod   `json:"payment_method"`
	Label              string          `json:"label,omitempty"`
	Status             PartState       `json:"status"`
	Amount             TaxAmount       `json:"amount"`
	Reference          int64           `json:"reference"`
	PrecedingReference int64           `json:"preceding_reference"`
	TransactionID      string          `json:"transaction_id,omitempty"`
	Details            json.RawMessage `json:"details,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// SplitPaymentProgress is the full state of one split payment.
type SplitPaymentProgress struct {
	ID        string       `json:"id"`
	Status    SplitStatus  `json:"status"`
	Message   string       `json:"message"`
	Reference int64        `json:"reference"`
	Total     TaxAmount    `json:"total"`
	Parts     []PartStatus `json:"parts"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewSplitPaymentProgress creates a split payment in processing state with
// every part pending. amounts must be index-aligned with parts.
func NewSplitPaymentProgress(id string, reference int64, total TaxAmount, parts []SplitPart, amounts []TaxAmount, now time.Time) *SplitPaymentProgress {
	statuses := make([]PartStatus, len(parts))
	for i, p := range parts {
		statuses[i] = PartStatus{
			Index:  i,
			Method: p.Method,
			Label:  p.Label,
			Status: PartStatePending,
			Amount: amounts[i],
		}
	}

	return &SplitPaymentProgress{
		ID:        id,
		Status:    SplitStatusProcessing,
		Message:   fmt.Sprintf("split payment accepted: %d parts", len(parts)),
		Reference: reference,
		Total:     total,
		Parts:     statuses,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *SplitPaymentProgress) part(i int) (*PartStatus, error) {
	if i < 0 || i >= len(p.Parts) {
		return nil, fmt.Errorf("%w: %d", ErrPartIndexOutOfRange, i)
	}
	return &p.Parts[i], nil
}

// StartPart moves part i to processing and records the reference pair it uses.
func (p *SplitPaymentProgress) StartPart(i int, reference, preceding int64, now time.Time) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: split %s is %s", ErrInvalidTransition, p.ID, p.Status)
	}
	part, err := p.part(i)
	if err != nil {
		return err
	}
	if part.Status != PartStatePending {
		return fmt.Errorf("%w: part %d %s -> %s", ErrInvalidTransition, i, part.Status, PartStateProcessing)
	}

	part.Status = PartStateProcessing
	part.Reference = reference
	part.PrecedingReference = preceding
	part.StartedAt = &now
	p.Message = fmt.Sprintf("processing part %d of %d", i+1, len(p.Parts))
	p.UpdatedAt = now
	return nil
}

// SetTransactionID records the vendor transaction of a processing part.
func (p *SplitPaymentProgress) SetTransactionID(i int, transactionID string, now time.Time) error {
	part, err := p.part(i)
	if err != nil {
		return err
	}
	if part.Status != PartStateProcessing {
		return fmt.Errorf("%w: part %d is %s", ErrInvalidTransition, i, part.Status)
	}
	part.TransactionID = transactionID
	p.Message = fmt.Sprintf("waiting for terminal on part %d of %d", i+1, len(p.Parts))
	p.UpdatedAt = now
	return nil
}

// ApprovePart marks a processing part approved.
func (p *SplitPaymentProgress) ApprovePart(i int, details json.RawMessage, now time.Time) error {
	part, err := p.part(i)
	if err != nil {
		return err
	}
	if part.Status != PartStateProcessing {
		return fmt.Errorf("%w: part %d %s -> %s", ErrInvalidTransition, i, part.Status, PartStateApproved)
	}
	part.Status = PartStateApproved
	part.Details = details
	part.CompletedAt = &now
	p.Message = fmt.Sprintf("part %d of %d approved", i+1, len(p.Parts))
	p.UpdatedAt = now
	return nil
}

// FailPart marks a processing part rejected or errored and fails the split.
// Later parts stay pending.
func (p *SplitPaymentProgress) FailPart(i int, state PartState, message string, now time.Time) error {
	if state != PartStateRejected && state != PartStateError {
		return fmt.Errorf("%w: %s is not a failure state", ErrInvalidTransition, state)
	}
	part, err := p.part(i)
	if err != nil {
		return err
	}
	if part.Status != PartStateProcessing {
		return fmt.Errorf("%w: part %d %s -> %s", ErrInvalidTransition, i, part.Status, state)
	}
	part.Status = state
	part.Error = message
	part.CompletedAt = &now

	p.Status = SplitStatusFailed
	p.Message = fmt.Sprintf("failed at part %d of %d: %s", i+1, len(p.Parts), message)
	p.UpdatedAt = now
	return nil
}

// Complete marks the split completed once every part is approved.
func (p *SplitPaymentProgress) Complete(now time.Time) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: split %s is %s", ErrInvalidTransition, p.ID, p.Status)
	}
	for _, part := range p.Parts {
		if part.Status != PartStateApproved {
			return fmt.Errorf("%w: part %d is %s", ErrInvalidTransition, part.Index, part.Status)
		}
	}
	p.Status = SplitStatusCompleted
	p.Message = fmt.Sprintf("completed: %d of %d parts approved", len(p.Parts), len(p.Parts))
	p.UpdatedAt = now
	return nil
}

// ApprovedParts returns the parts that were approved, in order.
func (p *SplitPaymentProgress) ApprovedParts() []PartStatus {
	var approved []PartStatus
	for _, part := range p.Parts {
		if part.Status == PartStateApproved {
			approved = append(approved, part)
		}
	}
	return approved
}

// NeedsVoid reports whether a failed split left approved parts that must be
// voided by hand.
func (p *SplitPaymentProgress) NeedsVoid() bool {
	return p.Status == SplitStatusFailed && len(p.ApprovedParts()) > 0
}

// Clone returns a deep copy.
func (p *SplitPaymentProgress) Clone() *SplitPaymentProgress {
	if p == nil {
		return nil
	}
	c := *p
	c.Total = p.Total.Clone()
	c.Parts = make([]PartStatus, len(p.Parts))
	for i, part := range p.Parts {
		cp := part
		cp.Amount = part.Amount.Clone()
		if part.Details != nil {
			cp.Details = append(json.RawMessage(nil), part.Details...)
		}
		if part.StartedAt != nil {
			t := *part.StartedAt
			cp.StartedAt = &t
		}
		if part.CompletedAt != nil {
			t := *part.CompletedAt
			cp.CompletedAt = &t
		}
		c.Parts[i] = cp
	}
	return &c
}
