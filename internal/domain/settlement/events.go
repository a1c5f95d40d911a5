package settlement

import (
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the settlement domain
const (
	EventTypeSettlementPosted   = "settlement.document.posted"
	EventTypeSettlementReversed = "settlement.document.reversed"
	EventTypePrepaymentIssued   = "settlement.prepayment.issued"
)

// SettlementPostedEvent is raised when a settlement commits
type SettlementPostedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string    `json:"document_number"`
	Direction      Direction `json:"direction"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	TotalAmount    string    `json:"total_amount"`
	LineCount      int       `json:"line_count"`
}

// NewSettlementPostedEvent creates a settlement posted event
func NewSettlementPostedEvent(doc *SettlementDocument) *SettlementPostedEvent {
	return &SettlementPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSettlementPosted, "SettlementDocument", doc.ID, doc.TenantID),
		DocumentNumber:  doc.DocumentNumber,
		Direction:       doc.Direction,
		CounterpartyID:  doc.CounterpartyID,
		TotalAmount:     doc.TotalAmount.Amount().String(),
		LineCount:       len(doc.Allocations),
	}
}

// SettlementReversedEvent is raised when a settlement is rolled back
type SettlementReversedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string `json:"document_number"`
	Reason         string `json:"reason"`
}

// NewSettlementReversedEvent creates a settlement reversed event
func NewSettlementReversedEvent(doc *SettlementDocument, reason string) *SettlementReversedEvent {
	return &SettlementReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSettlementReversed, "SettlementDocument", doc.ID, doc.TenantID),
		DocumentNumber:  doc.DocumentNumber,
		Reason:          reason,
	}
}

// PrepaymentIssuedEvent is raised when a new credit is banked
type PrepaymentIssuedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Direction      Direction `json:"direction"`
	Amount         string    `json:"amount"`
}

// NewPrepaymentIssuedEvent creates a prepayment issued event
func NewPrepaymentIssuedEvent(credit *PrepaymentCredit) *PrepaymentIssuedEvent {
	return &PrepaymentIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrepaymentIssued, "PrepaymentCredit", credit.ID, credit.TenantID),
		CounterpartyID:  credit.CounterpartyID,
		Direction:       credit.Direction,
		Amount:          credit.Amount.Amount().String(),
	}
}
