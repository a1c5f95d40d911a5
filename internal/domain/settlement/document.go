package settlement

import (
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SettlementStatus is the lifecycle state of a settlement document.
// Draft exists only inside the settle transaction; a persisted document
// is always POSTED or REVERSED.
type SettlementStatus string

const (
	SettlementStatusPosted   SettlementStatus = "POSTED"
	SettlementStatusReversed SettlementStatus = "REVERSED"
)

// IsValid checks if the settlement status is valid
func (s SettlementStatus) IsValid() bool {
	return s == SettlementStatusPosted || s == SettlementStatusReversed
}

// PaymentMethod classifies how money physically moved
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheque       PaymentMethod = "CHEQUE"
	MethodOnline       PaymentMethod = "ONLINE"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheque, MethodOnline:
		return true
	}
	return false
}

// LineAllocation is one settled slice of a source document line,
// owned by its settlement document
type LineAllocation struct {
	ID              uuid.UUID
	Ref             SourceLineRef
	Amount          valueobject.Money
	CumulativeAfter valueobject.Money // line's running total after this event
	FullySettled    bool
}

// PrepaymentUsage records credit consumed by this settlement
type PrepaymentUsage struct {
	ID       uuid.UUID
	CreditID uuid.UUID
	Amount   valueobject.Money
}

// InstrumentLine is one physical payment instrument backing the settlement
type InstrumentLine struct {
	ID            uuid.UUID
	Method        PaymentMethod
	BankAccount   string
	ChequeNumber  string
	ChequeDueDate *time.Time
	Amount        valueobject.Money
}

// SettlementDocument is one committed settlement event. It owns its
// allocations, usages and instrument lines; it only references the
// source lines and credits it moved. Immutable once posted, apart from
// the reversal transition.
type SettlementDocument struct {
	shared.TenantAggregateRoot
	DocumentNumber     string
	Direction          Direction
	CounterpartyID     uuid.UUID
	SettlementDate     time.Time
	TotalAmount        valueobject.Money
	InstrumentTotal    valueobject.Money
	AllowanceAmount    valueobject.Money
	PrepaymentIssued   valueobject.Money
	PrepaymentConsumed valueobject.Money
	Status             SettlementStatus
	Remark             string
	JournalEntryID     *uuid.UUID
	Allocations        []LineAllocation
	Usages             []PrepaymentUsage
	Instruments        []InstrumentLine
}

// AllocationsTotal sums the per-line allocations
func (d *SettlementDocument) AllocationsTotal() valueobject.Money {
	total := valueobject.Zero(d.TotalAmount.Currency())
	for _, a := range d.Allocations {
		total = total.MustAdd(a.Amount)
	}
	return total
}

// IsReversed reports whether the document has been reversed
func (d *SettlementDocument) IsReversed() bool {
	return d.Status == SettlementStatusReversed
}

// AttachJournalEntry links the ledger entry created in the same transaction
func (d *SettlementDocument) AttachJournalEntry(entryID uuid.UUID) {
	d.JournalEntryID = &entryID
}

// MarkReversed closes the document. One-shot: a reversed document can
// only be read, never settled or reversed again.
func (d *SettlementDocument) MarkReversed(reason string) error {
	if d.IsReversed() {
		return shared.NewDomainError("ALREADY_REVERSED",
			"settlement document "+d.DocumentNumber+" has already been reversed")
	}
	d.Status = SettlementStatusReversed
	d.AddDomainEvent(NewSettlementReversedEvent(d, reason))
	return nil
}
