package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Direction says which side of the balance sheet a settlement touches
type Direction string

const (
	DirectionReceivable Direction = "RECEIVABLE" // money collected from customers
	DirectionPayable    Direction = "PAYABLE"    // money paid to suppliers
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionReceivable || d == DirectionPayable
}

// SourceKind tags which business document a settled line came from
type SourceKind string

const (
	SourceKindSalesOrderLine        SourceKind = "SALES_ORDER_LINE"
	SourceKindSalesReturnLine       SourceKind = "SALES_RETURN_LINE"
	SourceKindPurchaseReceivingLine SourceKind = "PURCHASE_RECEIVING_LINE"
	SourceKindPurchaseReturnLine    SourceKind = "PURCHASE_RETURN_LINE"
)

// IsValid checks if the source kind is valid
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindSalesOrderLine, SourceKindSalesReturnLine,
		SourceKindPurchaseReceivingLine, SourceKindPurchaseReturnLine:
		return true
	}
	return false
}

// Direction returns the settlement side a line of this kind belongs to
func (k SourceKind) Direction() Direction {
	switch k {
	case SourceKindSalesOrderLine, SourceKindSalesReturnLine:
		return DirectionReceivable
	default:
		return DirectionPayable
	}
}

// SourceLineRef identifies one source document line as a tagged pair.
// Exactly one kind and one id, so a reference can never point at zero
// or multiple source tables.
type SourceLineRef struct {
	Kind   SourceKind
	LineID uuid.UUID
}

// NewSourceLineRef creates a validated source line reference
func NewSourceLineRef(kind SourceKind, lineID uuid.UUID) (SourceLineRef, error) {
	if !kind.IsValid() {
		return SourceLineRef{}, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid source kind: %s", kind))
	}
	if lineID == uuid.Nil {
		return SourceLineRef{}, shared.NewDomainError("INVALID_INPUT", "source line id cannot be nil")
	}
	return SourceLineRef{Kind: kind, LineID: lineID}, nil
}

// String renders the reference as kind:id
func (r SourceLineRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.LineID)
}

// SourceLine is the settlement-side view of one business document line:
// its original amount and the running total already allocated to it.
// The running total is maintained here, not recomputed from allocation
// history, so outstanding lookups stay O(1).
type SourceLine struct {
	shared.TenantAggregateRoot
	Ref             SourceLineRef
	CounterpartyID  uuid.UUID
	DocumentNumber  string
	BusinessDate    time.Time
	OriginalAmount  valueobject.Money
	AllocatedAmount valueobject.Money
	Settled         bool
}

// NewSourceLine registers a document line for settlement tracking
func NewSourceLine(tenantID uuid.UUID, ref SourceLineRef, counterpartyID uuid.UUID, documentNumber string, businessDate time.Time, originalAmount valueobject.Money) (*SourceLine, error) {
	if !ref.Kind.IsValid() || ref.LineID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "invalid source line reference")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "counterparty id cannot be nil")
	}
	if strings.TrimSpace(documentNumber) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "document number cannot be empty")
	}
	if !originalAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "original amount must be positive")
	}

	return &SourceLine{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Ref:                 ref,
		CounterpartyID:      counterpartyID,
		DocumentNumber:      documentNumber,
		BusinessDate:        businessDate,
		OriginalAmount:      originalAmount,
		AllocatedAmount:     valueobject.Zero(originalAmount.Currency()),
	}, nil
}

// Direction returns the settlement side of this line
func (l *SourceLine) Direction() Direction {
	return l.Ref.Kind.Direction()
}

// Outstanding returns the amount still open for settlement
func (l *SourceLine) Outstanding() valueobject.Money {
	return l.OriginalAmount.MustSubtract(l.AllocatedAmount)
}

// Allocate advances the cumulative allocated total. Allocation is
// monotonic: amounts are positive and the total never exceeds the
// original amount.
func (l *SourceLine) Allocate(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "allocation amount must be positive")
	}
	outstanding := l.Outstanding()
	over, err := amount.GreaterThan(outstanding)
	if err != nil {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if over {
		return ErrOverAllocation(l.Ref, amount, outstanding)
	}
	l.AllocatedAmount = l.AllocatedAmount.MustAdd(amount)
	l.Settled = l.AllocatedAmount.Equals(l.OriginalAmount)
	return nil
}

// Release rolls back a previously committed allocation during reversal
func (l *SourceLine) Release(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "release amount must be positive")
	}
	over, err := amount.GreaterThan(l.AllocatedAmount)
	if err != nil {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if over {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cannot release %s from line %s with only %s allocated", amount, l.Ref, l.AllocatedAmount))
	}
	l.AllocatedAmount = l.AllocatedAmount.MustSubtract(amount)
	l.Settled = l.AllocatedAmount.Equals(l.OriginalAmount)
	return nil
}
