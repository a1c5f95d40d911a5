package settlement

import (
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PrepaymentCredit is a standing credit balance for one counterparty:
// money banked before any document existed to apply it to. Receivable
// side credits are customer prepayments; payable side credits are
// advances paid to suppliers.
//
// UsedAmount only moves inside a settlement transaction, never
// standalone, so two settlements can not both spend the same credit.
type PrepaymentCredit struct {
	shared.TenantAggregateRoot
	CounterpartyID     uuid.UUID
	Direction          Direction
	SourceDocumentCode string // settlement document that issued the credit
	Amount             valueobject.Money
	UsedAmount         valueobject.Money
	IssuedAt           time.Time
}

// NewPrepaymentCredit issues a credit with nothing consumed yet
func NewPrepaymentCredit(tenantID, counterpartyID uuid.UUID, direction Direction, sourceDocumentCode string, amount valueobject.Money, issuedAt time.Time) (*PrepaymentCredit, error) {
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "counterparty id cannot be nil")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "invalid settlement direction")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount("prepayment amount")
	}

	credit := &PrepaymentCredit{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CounterpartyID:      counterpartyID,
		Direction:           direction,
		SourceDocumentCode:  sourceDocumentCode,
		Amount:              amount,
		UsedAmount:          valueobject.Zero(amount.Currency()),
		IssuedAt:            issuedAt,
	}
	credit.AddDomainEvent(NewPrepaymentIssuedEvent(credit))
	return credit, nil
}

// AvailableBalance returns the unconsumed remainder of the credit
func (c *PrepaymentCredit) AvailableBalance() valueobject.Money {
	return c.Amount.MustSubtract(c.UsedAmount)
}

// Consume increases the used amount. Consumption is monotonic and can
// never push UsedAmount past the issued amount.
func (c *PrepaymentCredit) Consume(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount("consumption amount")
	}
	available := c.AvailableBalance()
	over, err := amount.GreaterThan(available)
	if err != nil {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if over {
		return ErrInsufficientCredit(c.ID, amount, available)
	}
	c.UsedAmount = c.UsedAmount.MustAdd(amount)
	return nil
}

// Revoke extinguishes a credit when the settlement that issued it is
// reversed. Only an untouched credit can be revoked; once any amount
// has been consumed the reversal must be corrected the other way round.
func (c *PrepaymentCredit) Revoke() error {
	if !c.UsedAmount.IsZero() {
		return shared.NewDomainError("INVALID_STATE",
			"cannot revoke a prepayment credit that has been partially consumed")
	}
	c.Amount = valueobject.Zero(c.Amount.Currency())
	return nil
}

// Release rolls back a previously committed consumption during reversal
func (c *PrepaymentCredit) Release(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount("release amount")
	}
	over, err := amount.GreaterThan(c.UsedAmount)
	if err != nil {
		return shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if over {
		return shared.NewDomainError("INVALID_STATE", "cannot release more than the consumed amount")
	}
	c.UsedAmount = c.UsedAmount.MustSubtract(amount)
	return nil
}
