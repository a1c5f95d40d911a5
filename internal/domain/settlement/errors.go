package settlement

import (
	"fmt"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Error constructors for the setoff validation taxonomy. Every rejection
// names the offending line or credit so the caller can correct and
// resubmit.

// ErrLineNotFound reports a source line reference that does not resolve
func ErrLineNotFound(ref SourceLineRef) *shared.DomainError {
	return shared.NewDomainError("LINE_NOT_FOUND",
		fmt.Sprintf("source line %s not found", ref))
}

// ErrCreditNotFound reports a prepayment credit id that does not resolve
func ErrCreditNotFound(creditID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError("CREDIT_NOT_FOUND",
		fmt.Sprintf("prepayment credit %s not found", creditID))
}

// ErrCounterpartyMismatch reports a line or credit belonging to a
// different counterparty or settlement side than the document states
func ErrCounterpartyMismatch(subject string) *shared.DomainError {
	return shared.NewDomainError("COUNTERPARTY_MISMATCH",
		fmt.Sprintf("%s does not belong to the stated counterparty and direction", subject))
}

// ErrOverAllocation reports an allocation exceeding a line's outstanding balance
func ErrOverAllocation(ref SourceLineRef, requested, outstanding valueobject.Money) *shared.DomainError {
	return shared.NewDomainError("OVER_ALLOCATION",
		fmt.Sprintf("allocation of %s to line %s exceeds outstanding balance %s", requested, ref, outstanding))
}

// ErrInsufficientCredit reports a usage exceeding a credit's available balance
func ErrInsufficientCredit(creditID uuid.UUID, requested, available valueobject.Money) *shared.DomainError {
	return shared.NewDomainError("INSUFFICIENT_CREDIT",
		fmt.Sprintf("usage of %s against credit %s exceeds available balance %s", requested, creditID, available))
}

// ErrUnbalancedAllocation reports a settlement whose total is not fully
// accounted for by line allocations, allowance and newly issued credit
func ErrUnbalancedAllocation(total, accounted valueobject.Money) *shared.DomainError {
	residual := total.MustSubtract(accounted)
	return shared.NewDomainError("UNBALANCED_ALLOCATION",
		fmt.Sprintf("settlement total %s is not fully allocated: %s accounted, residual %s", total, accounted, residual))
}

// ErrInstrumentMismatch reports instrument lines that do not fund the
// settlement total together with consumed credit and allowance
func ErrInstrumentMismatch(total, funded valueobject.Money) *shared.DomainError {
	return shared.NewDomainError("INSTRUMENT_MISMATCH",
		fmt.Sprintf("instruments, consumed credit and allowance fund %s but settlement total is %s", funded, total))
}

// ErrInvalidAmount reports a non-positive monetary input
func ErrInvalidAmount(subject string) *shared.DomainError {
	return shared.NewDomainError("INVALID_AMOUNT",
		fmt.Sprintf("%s must be positive", subject))
}
