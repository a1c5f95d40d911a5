package settlement

import (
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AllocationInput is one caller-requested line allocation
type AllocationInput struct {
	Ref    SourceLineRef
	Amount valueobject.Money
}

// UsageInput is one caller-requested prepayment consumption
type UsageInput struct {
	CreditID uuid.UUID
	Amount   valueobject.Money
}

// InstrumentInput is one payment instrument backing the settlement
type InstrumentInput struct {
	Method        PaymentMethod
	BankAccount   string
	ChequeNumber  string
	ChequeDueDate *time.Time
	Amount        valueobject.Money
}

// SettleRequest describes one settlement event. Allocations apply in
// the order given; the engine never reorders them.
type SettleRequest struct {
	TenantID            uuid.UUID
	DocumentNumber      string
	Direction           Direction
	CounterpartyID      uuid.UUID
	SettlementDate      time.Time
	TotalAmount         valueobject.Money
	Allocations         []AllocationInput
	Usages              []UsageInput
	AllowanceAmount     valueobject.Money
	NewPrepaymentAmount valueobject.Money // overpayment banked as fresh credit
	Instruments         []InstrumentInput
	Remark              string
}

// Engine is the setoff allocator. It validates a settlement request
// against the loaded lines and credits, then applies the mutations and
// builds the settlement document. It performs no I/O; the application
// layer loads state under lock, runs the engine and persists the result
// in one transaction.
//
// Validation is fail-fast and all-or-nothing: every rule runs before
// the first mutation, so a rejected request leaves lines and credits
// untouched.
type Engine struct{}

// NewEngine creates a setoff allocation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Settle validates and applies one settlement event.
//
// The request total must be fully explained twice over:
//   - destination: allocations + allowance + new prepayment == total
//   - funding: instruments + consumed credit + allowance == total
//
// Every cent lands on exactly one destination and comes from exactly
// one funding source; residue on either side rejects the request.
func (e *Engine) Settle(req SettleRequest, lines map[SourceLineRef]*SourceLine, credits map[uuid.UUID]*PrepaymentCredit) (*SettlementDocument, error) {
	if err := e.validateShape(req); err != nil {
		return nil, err
	}

	currency := req.TotalAmount.Currency()
	allowance := orZero(req.AllowanceAmount, currency)
	issued := orZero(req.NewPrepaymentAmount, currency)

	// Rule 1: every reference resolves and belongs to the stated
	// counterparty and direction.
	for _, alloc := range req.Allocations {
		line, ok := lines[alloc.Ref]
		if !ok {
			return nil, ErrLineNotFound(alloc.Ref)
		}
		if line.CounterpartyID != req.CounterpartyID || line.Direction() != req.Direction {
			return nil, ErrCounterpartyMismatch(fmt.Sprintf("source line %s", alloc.Ref))
		}
	}
	for _, usage := range req.Usages {
		credit, ok := credits[usage.CreditID]
		if !ok {
			return nil, ErrCreditNotFound(usage.CreditID)
		}
		if credit.CounterpartyID != req.CounterpartyID || credit.Direction != req.Direction {
			return nil, ErrCounterpartyMismatch(fmt.Sprintf("prepayment credit %s", usage.CreditID))
		}
	}

	// Rule 2: no allocation may exceed its line's outstanding balance.
	for _, alloc := range req.Allocations {
		outstanding := lines[alloc.Ref].Outstanding()
		over, err := alloc.Amount.GreaterThan(outstanding)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
		}
		if over {
			return nil, ErrOverAllocation(alloc.Ref, alloc.Amount, outstanding)
		}
	}

	// Rule 3: no usage may exceed its credit's available balance.
	for _, usage := range req.Usages {
		available := credits[usage.CreditID].AvailableBalance()
		over, err := usage.Amount.GreaterThan(available)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
		}
		if over {
			return nil, ErrInsufficientCredit(usage.CreditID, usage.Amount, available)
		}
	}

	// Rule 4: destination closure.
	allocated := valueobject.Zero(currency)
	for _, alloc := range req.Allocations {
		allocated = allocated.MustAdd(alloc.Amount)
	}
	destinations := allocated.MustAdd(allowance).MustAdd(issued)
	if !destinations.Equals(req.TotalAmount) {
		return nil, ErrUnbalancedAllocation(req.TotalAmount, destinations)
	}

	// Rule 5: funding closure.
	instrumentTotal := valueobject.Zero(currency)
	for _, inst := range req.Instruments {
		instrumentTotal = instrumentTotal.MustAdd(inst.Amount)
	}
	consumed := valueobject.Zero(currency)
	for _, usage := range req.Usages {
		consumed = consumed.MustAdd(usage.Amount)
	}
	funded := instrumentTotal.MustAdd(consumed).MustAdd(allowance)
	if !funded.Equals(req.TotalAmount) {
		return nil, ErrInstrumentMismatch(req.TotalAmount, funded)
	}

	// All rules passed; apply the mutations and assemble the document.
	doc := &SettlementDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(req.TenantID),
		DocumentNumber:      req.DocumentNumber,
		Direction:           req.Direction,
		CounterpartyID:      req.CounterpartyID,
		SettlementDate:      req.SettlementDate,
		TotalAmount:         req.TotalAmount,
		InstrumentTotal:     instrumentTotal,
		AllowanceAmount:     allowance,
		PrepaymentIssued:    issued,
		PrepaymentConsumed:  consumed,
		Status:              SettlementStatusPosted,
		Remark:              req.Remark,
	}

	for _, alloc := range req.Allocations {
		line := lines[alloc.Ref]
		if err := line.Allocate(alloc.Amount); err != nil {
			return nil, err
		}
		doc.Allocations = append(doc.Allocations, LineAllocation{
			ID:              uuid.New(),
			Ref:             alloc.Ref,
			Amount:          alloc.Amount,
			CumulativeAfter: line.AllocatedAmount,
			FullySettled:    line.Settled,
		})
	}

	for _, usage := range req.Usages {
		credit := credits[usage.CreditID]
		if err := credit.Consume(usage.Amount); err != nil {
			return nil, err
		}
		doc.Usages = append(doc.Usages, PrepaymentUsage{
			ID:       uuid.New(),
			CreditID: usage.CreditID,
			Amount:   usage.Amount,
		})
	}

	for _, inst := range req.Instruments {
		doc.Instruments = append(doc.Instruments, InstrumentLine{
			ID:            uuid.New(),
			Method:        inst.Method,
			BankAccount:   inst.BankAccount,
			ChequeNumber:  inst.ChequeNumber,
			ChequeDueDate: inst.ChequeDueDate,
			Amount:        inst.Amount,
		})
	}

	doc.AddDomainEvent(NewSettlementPostedEvent(doc))
	return doc, nil
}

// validateShape rejects structurally broken requests before any balance
// checks run
func (e *Engine) validateShape(req SettleRequest) error {
	if req.TenantID == uuid.Nil || req.CounterpartyID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "tenant and counterparty ids are required")
	}
	if req.DocumentNumber == "" {
		return shared.NewDomainError("INVALID_INPUT", "document number cannot be empty")
	}
	if !req.Direction.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid settlement direction: %s", req.Direction))
	}
	if req.SettlementDate.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "settlement date is required")
	}
	if !req.TotalAmount.IsPositive() {
		return ErrInvalidAmount("settlement total")
	}

	// Every amount in the request must share the total's currency;
	// the closure sums below never convert.
	currency := req.TotalAmount.Currency()
	if !req.AllowanceAmount.IsZero() && req.AllowanceAmount.Currency() != currency {
		return errCurrencyMismatch("allowance amount", req.AllowanceAmount.Currency(), currency)
	}
	if !req.NewPrepaymentAmount.IsZero() && req.NewPrepaymentAmount.Currency() != currency {
		return errCurrencyMismatch("new prepayment amount", req.NewPrepaymentAmount.Currency(), currency)
	}
	if len(req.Allocations) == 0 && !req.NewPrepaymentAmount.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT", "settlement needs at least one line allocation or a new prepayment")
	}
	if req.AllowanceAmount.IsNegative() {
		return ErrInvalidAmount("allowance amount")
	}
	if req.NewPrepaymentAmount.IsNegative() {
		return ErrInvalidAmount("new prepayment amount")
	}

	seenRefs := make(map[SourceLineRef]bool, len(req.Allocations))
	for _, alloc := range req.Allocations {
		if !alloc.Ref.Kind.IsValid() || alloc.Ref.LineID == uuid.Nil {
			return shared.NewDomainError("INVALID_INPUT", "invalid source line reference")
		}
		if seenRefs[alloc.Ref] {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("duplicate allocation for line %s", alloc.Ref))
		}
		seenRefs[alloc.Ref] = true
		if !alloc.Amount.IsPositive() {
			return ErrInvalidAmount(fmt.Sprintf("allocation amount for line %s", alloc.Ref))
		}
		if alloc.Amount.Currency() != currency {
			return errCurrencyMismatch(fmt.Sprintf("allocation for line %s", alloc.Ref), alloc.Amount.Currency(), currency)
		}
	}

	seenCredits := make(map[uuid.UUID]bool, len(req.Usages))
	for _, usage := range req.Usages {
		if usage.CreditID == uuid.Nil {
			return shared.NewDomainError("INVALID_INPUT", "prepayment credit id cannot be nil")
		}
		if seenCredits[usage.CreditID] {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("duplicate usage for credit %s", usage.CreditID))
		}
		seenCredits[usage.CreditID] = true
		if !usage.Amount.IsPositive() {
			return ErrInvalidAmount(fmt.Sprintf("usage amount for credit %s", usage.CreditID))
		}
		if usage.Amount.Currency() != currency {
			return errCurrencyMismatch(fmt.Sprintf("usage for credit %s", usage.CreditID), usage.Amount.Currency(), currency)
		}
	}

	for i, inst := range req.Instruments {
		if !inst.Method.IsValid() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("instrument %d: invalid payment method %s", i, inst.Method))
		}
		if !inst.Amount.IsPositive() {
			return ErrInvalidAmount(fmt.Sprintf("instrument %d amount", i))
		}
		if inst.Amount.Currency() != currency {
			return errCurrencyMismatch(fmt.Sprintf("instrument %d", i), inst.Amount.Currency(), currency)
		}
	}
	return nil
}

func errCurrencyMismatch(what string, got, want valueobject.Currency) error {
	return shared.NewDomainError("INVALID_INPUT",
		fmt.Sprintf("%s is in %s, settlement is in %s", what, got, want))
}

// orZero substitutes the currency-typed zero for an unset amount
func orZero(m valueobject.Money, currency valueobject.Currency) valueobject.Money {
	if m.IsZero() {
		return valueobject.Zero(currency)
	}
	return m
}
