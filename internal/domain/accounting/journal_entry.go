package accounting

import (
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalSide is the side of a journal line
type JournalSide string

const (
	SideDebit  JournalSide = "DEBIT"
	SideCredit JournalSide = "CREDIT"
)

// IsValid checks if the journal side is valid
func (s JournalSide) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the other side
func (s JournalSide) Opposite() JournalSide {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// EntryStatus represents the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

// IsValid checks if the entry status is valid
func (s EntryStatus) IsValid() bool {
	return s == EntryStatusPosted || s == EntryStatusReversed
}

// EntryType identifies the business transaction a journal entry records
type EntryType string

const (
	EntryTypeReceivableSettlement   EntryType = "RECEIVABLE_SETTLEMENT"
	EntryTypePayableSettlement      EntryType = "PAYABLE_SETTLEMENT"
	EntryTypePrepaymentIssue        EntryType = "PREPAYMENT_ISSUE"
	EntryTypeAdvanceIssue           EntryType = "ADVANCE_ISSUE"
	EntryTypeSalesAccrual           EntryType = "SALES_ACCRUAL"
	EntryTypeSalesReturnAccrual     EntryType = "SALES_RETURN_ACCRUAL"
	EntryTypePurchaseAccrual        EntryType = "PURCHASE_ACCRUAL"
	EntryTypePurchaseReturnAccrual  EntryType = "PURCHASE_RETURN_ACCRUAL"
	EntryTypeReversal               EntryType = "REVERSAL"
)

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeReceivableSettlement, EntryTypePayableSettlement,
		EntryTypePrepaymentIssue, EntryTypeAdvanceIssue,
		EntryTypeSalesAccrual, EntryTypeSalesReturnAccrual,
		EntryTypePurchaseAccrual, EntryTypePurchaseReturnAccrual,
		EntryTypeReversal:
		return true
	}
	return false
}

// JournalLine is a single debit or credit within a journal entry.
// The amount is always positive; the side carries the sign.
type JournalLine struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	AccountCode string
	Side        JournalSide
	Amount      valueobject.Money
	Memo        string
}

// JournalEntry is an immutable double-entry record. Once posted it is
// never edited; corrections happen through a reversal entry.
type JournalEntry struct {
	shared.TenantAggregateRoot
	EntryNumber      string
	EntryType        EntryType
	Status           EntryStatus
	BusinessDate     time.Time
	FiscalPeriod     string // YYYY-MM, derived from BusinessDate
	SourceDocumentID *uuid.UUID
	Description      string
	Lines            []JournalLine
	ReversalOfID     *uuid.UUID // set on reversal entries
	ReversedByID     *uuid.UUID // set on the original once reversed
}

// FiscalPeriodOf derives the fiscal period label for a business date
func FiscalPeriodOf(date time.Time) string {
	return date.Format("2006-01")
}

// NewJournalEntry creates a posted journal entry after checking the
// double-entry invariant: every line positive, total debits equal
// total credits, and at least two lines present.
func NewJournalEntry(tenantID uuid.UUID, entryNumber string, entryType EntryType, businessDate time.Time, sourceDocumentID *uuid.UUID, description string, lines []JournalLine) (*JournalEntry, error) {
	if entryNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "entry number cannot be empty")
	}
	if !entryType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid entry type: %s", entryType))
	}
	if businessDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "business date is required")
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	entry := &JournalEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntryNumber:         entryNumber,
		EntryType:           entryType,
		Status:              EntryStatusPosted,
		BusinessDate:        businessDate,
		FiscalPeriod:        FiscalPeriodOf(businessDate),
		SourceDocumentID:    sourceDocumentID,
		Description:         description,
		Lines:               lines,
	}
	entry.AddDomainEvent(NewJournalEntryPostedEvent(entry))
	return entry, nil
}

func validateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return shared.NewDomainError("IMBALANCED_ENTRY", "journal entry requires at least two lines")
	}

	debits := valueobject.ZeroCNY()
	credits := valueobject.ZeroCNY()
	for i, line := range lines {
		if !line.Side.IsValid() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("line %d: invalid journal side %s", i, line.Side))
		}
		if !line.Amount.IsPositive() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("line %d: journal line amount must be positive", i))
		}
		var err error
		switch line.Side {
		case SideDebit:
			debits, err = debits.Add(line.Amount)
		case SideCredit:
			credits, err = credits.Add(line.Amount)
		}
		if err != nil {
			return shared.NewDomainError("INVALID_INPUT", err.Error())
		}
	}

	if !debits.Equals(credits) {
		return shared.NewDomainError("IMBALANCED_ENTRY",
			fmt.Sprintf("journal entry is imbalanced: debits %s, credits %s", debits, credits))
	}
	return nil
}

// TotalDebit returns the sum of all debit lines
func (e *JournalEntry) TotalDebit() valueobject.Money {
	total := valueobject.ZeroCNY()
	for _, line := range e.Lines {
		if line.Side == SideDebit {
			total = total.MustAdd(line.Amount)
		}
	}
	return total
}

// TotalCredit returns the sum of all credit lines
func (e *JournalEntry) TotalCredit() valueobject.Money {
	total := valueobject.ZeroCNY()
	for _, line := range e.Lines {
		if line.Side == SideCredit {
			total = total.MustAdd(line.Amount)
		}
	}
	return total
}

// IsReversed reports whether a reversal entry already exists for this entry
func (e *JournalEntry) IsReversed() bool {
	return e.Status == EntryStatusReversed
}

// BuildReversal creates the mirror entry for this one: same lines with
// the sides flipped, dated with the given business date. It does not
// mutate the original; call MarkReversed with the new entry's ID once
// the reversal is persisted in the same transaction.
func (e *JournalEntry) BuildReversal(entryNumber string, businessDate time.Time, description string) (*JournalEntry, error) {
	if e.IsReversed() {
		return nil, shared.NewDomainError("ALREADY_REVERSED",
			fmt.Sprintf("journal entry %s has already been reversed", e.EntryNumber))
	}
	if e.EntryType == EntryTypeReversal {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("journal entry %s is itself a reversal", e.EntryNumber))
	}

	mirrored := make([]JournalLine, len(e.Lines))
	for i, line := range e.Lines {
		mirrored[i] = JournalLine{
			ID:          uuid.New(),
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Side:        line.Side.Opposite(),
			Amount:      line.Amount,
			Memo:        line.Memo,
		}
	}

	reversal, err := NewJournalEntry(e.TenantID, entryNumber, EntryTypeReversal, businessDate, e.SourceDocumentID, description, mirrored)
	if err != nil {
		return nil, err
	}
	originalID := e.ID
	reversal.ReversalOfID = &originalID
	return reversal, nil
}

// MarkReversed links this entry to its reversal and closes it
func (e *JournalEntry) MarkReversed(reversalID uuid.UUID) error {
	if e.IsReversed() {
		return shared.NewDomainError("ALREADY_REVERSED",
			fmt.Sprintf("journal entry %s has already been reversed", e.EntryNumber))
	}
	e.Status = EntryStatusReversed
	e.ReversedByID = &reversalID
	e.AddDomainEvent(NewJournalEntryReversedEvent(e, reversalID))
	return nil
}
