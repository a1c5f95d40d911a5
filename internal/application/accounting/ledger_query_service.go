package accounting

import (
	"context"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// LedgerQueryService answers read-only ledger questions: entry lookups,
// listings and the period trial balance.
type LedgerQueryService struct {
	entries accounting.JournalEntryRepository
}

// NewLedgerQueryService creates a new LedgerQueryService
func NewLedgerQueryService(entries accounting.JournalEntryRepository) *LedgerQueryService {
	return &LedgerQueryService{entries: entries}
}

// GetEntry loads one journal entry by id
func (s *LedgerQueryService) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*accounting.JournalEntry, error) {
	return s.entries.FindByID(ctx, tenantID, id)
}

// GetEntryByNumber loads one journal entry by its number
func (s *LedgerQueryService) GetEntryByNumber(ctx context.Context, tenantID uuid.UUID, entryNumber string) (*accounting.JournalEntry, error) {
	return s.entries.FindByEntryNumber(ctx, tenantID, entryNumber)
}

// EntriesForDocument lists all entries a source document produced,
// reversals included
func (s *LedgerQueryService) EntriesForDocument(ctx context.Context, tenantID, sourceDocumentID uuid.UUID) ([]*accounting.JournalEntry, error) {
	return s.entries.FindBySourceDocument(ctx, tenantID, sourceDocumentID)
}

// ListEntries pages through journal entries
func (s *LedgerQueryService) ListEntries(ctx context.Context, tenantID uuid.UUID, filter accounting.JournalEntryFilter) (*shared.Paginated[*accounting.JournalEntry], error) {
	return s.entries.List(ctx, tenantID, filter)
}

// TrialBalanceReport is the aggregated ledger activity of one period
type TrialBalanceReport struct {
	FiscalPeriod string
	Rows         []accounting.TrialBalanceRow
	TotalDebit   valueobject.Money
	TotalCredit  valueobject.Money
	Balanced     bool
}

// TrialBalance aggregates the period's postings per account and checks
// that total debits equal total credits. An unbalanced report signals
// storage corruption, because every committed entry balances by
// construction.
func (s *LedgerQueryService) TrialBalance(ctx context.Context, tenantID uuid.UUID, fiscalPeriod string) (*TrialBalanceReport, error) {
	rows, err := s.entries.TrialBalance(ctx, tenantID, fiscalPeriod)
	if err != nil {
		return nil, err
	}

	totalDebit := valueobject.ZeroCNY()
	totalCredit := valueobject.ZeroCNY()
	for _, row := range rows {
		if !row.TotalDebit.IsZero() {
			totalDebit = totalDebit.MustAdd(row.TotalDebit)
		}
		if !row.TotalCredit.IsZero() {
			totalCredit = totalCredit.MustAdd(row.TotalCredit)
		}
	}

	return &TrialBalanceReport{
		FiscalPeriod: fiscalPeriod,
		Rows:         rows,
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		Balanced:     totalDebit.Equals(totalCredit),
	}, nil
}
