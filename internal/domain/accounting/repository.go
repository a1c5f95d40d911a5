package accounting

import (
	"context"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryFilter narrows journal entry listings
type JournalEntryFilter struct {
	EntryType        *EntryType
	Status           *EntryStatus
	FiscalPeriod     string
	SourceDocumentID *uuid.UUID
	AccountCode      string
	Page             int
	PageSize         int
}

// TrialBalanceRow is one account's aggregated activity in a period
type TrialBalanceRow struct {
	AccountCode string
	AccountName string
	Direction   AccountDirection
	TotalDebit  valueobject.Money
	TotalCredit valueobject.Money
}

// JournalEntryRepository persists journal entries
type JournalEntryRepository interface {
	Save(ctx context.Context, entry *JournalEntry) error
	// SaveWithLock persists with an optimistic version check and returns
	// shared.ErrConcurrencyConflict when the stored version moved on
	SaveWithLock(ctx context.Context, entry *JournalEntry, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	// FindByIDForUpdate loads the entry under a row lock for reversal
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	FindByEntryNumber(ctx context.Context, tenantID uuid.UUID, entryNumber string) (*JournalEntry, error)
	FindBySourceDocument(ctx context.Context, tenantID, sourceDocumentID uuid.UUID) ([]*JournalEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, filter JournalEntryFilter) (*shared.Paginated[*JournalEntry], error)
	// TrialBalance aggregates posted lines per account for one fiscal period
	TrialBalance(ctx context.Context, tenantID uuid.UUID, fiscalPeriod string) ([]TrialBalanceRow, error)
	// NextEntryNumber allocates a sequential entry number for the period
	NextEntryNumber(ctx context.Context, tenantID uuid.UUID, fiscalPeriod string) (string, error)
}

// AccountItemRepository persists the chart of accounts
type AccountItemRepository interface {
	Save(ctx context.Context, account *AccountItem) error
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*AccountItem, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]*AccountItem, error)
	Delete(ctx context.Context, tenantID uuid.UUID, code string) error
}
