package settlement

import (
	"context"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
)

// SourceLineRepository persists settlement-side source line balances
type SourceLineRepository interface {
	Save(ctx context.Context, line *SourceLine) error
	// SaveWithLock persists with an optimistic version check and returns
	// shared.ErrConcurrencyConflict when the stored version moved on
	SaveWithLock(ctx context.Context, line *SourceLine, expectedVersion int) error
	FindByRef(ctx context.Context, tenantID uuid.UUID, ref SourceLineRef) (*SourceLine, error)
	FindByRefs(ctx context.Context, tenantID uuid.UUID, refs []SourceLineRef) ([]*SourceLine, error)
	// FindByRefsForUpdate loads lines under row locks for the settle
	// transaction, so racing settlements serialize on the same lines
	FindByRefsForUpdate(ctx context.Context, tenantID uuid.UUID, refs []SourceLineRef) ([]*SourceLine, error)
	// FindOpenByCounterparty lists lines with outstanding balance,
	// oldest first, for FIFO selection
	FindOpenByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction Direction) ([]*SourceLine, error)
}

// PrepaymentCreditRepository persists prepayment credits
type PrepaymentCreditRepository interface {
	Save(ctx context.Context, credit *PrepaymentCredit) error
	SaveWithLock(ctx context.Context, credit *PrepaymentCredit, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PrepaymentCredit, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*PrepaymentCredit, error)
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*PrepaymentCredit, error)
	// FindBySourceDocumentCode locates the credit a settlement document
	// issued, for revocation during reversal
	FindBySourceDocumentCode(ctx context.Context, tenantID uuid.UUID, sourceDocumentCode string) (*PrepaymentCredit, error)
	// FindAvailableByCounterparty lists credits with available balance,
	// oldest issue first
	FindAvailableByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction Direction) ([]*PrepaymentCredit, error)
}

// SettlementDocumentFilter narrows settlement document listings
type SettlementDocumentFilter struct {
	Direction      *Direction
	Status         *SettlementStatus
	CounterpartyID *uuid.UUID
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	PageSize       int
}

// SettlementDocumentRepository persists settlement documents with their
// owned allocations, usages and instrument lines
type SettlementDocumentRepository interface {
	Save(ctx context.Context, doc *SettlementDocument) error
	SaveWithLock(ctx context.Context, doc *SettlementDocument, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SettlementDocument, error)
	// FindByIDForUpdate loads the document under a row lock so reversal
	// and concurrent reversal serialize
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*SettlementDocument, error)
	FindByDocumentNumber(ctx context.Context, tenantID uuid.UUID, documentNumber string) (*SettlementDocument, error)
	List(ctx context.Context, tenantID uuid.UUID, filter SettlementDocumentFilter) (*shared.Paginated[*SettlementDocument], error)
	// NextDocumentNumber allocates a sequential settlement number for the day
	NextDocumentNumber(ctx context.Context, tenantID uuid.UUID, direction Direction, date time.Time) (string, error)
}

// TxRepositories bundles the repositories that participate in one
// settle or reverse transaction
type TxRepositories struct {
	SourceLines    SourceLineRepository
	Credits        PrepaymentCreditRepository
	Documents      SettlementDocumentRepository
	JournalEntries accounting.JournalEntryRepository
}

// UnitOfWork runs a function inside a single database transaction.
// Everything the function writes through the supplied repositories
// commits together or not at all.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
