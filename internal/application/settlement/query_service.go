package settlement

import (
	"context"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// QueryService answers read-only settlement questions outside any
// transaction: outstanding balances, available credits, document
// lookups and FIFO previews.
type QueryService struct {
	lines     settlement.SourceLineRepository
	credits   settlement.PrepaymentCreditRepository
	documents settlement.SettlementDocumentRepository
	resolver  *settlement.OutstandingResolver
}

// NewQueryService creates a new QueryService
func NewQueryService(
	lines settlement.SourceLineRepository,
	credits settlement.PrepaymentCreditRepository,
	documents settlement.SettlementDocumentRepository,
) *QueryService {
	return &QueryService{
		lines:     lines,
		credits:   credits,
		documents: documents,
		resolver:  settlement.NewOutstandingResolver(lines),
	}
}

// Outstanding returns the unsettled amount of one source line
func (s *QueryService) Outstanding(ctx context.Context, tenantID uuid.UUID, ref settlement.SourceLineRef) (valueobject.Money, error) {
	return s.resolver.Outstanding(ctx, tenantID, ref)
}

// OpenLines lists a counterparty's lines that still carry outstanding
// balance, oldest first
func (s *QueryService) OpenLines(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.SourceLine, error) {
	return s.lines.FindOpenByCounterparty(ctx, tenantID, counterpartyID, direction)
}

// AvailableCredits lists a counterparty's credits with available balance
func (s *QueryService) AvailableCredits(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.PrepaymentCredit, error) {
	return s.credits.FindAvailableByCounterparty(ctx, tenantID, counterpartyID, direction)
}

// FIFOPreview is a suggested allocation of an amount over open lines
type FIFOPreview struct {
	Allocations []settlement.AllocationInput
	Remainder   valueobject.Money
}

// PreviewFIFO spreads an amount over the counterparty's open lines
// oldest-first without committing anything. The caller may submit the
// result verbatim or adjust it; the engine applies whatever order it
// finally receives.
func (s *QueryService) PreviewFIFO(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction, amount valueobject.Money) (*FIFOPreview, error) {
	open, err := s.lines.FindOpenByCounterparty(ctx, tenantID, counterpartyID, direction)
	if err != nil {
		return nil, err
	}
	allocations, remainder, err := settlement.BuildFIFOAllocations(open, amount)
	if err != nil {
		return nil, err
	}
	return &FIFOPreview{Allocations: allocations, Remainder: remainder}, nil
}

// GetDocument loads one settlement document by id
func (s *QueryService) GetDocument(ctx context.Context, tenantID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	return s.documents.FindByID(ctx, tenantID, id)
}

// GetDocumentByNumber loads one settlement document by its number
func (s *QueryService) GetDocumentByNumber(ctx context.Context, tenantID uuid.UUID, documentNumber string) (*settlement.SettlementDocument, error) {
	return s.documents.FindByDocumentNumber(ctx, tenantID, documentNumber)
}

// ListDocuments pages through settlement documents
func (s *QueryService) ListDocuments(ctx context.Context, tenantID uuid.UUID, filter settlement.SettlementDocumentFilter) (*shared.Paginated[*settlement.SettlementDocument], error) {
	return s.documents.List(ctx, tenantID, filter)
}
