package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccrualService registers source document lines for settlement
// tracking and posts the accrual entry that puts them on the books:
// a shipped sales line accrues receivable against revenue, a received
// purchase line accrues inventory against payable, returns mirror both.
type AccrualService struct {
	uow      settlement.UnitOfWork
	postings PostingProvider
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewAccrualService creates a new AccrualService
func NewAccrualService(uow settlement.UnitOfWork, postings PostingProvider, eventBus shared.EventPublisher, logger *zap.Logger) *AccrualService {
	return &AccrualService{uow: uow, postings: postings, eventBus: eventBus, logger: logger}
}

// AccrualRequest describes one source line entering the settlement scope
type AccrualRequest struct {
	TenantID       uuid.UUID
	Kind           settlement.SourceKind
	LineID         uuid.UUID
	CounterpartyID uuid.UUID
	DocumentNumber string
	BusinessDate   time.Time
	Amount         valueobject.Money
}

// AccrualResult is the registered line and its accrual entry
type AccrualResult struct {
	Line         *settlement.SourceLine
	JournalEntry *accounting.JournalEntry
}

// accrualEntryTypes maps a source kind to its accrual posting
var accrualEntryTypes = map[settlement.SourceKind]accounting.EntryType{
	settlement.SourceKindSalesOrderLine:        accounting.EntryTypeSalesAccrual,
	settlement.SourceKindSalesReturnLine:       accounting.EntryTypeSalesReturnAccrual,
	settlement.SourceKindPurchaseReceivingLine: accounting.EntryTypePurchaseAccrual,
	settlement.SourceKindPurchaseReturnLine:    accounting.EntryTypePurchaseReturnAccrual,
}

// Record registers the line and posts its accrual in one transaction
func (s *AccrualService) Record(ctx context.Context, req AccrualRequest) (*AccrualResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "accrual", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		"source_kind", string(req.Kind),
		"document_number", req.DocumentNumber,
	)

	entryType, ok := accrualEntryTypes[req.Kind]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid source kind: %s", req.Kind))
	}

	ref, err := settlement.NewSourceLineRef(req.Kind, req.LineID)
	if err != nil {
		return nil, err
	}

	result := &AccrualResult{}
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos settlement.TxRepositories) error {
		line, err := settlement.NewSourceLine(req.TenantID, ref, req.CounterpartyID, req.DocumentNumber, req.BusinessDate, req.Amount)
		if err != nil {
			return err
		}

		posting, err := s.postings.PostingService(ctx, req.TenantID)
		if err != nil {
			return fmt.Errorf("load posting service: %w", err)
		}
		entryNumber, err := repos.JournalEntries.NextEntryNumber(ctx, req.TenantID, accounting.FiscalPeriodOf(req.BusinessDate))
		if err != nil {
			return fmt.Errorf("allocate entry number: %w", err)
		}

		lineID := line.ID
		entry, err := posting.BuildEntry(req.TenantID, entryNumber, entryType, req.BusinessDate, &lineID,
			fmt.Sprintf("accrual for %s line of %s", req.Kind, req.DocumentNumber),
			accounting.PostingAmounts{Gross: req.Amount})
		if err != nil {
			return err
		}

		if err := repos.SourceLines.Save(ctx, line); err != nil {
			return fmt.Errorf("save source line: %w", err)
		}
		if err := repos.JournalEntries.Save(ctx, entry); err != nil {
			return fmt.Errorf("save journal entry: %w", err)
		}

		result.Line = line
		result.JournalEntry = entry
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if events := result.JournalEntry.GetDomainEvents(); len(events) > 0 {
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Error("failed to publish domain events", zap.Error(err))
		}
		result.JournalEntry.ClearDomainEvents()
	}

	s.logger.Info("accrual recorded",
		zap.String("source_line", ref.String()),
		zap.String("journal_entry", result.JournalEntry.EntryNumber),
	)
	return result, nil
}
