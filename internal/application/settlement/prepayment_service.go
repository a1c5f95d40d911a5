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

// PrepaymentService banks standalone prepayments and advances: money
// received or paid before any document line exists to settle it
// against. Each issue posts its own cash-versus-liability entry.
type PrepaymentService struct {
	uow      settlement.UnitOfWork
	postings PostingProvider
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewPrepaymentService creates a new PrepaymentService
func NewPrepaymentService(uow settlement.UnitOfWork, postings PostingProvider, eventBus shared.EventPublisher, logger *zap.Logger) *PrepaymentService {
	return &PrepaymentService{uow: uow, postings: postings, eventBus: eventBus, logger: logger}
}

// IssueRequest describes one standalone prepayment or advance
type IssueRequest struct {
	TenantID       uuid.UUID
	CounterpartyID uuid.UUID
	Direction      settlement.Direction
	Amount         valueobject.Money
	IssueDate      time.Time
	Reference      string // external document code, unique when set
}

// IssueResult is the banked credit and its ledger entry
type IssueResult struct {
	Credit       *settlement.PrepaymentCredit
	JournalEntry *accounting.JournalEntry
}

// Issue banks a new credit and posts it
func (s *PrepaymentService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "prepayment", "issue")
	defer span.End()
	telemetry.SetAttributes(span,
		"counterparty_id", req.CounterpartyID.String(),
		"direction", string(req.Direction),
	)

	if req.IssueDate.IsZero() {
		req.IssueDate = time.Now()
	}

	result := &IssueResult{}
	err := s.uow.WithinTransaction(ctx, func(ctx context.Context, repos settlement.TxRepositories) error {
		credit, err := settlement.NewPrepaymentCredit(req.TenantID, req.CounterpartyID, req.Direction, req.Reference, req.Amount, req.IssueDate)
		if err != nil {
			return err
		}

		posting, err := s.postings.PostingService(ctx, req.TenantID)
		if err != nil {
			return fmt.Errorf("load posting service: %w", err)
		}

		entryType := accounting.EntryTypePrepaymentIssue
		if req.Direction == settlement.DirectionPayable {
			entryType = accounting.EntryTypeAdvanceIssue
		}
		entryNumber, err := repos.JournalEntries.NextEntryNumber(ctx, req.TenantID, accounting.FiscalPeriodOf(req.IssueDate))
		if err != nil {
			return fmt.Errorf("allocate entry number: %w", err)
		}

		creditID := credit.ID
		entry, err := posting.BuildEntry(req.TenantID, entryNumber, entryType, req.IssueDate, &creditID,
			fmt.Sprintf("prepayment issued for counterparty %s", req.CounterpartyID),
			accounting.PostingAmounts{IssuedCredit: req.Amount})
		if err != nil {
			return err
		}

		if err := repos.Credits.Save(ctx, credit); err != nil {
			return fmt.Errorf("save credit: %w", err)
		}
		if err := repos.JournalEntries.Save(ctx, entry); err != nil {
			return fmt.Errorf("save journal entry: %w", err)
		}

		result.Credit = credit
		result.JournalEntry = entry
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, result.Credit, result.JournalEntry)
	s.logger.Info("prepayment issued",
		zap.String("credit_id", result.Credit.ID.String()),
		zap.String("amount", result.Credit.Amount.Amount().String()),
		zap.String("direction", string(result.Credit.Direction)),
	)
	return result, nil
}

func (s *PrepaymentService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil || isNilAggregate(agg) {
			continue
		}
		events := agg.GetDomainEvents()
		if len(events) == 0 {
			continue
		}
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Error("failed to publish domain events", zap.Error(err))
		}
		agg.ClearDomainEvents()
	}
}
