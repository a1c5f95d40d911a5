package settlement

import (
	"context"
	"fmt"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SetoffService drives the settle pipeline: resolve and lock balances,
// run the allocation engine, derive the journal entry and commit it all
// in one transaction. Domain events publish only after the commit.
type SetoffService struct {
	uow      settlement.UnitOfWork
	engine   *settlement.Engine
	postings PostingProvider
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewSetoffService creates a new SetoffService
func NewSetoffService(
	uow settlement.UnitOfWork,
	postings PostingProvider,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *SetoffService {
	return &SetoffService{
		uow:      uow,
		engine:   settlement.NewEngine(),
		postings: postings,
		eventBus: eventBus,
		logger:   logger,
	}
}

// SettleResult is everything one settlement created
type SettleResult struct {
	Document     *settlement.SettlementDocument
	JournalEntry *accounting.JournalEntry
	IssuedCredit *settlement.PrepaymentCredit
}

// Settle validates and commits one settlement event. Either the
// document, its balance mutations and the journal entry all commit, or
// nothing does; a posting failure rolls the settlement back with it.
func (s *SetoffService) Settle(ctx context.Context, req settlement.SettleRequest) (*SettleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "setoff", "settle")
	defer span.End()
	telemetry.SetAttributes(span,
		"direction", string(req.Direction),
		"counterparty_id", req.CounterpartyID.String(),
		"total_amount", req.TotalAmount.Amount().String(),
	)

	result := &SettleResult{}
	err := s.uow.WithinTransaction(ctx, func(ctx context.Context, repos settlement.TxRepositories) error {
		if req.DocumentNumber == "" {
			number, err := repos.Documents.NextDocumentNumber(ctx, req.TenantID, req.Direction, req.SettlementDate)
			if err != nil {
				return fmt.Errorf("allocate document number: %w", err)
			}
			req.DocumentNumber = number
		}

		lines, err := s.lockLines(ctx, repos, req)
		if err != nil {
			return err
		}
		credits, err := s.lockCredits(ctx, repos, req)
		if err != nil {
			return err
		}

		lineVersions := snapshotVersions(lines)
		creditVersions := snapshotCreditVersions(credits)

		doc, err := s.engine.Settle(req, lines, credits)
		if err != nil {
			return err
		}

		if doc.PrepaymentIssued.IsPositive() {
			credit, err := settlement.NewPrepaymentCredit(req.TenantID, req.CounterpartyID, req.Direction, doc.DocumentNumber, doc.PrepaymentIssued, req.SettlementDate)
			if err != nil {
				return err
			}
			if err := repos.Credits.Save(ctx, credit); err != nil {
				return fmt.Errorf("save issued credit: %w", err)
			}
			result.IssuedCredit = credit
		}

		entry, err := s.postSettlement(ctx, repos, doc)
		if err != nil {
			return err
		}
		doc.AttachJournalEntry(entry.ID)

		for ref, line := range lines {
			if err := repos.SourceLines.SaveWithLock(ctx, line, lineVersions[ref]); err != nil {
				return fmt.Errorf("save source line %s: %w", ref, err)
			}
		}
		for id, credit := range credits {
			if err := repos.Credits.SaveWithLock(ctx, credit, creditVersions[id]); err != nil {
				return fmt.Errorf("save credit %s: %w", id, err)
			}
		}
		if err := repos.Documents.Save(ctx, doc); err != nil {
			return fmt.Errorf("save settlement document: %w", err)
		}
		if err := repos.JournalEntries.Save(ctx, entry); err != nil {
			return fmt.Errorf("save journal entry: %w", err)
		}

		result.Document = doc
		result.JournalEntry = entry
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, result.Document, result.JournalEntry, result.IssuedCredit)
	s.logger.Info("settlement posted",
		zap.String("document_number", result.Document.DocumentNumber),
		zap.String("direction", string(result.Document.Direction)),
		zap.String("total_amount", result.Document.TotalAmount.Amount().String()),
		zap.String("journal_entry", result.JournalEntry.EntryNumber),
	)
	return result, nil
}

// lockLines loads every referenced source line under a row lock
func (s *SetoffService) lockLines(ctx context.Context, repos settlement.TxRepositories, req settlement.SettleRequest) (map[settlement.SourceLineRef]*settlement.SourceLine, error) {
	refs := make([]settlement.SourceLineRef, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		refs = append(refs, alloc.Ref)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	found, err := repos.SourceLines.FindByRefsForUpdate(ctx, req.TenantID, refs)
	if err != nil {
		return nil, fmt.Errorf("lock source lines: %w", err)
	}
	byRef := make(map[settlement.SourceLineRef]*settlement.SourceLine, len(found))
	for _, line := range found {
		byRef[line.Ref] = line
	}
	for _, ref := range refs {
		if _, ok := byRef[ref]; !ok {
			return nil, settlement.ErrLineNotFound(ref)
		}
	}
	return byRef, nil
}

// lockCredits loads every referenced prepayment credit under a row lock
func (s *SetoffService) lockCredits(ctx context.Context, repos settlement.TxRepositories, req settlement.SettleRequest) (map[uuid.UUID]*settlement.PrepaymentCredit, error) {
	ids := make([]uuid.UUID, 0, len(req.Usages))
	for _, usage := range req.Usages {
		ids = append(ids, usage.CreditID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := repos.Credits.FindByIDsForUpdate(ctx, req.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock prepayment credits: %w", err)
	}
	byID := make(map[uuid.UUID]*settlement.PrepaymentCredit, len(found))
	for _, credit := range found {
		byID[credit.ID] = credit
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, settlement.ErrCreditNotFound(id)
		}
	}
	return byID, nil
}

// postSettlement derives and builds the ledger entry for a committed document
func (s *SetoffService) postSettlement(ctx context.Context, repos settlement.TxRepositories, doc *settlement.SettlementDocument) (*accounting.JournalEntry, error) {
	posting, err := s.postings.PostingService(ctx, doc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load posting service: %w", err)
	}

	entryType := accounting.EntryTypeReceivableSettlement
	if doc.Direction == settlement.DirectionPayable {
		entryType = accounting.EntryTypePayableSettlement
	}

	entryNumber, err := repos.JournalEntries.NextEntryNumber(ctx, doc.TenantID, accounting.FiscalPeriodOf(doc.SettlementDate))
	if err != nil {
		return nil, fmt.Errorf("allocate entry number: %w", err)
	}

	docID := doc.ID
	return posting.BuildEntry(doc.TenantID, entryNumber, entryType, doc.SettlementDate, &docID,
		fmt.Sprintf("settlement %s", doc.DocumentNumber),
		accounting.PostingAmounts{
			Instruments:    doc.InstrumentTotal,
			ConsumedCredit: doc.PrepaymentConsumed,
			IssuedCredit:   doc.PrepaymentIssued,
			Allowance:      doc.AllowanceAmount,
			LinesTotal:     doc.AllocationsTotal(),
		})
}

// publishEvents flushes aggregate events after a successful commit.
// Publish failures are logged, never surfaced: the settlement is
// already durable.
func (s *SetoffService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
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

// isNilAggregate guards against typed nil pointers inside the interface
func isNilAggregate(agg shared.AggregateRoot) bool {
	switch v := agg.(type) {
	case *settlement.SettlementDocument:
		return v == nil
	case *settlement.PrepaymentCredit:
		return v == nil
	case *settlement.SourceLine:
		return v == nil
	case *accounting.JournalEntry:
		return v == nil
	}
	return false
}

func snapshotVersions(lines map[settlement.SourceLineRef]*settlement.SourceLine) map[settlement.SourceLineRef]int {
	versions := make(map[settlement.SourceLineRef]int, len(lines))
	for ref, line := range lines {
		versions[ref] = line.GetVersion()
	}
	return versions
}

func snapshotCreditVersions(credits map[uuid.UUID]*settlement.PrepaymentCredit) map[uuid.UUID]int {
	versions := make(map[uuid.UUID]int, len(credits))
	for id, credit := range credits {
		versions[id] = credit.GetVersion()
	}
	return versions
}
