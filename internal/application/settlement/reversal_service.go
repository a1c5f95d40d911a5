package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReversalService rolls back posted settlements and journal entries.
// Reversal is one-shot: a reversed target only answers reads.
type ReversalService struct {
	uow      settlement.UnitOfWork
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewReversalService creates a new ReversalService
func NewReversalService(uow settlement.UnitOfWork, eventBus shared.EventPublisher, logger *zap.Logger) *ReversalService {
	return &ReversalService{uow: uow, eventBus: eventBus, logger: logger}
}

// ReversalResult describes one committed reversal
type ReversalResult struct {
	Document      *settlement.SettlementDocument
	OriginalEntry *accounting.JournalEntry
	ReversalEntry *accounting.JournalEntry
}

// ReverseSettlement undoes a posted settlement: mirrors its journal
// entry, reopens the source lines, restores consumed credits and
// revokes any credit the settlement issued. All of it commits
// atomically; a second call fails with ALREADY_REVERSED.
func (s *ReversalService) ReverseSettlement(ctx context.Context, tenantID, documentID uuid.UUID, reversalDate time.Time, reason string) (*ReversalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reversal", "reverse_settlement")
	defer span.End()
	telemetry.SetAttributes(span, "document_id", documentID.String())

	if reversalDate.IsZero() {
		reversalDate = time.Now()
	}

	result := &ReversalResult{}
	err := s.uow.WithinTransaction(ctx, func(ctx context.Context, repos settlement.TxRepositories) error {
		doc, err := repos.Documents.FindByIDForUpdate(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		docVersion := doc.GetVersion()

		if err := doc.MarkReversed(reason); err != nil {
			return err
		}

		reversalEntry, originalEntry, err := s.reverseEntry(ctx, repos, tenantID, doc.JournalEntryID, reversalDate, reason)
		if err != nil {
			return err
		}

		if err := s.reopenLines(ctx, repos, doc); err != nil {
			return err
		}
		if err := s.restoreCredits(ctx, repos, doc); err != nil {
			return err
		}
		if doc.PrepaymentIssued.IsPositive() {
			if err := s.revokeIssuedCredit(ctx, repos, doc); err != nil {
				return err
			}
		}

		if err := repos.Documents.SaveWithLock(ctx, doc, docVersion); err != nil {
			return fmt.Errorf("save settlement document: %w", err)
		}

		result.Document = doc
		result.OriginalEntry = originalEntry
		result.ReversalEntry = reversalEntry
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, result.Document, result.OriginalEntry, result.ReversalEntry)
	s.logger.Info("settlement reversed",
		zap.String("document_number", result.Document.DocumentNumber),
		zap.String("reversal_entry", result.ReversalEntry.EntryNumber),
		zap.String("reason", reason),
	)
	return result, nil
}

// ReverseJournalEntry mirrors a standalone entry (an accrual or a
// prepayment issue) without touching settlement balances
func (s *ReversalService) ReverseJournalEntry(ctx context.Context, tenantID, entryID uuid.UUID, reversalDate time.Time, reason string) (*ReversalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reversal", "reverse_journal_entry")
	defer span.End()
	telemetry.SetAttributes(span, "entry_id", entryID.String())

	if reversalDate.IsZero() {
		reversalDate = time.Now()
	}

	result := &ReversalResult{}
	err := s.uow.WithinTransaction(ctx, func(ctx context.Context, repos settlement.TxRepositories) error {
		reversal, original, err := s.reverseEntry(ctx, repos, tenantID, &entryID, reversalDate, reason)
		if err != nil {
			return err
		}
		result.OriginalEntry = original
		result.ReversalEntry = reversal
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, result.OriginalEntry, result.ReversalEntry)
	return result, nil
}

// reverseEntry loads the original under lock, builds and saves the
// mirror and closes the original
func (s *ReversalService) reverseEntry(ctx context.Context, repos settlement.TxRepositories, tenantID uuid.UUID, entryID *uuid.UUID, reversalDate time.Time, reason string) (reversal, original *accounting.JournalEntry, err error) {
	if entryID == nil {
		return nil, nil, shared.NewDomainError("INVALID_STATE", "target has no journal entry to reverse")
	}

	original, err = repos.JournalEntries.FindByIDForUpdate(ctx, tenantID, *entryID)
	if err != nil {
		return nil, nil, err
	}
	originalVersion := original.GetVersion()

	entryNumber, err := repos.JournalEntries.NextEntryNumber(ctx, tenantID, accounting.FiscalPeriodOf(reversalDate))
	if err != nil {
		return nil, nil, fmt.Errorf("allocate entry number: %w", err)
	}

	description := fmt.Sprintf("reversal of %s", original.EntryNumber)
	if reason != "" {
		description = fmt.Sprintf("%s: %s", description, reason)
	}
	reversal, err = original.BuildReversal(entryNumber, reversalDate, description)
	if err != nil {
		return nil, nil, err
	}
	if err := original.MarkReversed(reversal.ID); err != nil {
		return nil, nil, err
	}

	if err := repos.JournalEntries.Save(ctx, reversal); err != nil {
		return nil, nil, fmt.Errorf("save reversal entry: %w", err)
	}
	if err := repos.JournalEntries.SaveWithLock(ctx, original, originalVersion); err != nil {
		return nil, nil, fmt.Errorf("save original entry: %w", err)
	}
	return reversal, original, nil
}

// reopenLines rolls the cumulative allocated totals back
func (s *ReversalService) reopenLines(ctx context.Context, repos settlement.TxRepositories, doc *settlement.SettlementDocument) error {
	if len(doc.Allocations) == 0 {
		return nil
	}
	refs := make([]settlement.SourceLineRef, 0, len(doc.Allocations))
	for _, alloc := range doc.Allocations {
		refs = append(refs, alloc.Ref)
	}

	found, err := repos.SourceLines.FindByRefsForUpdate(ctx, doc.TenantID, refs)
	if err != nil {
		return fmt.Errorf("lock source lines: %w", err)
	}
	byRef := make(map[settlement.SourceLineRef]*settlement.SourceLine, len(found))
	for _, line := range found {
		byRef[line.Ref] = line
	}

	for _, alloc := range doc.Allocations {
		line, ok := byRef[alloc.Ref]
		if !ok {
			return settlement.ErrLineNotFound(alloc.Ref)
		}
		version := line.GetVersion()
		if err := line.Release(alloc.Amount); err != nil {
			return err
		}
		if err := repos.SourceLines.SaveWithLock(ctx, line, version); err != nil {
			return fmt.Errorf("save source line %s: %w", alloc.Ref, err)
		}
	}
	return nil
}

// restoreCredits hands consumed amounts back to their credits
func (s *ReversalService) restoreCredits(ctx context.Context, repos settlement.TxRepositories, doc *settlement.SettlementDocument) error {
	for _, usage := range doc.Usages {
		credit, err := repos.Credits.FindByID(ctx, doc.TenantID, usage.CreditID)
		if err != nil {
			return err
		}
		version := credit.GetVersion()
		if err := credit.Release(usage.Amount); err != nil {
			return err
		}
		if err := repos.Credits.SaveWithLock(ctx, credit, version); err != nil {
			return fmt.Errorf("save credit %s: %w", usage.CreditID, err)
		}
	}
	return nil
}

// revokeIssuedCredit extinguishes the credit this settlement banked.
// A consumed credit blocks the reversal; the consuming settlements must
// be reversed first.
func (s *ReversalService) revokeIssuedCredit(ctx context.Context, repos settlement.TxRepositories, doc *settlement.SettlementDocument) error {
	credit, err := repos.Credits.FindBySourceDocumentCode(ctx, doc.TenantID, doc.DocumentNumber)
	if err != nil {
		return err
	}
	version := credit.GetVersion()
	if err := credit.Revoke(); err != nil {
		return err
	}
	if err := repos.Credits.SaveWithLock(ctx, credit, version); err != nil {
		return fmt.Errorf("save revoked credit: %w", err)
	}
	return nil
}

func (s *ReversalService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
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
