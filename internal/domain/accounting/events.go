package accounting

import (
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the accounting domain
const (
	EventTypeJournalEntryPosted   = "accounting.journal_entry.posted"
	EventTypeJournalEntryReversed = "accounting.journal_entry.reversed"
)

// JournalEntryPostedEvent is raised when a balanced entry is posted
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryNumber  string    `json:"entry_number"`
	EntryType    EntryType `json:"entry_type"`
	FiscalPeriod string    `json:"fiscal_period"`
	TotalDebit   string    `json:"total_debit"`
}

// NewJournalEntryPostedEvent creates a journal entry posted event
func NewJournalEntryPostedEvent(entry *JournalEntry) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, "JournalEntry", entry.ID, entry.TenantID),
		EntryNumber:     entry.EntryNumber,
		EntryType:       entry.EntryType,
		FiscalPeriod:    entry.FiscalPeriod,
		TotalDebit:      entry.TotalDebit().Amount().String(),
	}
}

// JournalEntryReversedEvent is raised when an entry is reversed
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	EntryNumber  string    `json:"entry_number"`
	ReversalID   uuid.UUID `json:"reversal_id"`
	FiscalPeriod string    `json:"fiscal_period"`
}

// NewJournalEntryReversedEvent creates a journal entry reversed event
func NewJournalEntryReversedEvent(entry *JournalEntry, reversalID uuid.UUID) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryReversed, "JournalEntry", entry.ID, entry.TenantID),
		EntryNumber:     entry.EntryNumber,
		ReversalID:      reversalID,
		FiscalPeriod:    entry.FiscalPeriod,
	}
}
