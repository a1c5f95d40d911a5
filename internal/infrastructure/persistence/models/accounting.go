package models

import (
	"time"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountItemModel is the persistence model for a chart-of-accounts node.
type AccountItemModel struct {
	TenantAggregateModel
	Code       string                      `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_tenant_code,priority:2"`
	Name       string                      `gorm:"type:varchar(200);not null"`
	Kind       accounting.AccountKind      `gorm:"type:varchar(20);not null"`
	Direction  accounting.AccountDirection `gorm:"type:varchar(10);not null"`
	Status     accounting.AccountStatus    `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	ParentCode string                      `gorm:"type:varchar(20);index"`
	Level      int                         `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (AccountItemModel) TableName() string {
	return "account_items"
}

// ToDomain converts the persistence model to a domain AccountItem.
func (m *AccountItemModel) ToDomain() *accounting.AccountItem {
	return &accounting.AccountItem{
		TenantAggregateRoot: tenantRoot(m.TenantAggregateModel),
		Code:                m.Code,
		Name:                m.Name,
		Kind:                m.Kind,
		Direction:           m.Direction,
		Status:              m.Status,
		ParentCode:          m.ParentCode,
		Level:               m.Level,
	}
}

// FromDomain populates the persistence model from a domain AccountItem.
func (m *AccountItemModel) FromDomain(account *accounting.AccountItem) {
	m.FromDomainTenantAggregateRoot(account.TenantAggregateRoot)
	m.Code = account.Code
	m.Name = account.Name
	m.Kind = account.Kind
	m.Direction = account.Direction
	m.Status = account.Status
	m.ParentCode = account.ParentCode
	m.Level = account.Level
}

// AccountItemModelFromDomain creates a new persistence model from a domain AccountItem.
func AccountItemModelFromDomain(account *accounting.AccountItem) *AccountItemModel {
	m := &AccountItemModel{}
	m.FromDomain(account)
	return m
}

// JournalLineModel is one debit or credit within a journal entry.
type JournalLineModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	EntryID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	AccountID   uuid.UUID              `gorm:"type:uuid;not null;index"`
	AccountCode string                 `gorm:"type:varchar(20);not null;index"`
	Side        accounting.JournalSide `gorm:"type:varchar(10);not null"`
	Currency    string                 `gorm:"type:varchar(3);not null;default:'CNY'"`
	Amount      decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Memo        string                 `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}

// JournalEntryModel is the persistence model for the JournalEntry aggregate root.
type JournalEntryModel struct {
	TenantAggregateModel
	EntryNumber      string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_entry_tenant_number,priority:2"`
	EntryType        accounting.EntryType   `gorm:"type:varchar(30);not null;index"`
	Status           accounting.EntryStatus `gorm:"type:varchar(20);not null;default:'POSTED';index"`
	BusinessDate     time.Time              `gorm:"not null;index"`
	FiscalPeriod     string                 `gorm:"type:varchar(7);not null;index"`
	SourceDocumentID *uuid.UUID             `gorm:"type:uuid;index"`
	Description      string                 `gorm:"type:varchar(500)"`
	ReversalOfID     *uuid.UUID             `gorm:"type:uuid;index"`
	ReversedByID     *uuid.UUID             `gorm:"type:uuid"`
	Lines            []JournalLineModel     `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ToDomain converts the persistence model to a domain JournalEntry.
func (m *JournalEntryModel) ToDomain() *accounting.JournalEntry {
	entry := &accounting.JournalEntry{
		TenantAggregateRoot: tenantRoot(m.TenantAggregateModel),
		EntryNumber:         m.EntryNumber,
		EntryType:           m.EntryType,
		Status:              m.Status,
		BusinessDate:        m.BusinessDate,
		FiscalPeriod:        m.FiscalPeriod,
		SourceDocumentID:    m.SourceDocumentID,
		Description:         m.Description,
		ReversalOfID:        m.ReversalOfID,
		ReversedByID:        m.ReversedByID,
	}
	entry.Lines = make([]accounting.JournalLine, len(m.Lines))
	for i, line := range m.Lines {
		entry.Lines[i] = accounting.JournalLine{
			ID:          line.ID,
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Side:        line.Side,
			Amount:      money(line.Amount, line.Currency),
			Memo:        line.Memo,
		}
	}
	return entry
}

// FromDomain populates the persistence model from a domain JournalEntry.
func (m *JournalEntryModel) FromDomain(entry *accounting.JournalEntry) {
	m.FromDomainTenantAggregateRoot(entry.TenantAggregateRoot)
	m.EntryNumber = entry.EntryNumber
	m.EntryType = entry.EntryType
	m.Status = entry.Status
	m.BusinessDate = entry.BusinessDate
	m.FiscalPeriod = entry.FiscalPeriod
	m.SourceDocumentID = entry.SourceDocumentID
	m.Description = entry.Description
	m.ReversalOfID = entry.ReversalOfID
	m.ReversedByID = entry.ReversedByID

	m.Lines = make([]JournalLineModel, len(entry.Lines))
	for i, line := range entry.Lines {
		m.Lines[i] = JournalLineModel{
			ID:          line.ID,
			EntryID:     entry.ID,
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Side:        line.Side,
			Currency:    string(line.Amount.Currency()),
			Amount:      line.Amount.Amount(),
			Memo:        line.Memo,
		}
	}
}

// JournalEntryModelFromDomain creates a new persistence model from a domain JournalEntry.
func JournalEntryModelFromDomain(entry *accounting.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(entry)
	return m
}
