package models

import (
	"time"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// money rebuilds a Money value from its stored amount and currency.
// Rows written before currency was recorded default to CNY.
func money(amount decimal.Decimal, currency string) valueobject.Money {
	if currency == "" {
		currency = string(valueobject.DefaultCurrency)
	}
	m, _ := valueobject.NewMoney(amount, valueobject.Currency(currency))
	return m
}

func tenantRoot(m TenantAggregateModel) shared.TenantAggregateRoot {
	var root shared.TenantAggregateRoot
	m.PopulateTenantAggregateRoot(&root)
	return root
}

// SourceLineModel is the persistence model for the SourceLine aggregate root.
type SourceLineModel struct {
	TenantAggregateModel
	SourceKind      settlement.SourceKind `gorm:"type:varchar(30);not null;uniqueIndex:idx_source_line_ref,priority:2"`
	LineID          uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_source_line_ref,priority:3"`
	CounterpartyID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	DocumentNumber  string                `gorm:"type:varchar(50);not null"`
	BusinessDate    time.Time             `gorm:"not null;index"`
	Currency        string                `gorm:"type:varchar(3);not null;default:'CNY'"`
	OriginalAmount  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	AllocatedAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Settled         bool                  `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (SourceLineModel) TableName() string {
	return "source_lines"
}

// ToDomain converts the persistence model to a domain SourceLine.
func (m *SourceLineModel) ToDomain() *settlement.SourceLine {
	return &settlement.SourceLine{
		TenantAggregateRoot: tenantRoot(m.TenantAggregateModel),
		Ref:                 settlement.SourceLineRef{Kind: m.SourceKind, LineID: m.LineID},
		CounterpartyID:      m.CounterpartyID,
		DocumentNumber:      m.DocumentNumber,
		BusinessDate:        m.BusinessDate,
		OriginalAmount:      money(m.OriginalAmount, m.Currency),
		AllocatedAmount:     money(m.AllocatedAmount, m.Currency),
		Settled:             m.Settled,
	}
}

// FromDomain populates the persistence model from a domain SourceLine.
func (m *SourceLineModel) FromDomain(line *settlement.SourceLine) {
	m.FromDomainTenantAggregateRoot(line.TenantAggregateRoot)
	m.SourceKind = line.Ref.Kind
	m.LineID = line.Ref.LineID
	m.CounterpartyID = line.CounterpartyID
	m.DocumentNumber = line.DocumentNumber
	m.BusinessDate = line.BusinessDate
	m.Currency = string(line.OriginalAmount.Currency())
	m.OriginalAmount = line.OriginalAmount.Amount()
	m.AllocatedAmount = line.AllocatedAmount.Amount()
	m.Settled = line.Settled
}

// SourceLineModelFromDomain creates a new persistence model from a domain SourceLine.
func SourceLineModelFromDomain(line *settlement.SourceLine) *SourceLineModel {
	m := &SourceLineModel{}
	m.FromDomain(line)
	return m
}

// PrepaymentCreditModel is the persistence model for the PrepaymentCredit aggregate root.
type PrepaymentCreditModel struct {
	TenantAggregateModel
	CounterpartyID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	Direction          settlement.Direction `gorm:"type:varchar(20);not null"`
	SourceDocumentCode string               `gorm:"type:varchar(50);index"`
	Currency           string               `gorm:"type:varchar(3);not null;default:'CNY'"`
	Amount             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	UsedAmount         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	IssuedAt           time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PrepaymentCreditModel) TableName() string {
	return "prepayment_credits"
}

// ToDomain converts the persistence model to a domain PrepaymentCredit.
func (m *PrepaymentCreditModel) ToDomain() *settlement.PrepaymentCredit {
	return &settlement.PrepaymentCredit{
		TenantAggregateRoot: tenantRoot(m.TenantAggregateModel),
		CounterpartyID:      m.CounterpartyID,
		Direction:           m.Direction,
		SourceDocumentCode:  m.SourceDocumentCode,
		Amount:              money(m.Amount, m.Currency),
		UsedAmount:          money(m.UsedAmount, m.Currency),
		IssuedAt:            m.IssuedAt,
	}
}

// FromDomain populates the persistence model from a domain PrepaymentCredit.
func (m *PrepaymentCreditModel) FromDomain(credit *settlement.PrepaymentCredit) {
	m.FromDomainTenantAggregateRoot(credit.TenantAggregateRoot)
	m.CounterpartyID = credit.CounterpartyID
	m.Direction = credit.Direction
	m.SourceDocumentCode = credit.SourceDocumentCode
	m.Currency = string(credit.Amount.Currency())
	m.Amount = credit.Amount.Amount()
	m.UsedAmount = credit.UsedAmount.Amount()
	m.IssuedAt = credit.IssuedAt
}

// PrepaymentCreditModelFromDomain creates a new persistence model from a domain PrepaymentCredit.
func PrepaymentCreditModelFromDomain(credit *settlement.PrepaymentCredit) *PrepaymentCreditModel {
	m := &PrepaymentCreditModel{}
	m.FromDomain(credit)
	return m
}

// SettlementAllocationModel is one settled slice of a source line,
// owned by its settlement document.
type SettlementAllocationModel struct {
	ID              uuid.UUID             `gorm:"type:uuid;primary_key"`
	DocumentID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	SourceKind      settlement.SourceKind `gorm:"type:varchar(30);not null"`
	LineID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency        string                `gorm:"type:varchar(3);not null;default:'CNY'"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	CumulativeAfter decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	FullySettled    bool                  `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (SettlementAllocationModel) TableName() string {
	return "settlement_allocations"
}

// PrepaymentUsageModel records credit consumed by a settlement document.
type PrepaymentUsageModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	CreditID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Currency   string          `gorm:"type:varchar(3);not null;default:'CNY'"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PrepaymentUsageModel) TableName() string {
	return "prepayment_usages"
}

// InstrumentLineModel is one physical payment instrument backing a settlement.
type InstrumentLineModel struct {
	ID            uuid.UUID                `gorm:"type:uuid;primary_key"`
	DocumentID    uuid.UUID                `gorm:"type:uuid;not null;index"`
	Method        settlement.PaymentMethod `gorm:"type:varchar(20);not null"`
	BankAccount   string                   `gorm:"type:varchar(50)"`
	ChequeNumber  string                   `gorm:"type:varchar(50)"`
	ChequeDueDate *time.Time
	Currency      string          `gorm:"type:varchar(3);not null;default:'CNY'"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InstrumentLineModel) TableName() string {
	return "instrument_lines"
}

// SettlementDocumentModel is the persistence model for the SettlementDocument aggregate root.
type SettlementDocumentModel struct {
	TenantAggregateModel
	DocumentNumber     string                      `gorm:"type:varchar(50);not null;uniqueIndex:idx_settlement_tenant_number,priority:2"`
	Direction          settlement.Direction        `gorm:"type:varchar(20);not null;index"`
	CounterpartyID     uuid.UUID                   `gorm:"type:uuid;not null;index"`
	SettlementDate     time.Time                   `gorm:"not null;index"`
	Currency           string                      `gorm:"type:varchar(3);not null;default:'CNY'"`
	TotalAmount        decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	InstrumentTotal    decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	AllowanceAmount    decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	PrepaymentIssued   decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	PrepaymentConsumed decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Status             settlement.SettlementStatus `gorm:"type:varchar(20);not null;default:'POSTED';index"`
	Remark             string                      `gorm:"type:text"`
	JournalEntryID     *uuid.UUID                  `gorm:"type:uuid;index"`
	Allocations        []SettlementAllocationModel `gorm:"foreignKey:DocumentID;references:ID"`
	Usages             []PrepaymentUsageModel      `gorm:"foreignKey:DocumentID;references:ID"`
	Instruments        []InstrumentLineModel       `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (SettlementDocumentModel) TableName() string {
	return "settlement_documents"
}

// ToDomain converts the persistence model to a domain SettlementDocument.
func (m *SettlementDocumentModel) ToDomain() *settlement.SettlementDocument {
	doc := &settlement.SettlementDocument{
		TenantAggregateRoot: tenantRoot(m.TenantAggregateModel),
		DocumentNumber:      m.DocumentNumber,
		Direction:           m.Direction,
		CounterpartyID:      m.CounterpartyID,
		SettlementDate:      m.SettlementDate,
		TotalAmount:         money(m.TotalAmount, m.Currency),
		InstrumentTotal:     money(m.InstrumentTotal, m.Currency),
		AllowanceAmount:     money(m.AllowanceAmount, m.Currency),
		PrepaymentIssued:    money(m.PrepaymentIssued, m.Currency),
		PrepaymentConsumed:  money(m.PrepaymentConsumed, m.Currency),
		Status:              m.Status,
		Remark:              m.Remark,
		JournalEntryID:      m.JournalEntryID,
	}

	doc.Allocations = make([]settlement.LineAllocation, len(m.Allocations))
	for i, a := range m.Allocations {
		doc.Allocations[i] = settlement.LineAllocation{
			ID:              a.ID,
			Ref:             settlement.SourceLineRef{Kind: a.SourceKind, LineID: a.LineID},
			Amount:          money(a.Amount, a.Currency),
			CumulativeAfter: money(a.CumulativeAfter, a.Currency),
			FullySettled:    a.FullySettled,
		}
	}
	doc.Usages = make([]settlement.PrepaymentUsage, len(m.Usages))
	for i, u := range m.Usages {
		doc.Usages[i] = settlement.PrepaymentUsage{
			ID:       u.ID,
			CreditID: u.CreditID,
			Amount:   money(u.Amount, u.Currency),
		}
	}
	doc.Instruments = make([]settlement.InstrumentLine, len(m.Instruments))
	for i, ins := range m.Instruments {
		doc.Instruments[i] = settlement.InstrumentLine{
			ID:            ins.ID,
			Method:        ins.Method,
			BankAccount:   ins.BankAccount,
			ChequeNumber:  ins.ChequeNumber,
			ChequeDueDate: ins.ChequeDueDate,
			Amount:        money(ins.Amount, ins.Currency),
		}
	}
	return doc
}

// FromDomain populates the persistence model from a domain SettlementDocument.
func (m *SettlementDocumentModel) FromDomain(doc *settlement.SettlementDocument) {
	m.FromDomainTenantAggregateRoot(doc.TenantAggregateRoot)
	m.DocumentNumber = doc.DocumentNumber
	m.Direction = doc.Direction
	m.CounterpartyID = doc.CounterpartyID
	m.SettlementDate = doc.SettlementDate
	m.Currency = string(doc.TotalAmount.Currency())
	m.TotalAmount = doc.TotalAmount.Amount()
	m.InstrumentTotal = doc.InstrumentTotal.Amount()
	m.AllowanceAmount = doc.AllowanceAmount.Amount()
	m.PrepaymentIssued = doc.PrepaymentIssued.Amount()
	m.PrepaymentConsumed = doc.PrepaymentConsumed.Amount()
	m.Status = doc.Status
	m.Remark = doc.Remark
	m.JournalEntryID = doc.JournalEntryID

	m.Allocations = make([]SettlementAllocationModel, len(doc.Allocations))
	for i, a := range doc.Allocations {
		m.Allocations[i] = SettlementAllocationModel{
			ID:              a.ID,
			DocumentID:      doc.ID,
			SourceKind:      a.Ref.Kind,
			LineID:          a.Ref.LineID,
			Currency:        string(a.Amount.Currency()),
			Amount:          a.Amount.Amount(),
			CumulativeAfter: a.CumulativeAfter.Amount(),
			FullySettled:    a.FullySettled,
		}
	}
	m.Usages = make([]PrepaymentUsageModel, len(doc.Usages))
	for i, u := range doc.Usages {
		m.Usages[i] = PrepaymentUsageModel{
			ID:         u.ID,
			DocumentID: doc.ID,
			CreditID:   u.CreditID,
			Currency:   string(u.Amount.Currency()),
			Amount:     u.Amount.Amount(),
		}
	}
	m.Instruments = make([]InstrumentLineModel, len(doc.Instruments))
	for i, ins := range doc.Instruments {
		m.Instruments[i] = InstrumentLineModel{
			ID:            ins.ID,
			DocumentID:    doc.ID,
			Method:        ins.Method,
			BankAccount:   ins.BankAccount,
			ChequeNumber:  ins.ChequeNumber,
			ChequeDueDate: ins.ChequeDueDate,
			Currency:      string(ins.Amount.Currency()),
			Amount:        ins.Amount.Amount(),
		}
	}
}

// SettlementDocumentModelFromDomain creates a new persistence model from a domain SettlementDocument.
func SettlementDocumentModelFromDomain(doc *settlement.SettlementDocument) *SettlementDocumentModel {
	m := &SettlementDocumentModel{}
	m.FromDomain(doc)
	return m
}
