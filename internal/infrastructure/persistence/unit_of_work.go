package persistence

import (
	"context"

	"github.com/erp/setoff/internal/domain/settlement"
	"gorm.io/gorm"
)

// GormUnitOfWork runs settlement use cases inside one database
// transaction. Every repository handed to the callback shares the
// transaction, so all writes commit together or roll back together.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// WithinTransaction executes fn inside a transaction and commits when
// fn returns nil. Any error rolls the transaction back.
func (u *GormUnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos settlement.TxRepositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := settlement.TxRepositories{
			SourceLines:    NewGormSourceLineRepository(tx),
			Credits:        NewGormPrepaymentCreditRepository(tx),
			Documents:      NewGormSettlementDocumentRepository(tx),
			JournalEntries: NewGormJournalEntryRepository(tx),
		}
		return fn(ctx, repos)
	})
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ settlement.UnitOfWork = (*GormUnitOfWork)(nil)
