package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJournalEntryRepository implements JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

// Save creates or updates a journal entry with its lines
func (r *GormJournalEntryRepository) Save(ctx context.Context, entry *accounting.JournalEntry) error {
	model := models.JournalEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(model).Error
}

// SaveWithLock saves the entry head with an optimistic version check.
// Lines never change after posting, so the lock only guards the head.
func (r *GormJournalEntryRepository) SaveWithLock(ctx context.Context, entry *accounting.JournalEntry, expectedVersion int) error {
	model := models.JournalEntryModelFromDomain(entry)
	model.Version = expectedVersion + 1

	// Select("*") so zero-valued columns update as well.
	result := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Select("*").
		Omit(clause.Associations).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	entry.IncrementVersion()
	return nil
}

// FindByID finds a journal entry by ID
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*accounting.JournalEntry, error) {
	return r.findByID(ctx, r.db, tenantID, id)
}

// FindByIDForUpdate loads the entry under a row lock for reversal
func (r *GormJournalEntryRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*accounting.JournalEntry, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findByID(ctx, locked, tenantID, id)
}

func (r *GormJournalEntryRepository) findByID(ctx context.Context, db *gorm.DB, tenantID, id uuid.UUID) (*accounting.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntryNumber finds a journal entry by its number
func (r *GormJournalEntryRepository) FindByEntryNumber(ctx context.Context, tenantID uuid.UUID, entryNumber string) (*accounting.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND entry_number = ?", tenantID, entryNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySourceDocument lists all entries a source document produced,
// reversals included
func (r *GormJournalEntryRepository) FindBySourceDocument(ctx context.Context, tenantID, sourceDocumentID uuid.UUID) ([]*accounting.JournalEntry, error) {
	var entryModels []models.JournalEntryModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND source_document_id = ?", tenantID, sourceDocumentID).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}

	entries := make([]*accounting.JournalEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries, nil
}

// List pages through journal entries
func (r *GormJournalEntryRepository) List(ctx context.Context, tenantID uuid.UUID, filter accounting.JournalEntryFilter) (*shared.Paginated[*accounting.JournalEntry], error) {
	query := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Where("tenant_id = ?", tenantID)
	query = applyEntryFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var entryModels []models.JournalEntryModel
	if err := query.
		Preload("Lines").
		Order("business_date DESC, entry_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entryModels).Error; err != nil {
		return nil, err
	}

	entries := make([]*accounting.JournalEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	paginated := shared.NewPaginated(entries, total, page, pageSize)
	return &paginated, nil
}

func applyEntryFilter(query *gorm.DB, filter accounting.JournalEntryFilter) *gorm.DB {
	if filter.EntryType != nil {
		query = query.Where("entry_type = ?", *filter.EntryType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FiscalPeriod != "" {
		query = query.Where("fiscal_period = ?", filter.FiscalPeriod)
	}
	if filter.SourceDocumentID != nil {
		query = query.Where("source_document_id = ?", *filter.SourceDocumentID)
	}
	if filter.AccountCode != "" {
		query = query.Where(
			"id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).
				Model(&models.JournalLineModel{}).
				Select("entry_id").
				Where("account_code = ?", filter.AccountCode),
		)
	}
	return query
}

// trialBalanceRow is the raw aggregation row scanned from the database
type trialBalanceRow struct {
	AccountCode string
	AccountName string
	Direction   accounting.AccountDirection
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// TrialBalance aggregates posted lines per account for one fiscal period
func (r *GormJournalEntryRepository) TrialBalance(ctx context.Context, tenantID uuid.UUID, fiscalPeriod string) ([]accounting.TrialBalanceRow, error) {
	var rows []trialBalanceRow
	if err := r.db.WithContext(ctx).
		Table("journal_lines").
		Select(`journal_lines.account_code,
			COALESCE(account_items.name, '') AS account_name,
			COALESCE(account_items.direction, 'DEBIT') AS direction,
			COALESCE(SUM(CASE WHEN journal_lines.side = 'DEBIT' THEN journal_lines.amount ELSE 0 END), 0) AS total_debit,
			COALESCE(SUM(CASE WHEN journal_lines.side = 'CREDIT' THEN journal_lines.amount ELSE 0 END), 0) AS total_credit`).
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.entry_id").
		Joins("LEFT JOIN account_items ON account_items.tenant_id = journal_entries.tenant_id AND account_items.code = journal_lines.account_code").
		Where("journal_entries.tenant_id = ? AND journal_entries.fiscal_period = ?", tenantID, fiscalPeriod).
		Group("journal_lines.account_code, account_items.name, account_items.direction").
		Order("journal_lines.account_code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]accounting.TrialBalanceRow, len(rows))
	for i, row := range rows {
		result[i] = accounting.TrialBalanceRow{
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Direction:   row.Direction,
			TotalDebit:  valueobject.NewMoneyCNY(row.TotalDebit),
			TotalCredit: valueobject.NewMoneyCNY(row.TotalCredit),
		}
	}
	return result, nil
}

// NextEntryNumber allocates a sequential entry number for the period.
// Format: JV-YYYYMM-NNNNN.
func (r *GormJournalEntryRepository) NextEntryNumber(ctx context.Context, tenantID uuid.UUID, fiscalPeriod string) (string, error) {
	periodPrefix := fmt.Sprintf("JV-%s-", strings.ReplaceAll(fiscalPeriod, "-", ""))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Select("entry_number").
		Where("tenant_id = ? AND entry_number LIKE ?", tenantID, periodPrefix+"%").
		Order("entry_number DESC").
		Limit(1).
		Pluck("entry_number", &maxNumber).Error; err != nil {
		return "", err
	}

	nextNum := 1
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			var seq int
			if _, err := fmt.Sscanf(parts[2], "%d", &seq); err == nil {
				nextNum = seq + 1
			}
		}
	}

	return fmt.Sprintf("%s%05d", periodPrefix, nextNum), nil
}

// Ensure GormJournalEntryRepository implements JournalEntryRepository
var _ accounting.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
