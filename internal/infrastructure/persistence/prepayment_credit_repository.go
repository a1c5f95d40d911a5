package persistence

import (
	"context"
	"errors"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPrepaymentCreditRepository implements PrepaymentCreditRepository using GORM
type GormPrepaymentCreditRepository struct {
	db *gorm.DB
}

// NewGormPrepaymentCreditRepository creates a new GormPrepaymentCreditRepository
func NewGormPrepaymentCreditRepository(db *gorm.DB) *GormPrepaymentCreditRepository {
	return &GormPrepaymentCreditRepository{db: db}
}

// Save creates or updates a prepayment credit
func (r *GormPrepaymentCreditRepository) Save(ctx context.Context, credit *settlement.PrepaymentCredit) error {
	model := models.PrepaymentCreditModelFromDomain(credit)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with an optimistic version check
func (r *GormPrepaymentCreditRepository) SaveWithLock(ctx context.Context, credit *settlement.PrepaymentCredit, expectedVersion int) error {
	model := models.PrepaymentCreditModelFromDomain(credit)
	model.Version = expectedVersion + 1

	// Select("*") writes zero-valued columns too; revocation zeroes
	// amount and a release can bring used_amount back to zero.
	result := r.db.WithContext(ctx).
		Model(&models.PrepaymentCreditModel{}).
		Select("*").
		Where("id = ? AND version = ?", credit.ID, expectedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	credit.IncrementVersion()
	return nil
}

// FindByID finds a prepayment credit by ID
func (r *GormPrepaymentCreditRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*settlement.PrepaymentCredit, error) {
	var model models.PrepaymentCreditModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs finds credits for a batch of IDs. Missing IDs are skipped.
func (r *GormPrepaymentCreditRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.PrepaymentCredit, error) {
	return r.findByIDs(ctx, r.db, tenantID, ids)
}

// FindByIDsForUpdate loads credits under row locks for the settle transaction
func (r *GormPrepaymentCreditRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.PrepaymentCredit, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findByIDs(ctx, locked, tenantID, ids)
}

func (r *GormPrepaymentCreditRepository) findByIDs(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.PrepaymentCredit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var creditModels []models.PrepaymentCreditModel
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id").
		Find(&creditModels).Error; err != nil {
		return nil, err
	}

	credits := make([]*settlement.PrepaymentCredit, len(creditModels))
	for i := range creditModels {
		credits[i] = creditModels[i].ToDomain()
	}
	return credits, nil
}

// FindBySourceDocumentCode locates the credit a settlement document issued
func (r *GormPrepaymentCreditRepository) FindBySourceDocumentCode(ctx context.Context, tenantID uuid.UUID, sourceDocumentCode string) (*settlement.PrepaymentCredit, error) {
	var model models.PrepaymentCreditModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_document_code = ?", tenantID, sourceDocumentCode).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAvailableByCounterparty lists credits with available balance,
// oldest issue first
func (r *GormPrepaymentCreditRepository) FindAvailableByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.PrepaymentCredit, error) {
	var creditModels []models.PrepaymentCreditModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND counterparty_id = ? AND direction = ? AND amount > used_amount",
			tenantID, counterpartyID, direction).
		Order("issued_at ASC").
		Find(&creditModels).Error; err != nil {
		return nil, err
	}

	credits := make([]*settlement.PrepaymentCredit, len(creditModels))
	for i := range creditModels {
		credits[i] = creditModels[i].ToDomain()
	}
	return credits, nil
}

// Ensure GormPrepaymentCreditRepository implements PrepaymentCreditRepository
var _ settlement.PrepaymentCreditRepository = (*GormPrepaymentCreditRepository)(nil)
