package persistence

import (
	"context"
	"errors"

	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountItemRepository implements AccountItemRepository using GORM
type GormAccountItemRepository struct {
	db *gorm.DB
}

// NewGormAccountItemRepository creates a new GormAccountItemRepository
func NewGormAccountItemRepository(db *gorm.DB) *GormAccountItemRepository {
	return &GormAccountItemRepository{db: db}
}

// Save creates or updates an account item
func (r *GormAccountItemRepository) Save(ctx context.Context, account *accounting.AccountItem) error {
	model := models.AccountItemModelFromDomain(account)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByCode finds an account by its code
func (r *GormAccountItemRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*accounting.AccountItem, error) {
	var model models.AccountItemModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists the whole chart of accounts for a tenant
func (r *GormAccountItemRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]*accounting.AccountItem, error) {
	var accountModels []models.AccountItemModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("code ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]*accounting.AccountItem, len(accountModels))
	for i := range accountModels {
		accounts[i] = accountModels[i].ToDomain()
	}
	return accounts, nil
}

// Delete removes an account by code
func (r *GormAccountItemRepository) Delete(ctx context.Context, tenantID uuid.UUID, code string) error {
	result := r.db.WithContext(ctx).
		Delete(&models.AccountItemModel{}, "tenant_id = ? AND code = ?", tenantID, code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormAccountItemRepository implements AccountItemRepository
var _ accounting.AccountItemRepository = (*GormAccountItemRepository)(nil)
