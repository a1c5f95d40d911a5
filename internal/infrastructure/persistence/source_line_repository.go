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

// GormSourceLineRepository implements SourceLineRepository using GORM
type GormSourceLineRepository struct {
	db *gorm.DB
}

// NewGormSourceLineRepository creates a new GormSourceLineRepository
func NewGormSourceLineRepository(db *gorm.DB) *GormSourceLineRepository {
	return &GormSourceLineRepository{db: db}
}

// Save creates or updates a source line
func (r *GormSourceLineRepository) Save(ctx context.Context, line *settlement.SourceLine) error {
	model := models.SourceLineModelFromDomain(line)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with an optimistic version check
func (r *GormSourceLineRepository) SaveWithLock(ctx context.Context, line *settlement.SourceLine, expectedVersion int) error {
	model := models.SourceLineModelFromDomain(line)
	model.Version = expectedVersion + 1

	// Select("*") writes zero-valued columns too; a reversal flips
	// settled back to false and can reset allocated_amount to zero.
	result := r.db.WithContext(ctx).
		Model(&models.SourceLineModel{}).
		Select("*").
		Where("id = ? AND version = ?", line.ID, expectedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	line.IncrementVersion()
	return nil
}

// FindByRef finds a source line by its tagged reference
func (r *GormSourceLineRepository) FindByRef(ctx context.Context, tenantID uuid.UUID, ref settlement.SourceLineRef) (*settlement.SourceLine, error) {
	var model models.SourceLineModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_kind = ? AND line_id = ?", tenantID, ref.Kind, ref.LineID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRefs finds source lines for a batch of references.
// Missing references are skipped, not errors; the caller decides what
// absence means.
func (r *GormSourceLineRepository) FindByRefs(ctx context.Context, tenantID uuid.UUID, refs []settlement.SourceLineRef) ([]*settlement.SourceLine, error) {
	return r.findByRefs(ctx, r.db, tenantID, refs)
}

// FindByRefsForUpdate loads lines under row locks so racing settlements
// serialize on the same lines
func (r *GormSourceLineRepository) FindByRefsForUpdate(ctx context.Context, tenantID uuid.UUID, refs []settlement.SourceLineRef) ([]*settlement.SourceLine, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findByRefs(ctx, locked, tenantID, refs)
}

func (r *GormSourceLineRepository) findByRefs(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, refs []settlement.SourceLineRef) ([]*settlement.SourceLine, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	pairs := make([][]interface{}, len(refs))
	for i, ref := range refs {
		pairs[i] = []interface{}{string(ref.Kind), ref.LineID}
	}

	var lineModels []models.SourceLineModel
	if err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("(source_kind, line_id) IN ?", pairs).
		Order("source_kind, line_id").
		Find(&lineModels).Error; err != nil {
		return nil, err
	}

	lines := make([]*settlement.SourceLine, len(lineModels))
	for i := range lineModels {
		lines[i] = lineModels[i].ToDomain()
	}
	return lines, nil
}

// FindOpenByCounterparty lists lines with outstanding balance, oldest
// first, for FIFO selection
func (r *GormSourceLineRepository) FindOpenByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, direction settlement.Direction) ([]*settlement.SourceLine, error) {
	var lineModels []models.SourceLineModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND counterparty_id = ? AND source_kind IN ? AND settled = false",
			tenantID, counterpartyID, kindsForDirection(direction)).
		Order("business_date ASC, document_number ASC").
		Find(&lineModels).Error; err != nil {
		return nil, err
	}

	lines := make([]*settlement.SourceLine, len(lineModels))
	for i := range lineModels {
		lines[i] = lineModels[i].ToDomain()
	}
	return lines, nil
}

// kindsForDirection maps a settlement direction to its source kinds
func kindsForDirection(direction settlement.Direction) []settlement.SourceKind {
	if direction == settlement.DirectionReceivable {
		return []settlement.SourceKind{settlement.SourceKindSalesOrderLine, settlement.SourceKindSalesReturnLine}
	}
	return []settlement.SourceKind{settlement.SourceKindPurchaseReceivingLine, settlement.SourceKindPurchaseReturnLine}
}

// Ensure GormSourceLineRepository implements SourceLineRepository
var _ settlement.SourceLineRepository = (*GormSourceLineRepository)(nil)
