package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/setoff/internal/domain/settlement"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettlementDocumentRepository implements SettlementDocumentRepository using GORM
type GormSettlementDocumentRepository struct {
	db *gorm.DB
}

// NewGormSettlementDocumentRepository creates a new GormSettlementDocumentRepository
func NewGormSettlementDocumentRepository(db *gorm.DB) *GormSettlementDocumentRepository {
	return &GormSettlementDocumentRepository{db: db}
}

// Save creates or updates a settlement document with its owned children
func (r *GormSettlementDocumentRepository) Save(ctx context.Context, doc *settlement.SettlementDocument) error {
	model := models.SettlementDocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(model).Error
}

// SaveWithLock saves the document head with an optimistic version check.
// Children are immutable after posting, so the lock only guards the head.
func (r *GormSettlementDocumentRepository) SaveWithLock(ctx context.Context, doc *settlement.SettlementDocument, expectedVersion int) error {
	model := models.SettlementDocumentModelFromDomain(doc)
	model.Version = expectedVersion + 1

	// Select("*") so zero-valued columns update as well.
	result := r.db.WithContext(ctx).
		Model(&models.SettlementDocumentModel{}).
		Select("*").
		Omit(clause.Associations).
		Where("id = ? AND version = ?", doc.ID, expectedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	doc.IncrementVersion()
	return nil
}

// FindByID finds a settlement document by ID
func (r *GormSettlementDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	return r.findByID(ctx, r.db, tenantID, id)
}

// FindByIDForUpdate loads the document under a row lock so reversal and
// concurrent reversal serialize
func (r *GormSettlementDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	locked := r.db.Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findByID(ctx, locked, tenantID, id)
}

func (r *GormSettlementDocumentRepository) findByID(ctx context.Context, db *gorm.DB, tenantID, id uuid.UUID) (*settlement.SettlementDocument, error) {
	var model models.SettlementDocumentModel
	if err := db.WithContext(ctx).
		Preload("Allocations").
		Preload("Usages").
		Preload("Instruments").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDocumentNumber finds a settlement document by its number
func (r *GormSettlementDocumentRepository) FindByDocumentNumber(ctx context.Context, tenantID uuid.UUID, documentNumber string) (*settlement.SettlementDocument, error) {
	var model models.SettlementDocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Allocations").
		Preload("Usages").
		Preload("Instruments").
		Where("tenant_id = ? AND document_number = ?", tenantID, documentNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List pages through settlement documents
func (r *GormSettlementDocumentRepository) List(ctx context.Context, tenantID uuid.UUID, filter settlement.SettlementDocumentFilter) (*shared.Paginated[*settlement.SettlementDocument], error) {
	query := r.db.WithContext(ctx).
		Model(&models.SettlementDocumentModel{}).
		Where("tenant_id = ?", tenantID)
	query = applyDocumentFilter(query, filter)

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

	var docModels []models.SettlementDocumentModel
	if err := query.
		Preload("Allocations").
		Preload("Usages").
		Preload("Instruments").
		Order("settlement_date DESC, document_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docModels).Error; err != nil {
		return nil, err
	}

	docs := make([]*settlement.SettlementDocument, len(docModels))
	for i := range docModels {
		docs[i] = docModels[i].ToDomain()
	}
	paginated := shared.NewPaginated(docs, total, page, pageSize)
	return &paginated, nil
}

func applyDocumentFilter(query *gorm.DB, filter settlement.SettlementDocumentFilter) *gorm.DB {
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.DateFrom != nil {
		query = query.Where("settlement_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("settlement_date <= ?", *filter.DateTo)
	}
	return query
}

// NextDocumentNumber allocates a sequential settlement number for the day.
// Format: RS-YYYYMMDD-NNNNN for receivable, PS-YYYYMMDD-NNNNN for payable.
func (r *GormSettlementDocumentRepository) NextDocumentNumber(ctx context.Context, tenantID uuid.UUID, direction settlement.Direction, date time.Time) (string, error) {
	prefix := "RS"
	if direction == settlement.DirectionPayable {
		prefix = "PS"
	}
	dayPrefix := fmt.Sprintf("%s-%s-", prefix, date.Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.SettlementDocumentModel{}).
		Select("document_number").
		Where("tenant_id = ? AND document_number LIKE ?", tenantID, dayPrefix+"%").
		Order("document_number DESC").
		Limit(1).
		Pluck("document_number", &maxNumber).Error; err != nil {
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

	return fmt.Sprintf("%s%05d", dayPrefix, nextNum), nil
}

// Ensure GormSettlementDocumentRepository implements SettlementDocumentRepository
var _ settlement.SettlementDocumentRepository = (*GormSettlementDocumentRepository)(nil)
