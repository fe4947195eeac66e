package repository

import (
	"context"
	"errors"

	"github.com/yeonho-dev/lecture-payments/internal/model"
	"gorm.io/gorm"
)

// ErrNotFound hides the storage driver's own not-found error from callers.
var ErrNotFound = errors.New("record not found")

type PurchaseRepository interface {
	Create(ctx context.Context, p *model.Purchase) error
	Update(ctx context.Context, p *model.Purchase) error
	FindByID(ctx context.Context, id uint64) (*model.Purchase, error)
	FindByMerchantUID(ctx context.Context, merchantUID string) (*model.Purchase, error)
	ExistsByChargeUID(ctx context.Context, chargeUID string) (bool, error)
	ListByUser(ctx context.Context, userUID string) ([]model.Purchase, error)
	ListByStatus(ctx context.Context, status model.PurchaseStatus) ([]model.Purchase, error)
	ListByStatusPage(ctx context.Context, status model.PurchaseStatus, limit, offset int) ([]model.Purchase, error)
}

type purchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) Create(ctx context.Context, p *model.Purchase) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *purchaseRepository) Update(ctx context.Context, p *model.Purchase) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *purchaseRepository) FindByID(ctx context.Context, id uint64) (*model.Purchase, error) {
	var p model.Purchase
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) FindByMerchantUID(ctx context.Context, merchantUID string) (*model.Purchase, error) {
	var p model.Purchase
	if err := r.db.WithContext(ctx).
		Where("merchant_uid = ?", merchantUID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) ExistsByChargeUID(ctx context.Context, chargeUID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("charge_uid = ?", chargeUID).
		Count(&count).Error
	return count > 0, err
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userUID string) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("user_uid = ?", userUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseRepository) ListByStatus(ctx context.Context, status model.PurchaseStatus) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseRepository) ListByStatusPage(ctx context.Context, status model.PurchaseStatus, limit, offset int) ([]model.Purchase, error) {
	var list []model.Purchase
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
