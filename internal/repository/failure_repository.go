package repository

import (
	"context"
	"errors"

	"github.com/yeonho-dev/lecture-payments/internal/model"
	"gorm.io/gorm"
)

type RollbackFailureRepository interface {
	Create(ctx context.Context, f *model.RollbackFailure) error
	FindByID(ctx context.Context, id uint64) (*model.RollbackFailure, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, limit, offset int) ([]model.RollbackFailure, error)
}

type rollbackFailureRepository struct {
	db *gorm.DB
}

func NewRollbackFailureRepository(db *gorm.DB) RollbackFailureRepository {
	return &rollbackFailureRepository{db: db}
}

func (r *rollbackFailureRepository) Create(ctx context.Context, f *model.RollbackFailure) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *rollbackFailureRepository) FindByID(ctx context.Context, id uint64) (*model.RollbackFailure, error) {
	var f model.RollbackFailure
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *rollbackFailureRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.RollbackFailure{}, id).Error
}

func (r *rollbackFailureRepository) List(ctx context.Context, limit, offset int) ([]model.RollbackFailure, error) {
	var list []model.RollbackFailure
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

type CancelFailureRepository interface {
	Create(ctx context.Context, f *model.CancelFailure) error
	FindByPurchaseID(ctx context.Context, purchaseID uint64) (*model.CancelFailure, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, limit, offset int) ([]model.CancelFailure, error)
}

type cancelFailureRepository struct {
	db *gorm.DB
}

func NewCancelFailureRepository(db *gorm.DB) CancelFailureRepository {
	return &cancelFailureRepository{db: db}
}

func (r *cancelFailureRepository) Create(ctx context.Context, f *model.CancelFailure) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *cancelFailureRepository) FindByPurchaseID(ctx context.Context, purchaseID uint64) (*model.CancelFailure, error) {
	var f model.CancelFailure
	if err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *cancelFailureRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&model.CancelFailure{}, id).Error
}

func (r *cancelFailureRepository) List(ctx context.Context, limit, offset int) ([]model.CancelFailure, error) {
	var list []model.CancelFailure
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
