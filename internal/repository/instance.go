package repository

import (
	"context"

	"github.com/talkincode/wadesk/internal/domain"
	"gorm.io/gorm"
)

type InstanceRepository interface {
	Get(ctx context.Context, tenantID, id int64) (*domain.Instance, error)
	// ListIDs returns the ids of every instance the tenant owns
	ListIDs(ctx context.Context, tenantID int64) ([]int64, error)
}

type GormInstanceRepository struct {
	db *gorm.DB
}

func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

func (r *GormInstanceRepository) Get(ctx context.Context, tenantID, id int64) (*domain.Instance, error) {
	var inst domain.Instance
	if err := ForTenant(r.db, tenantID).WithContext(ctx).First(&inst, "id = ?", id); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) ListIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	var ids []int64
	err := ForTenant(r.db, tenantID).WithContext(ctx).
		Model(&domain.Instance{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
