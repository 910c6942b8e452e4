package repository

import (
	"context"
	"time"

	"github.com/talkincode/wadesk/internal/domain"
	"gorm.io/gorm"
)

// ConversationFilter narrows List results
type ConversationFilter struct {
	Status      string
	InstanceIDs []int64
	Page        int
	PageSize    int
	Sort        string
	Order       string
}

var conversationSortColumns = map[string]string{
	"id":           "id",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"unread_count": "unread_count",
	"status":       "status",
}

// ConversationRepository conversation data access, always tenant scoped
type ConversationRepository interface {
	Get(ctx context.Context, tenantID, id int64) (*domain.Conversation, error)
	// Touch bumps updated_at after new activity
	Touch(ctx context.Context, tenantID, id int64, at time.Time) error
	// Close marks an open conversation closed by the given user. A closed
	// one is left untouched and reported with ErrAlreadyClosed.
	Close(ctx context.Context, tenantID, id, closedBy int64, at time.Time) error
	ResetUnread(ctx context.Context, tenantID, id int64) error
	List(ctx context.Context, tenantID int64, filter ConversationFilter) ([]domain.Conversation, int64, error)
}

// GormConversationRepository is the GORM implementation of ConversationRepository
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) scope(ctx context.Context, tenantID int64) *TenantDB {
	return ForTenant(r.db, tenantID).WithContext(ctx)
}

func (r *GormConversationRepository) Get(ctx context.Context, tenantID, id int64) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.scope(ctx, tenantID).First(&conv, "id = ?", id); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *GormConversationRepository) Touch(ctx context.Context, tenantID, id int64, at time.Time) error {
	return r.update(ctx, tenantID, id, map[string]interface{}{"updated_at": at})
}

func (r *GormConversationRepository) Close(ctx context.Context, tenantID, id, closedBy int64, at time.Time) error {
	res := r.scope(ctx, tenantID).Model(&domain.Conversation{}).
		Where("id = ? AND status <> ?", id, domain.ConversationClosed).
		Updates(map[string]interface{}{
			"status":     domain.ConversationClosed,
			"closed_at":  at,
			"closed_by":  closedBy,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := r.scope(ctx, tenantID).Model(&domain.Conversation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrAlreadyClosed
}

func (r *GormConversationRepository) ResetUnread(ctx context.Context, tenantID, id int64) error {
	return r.update(ctx, tenantID, id, map[string]interface{}{"unread_count": 0})
}

func (r *GormConversationRepository) update(ctx context.Context, tenantID, id int64, values map[string]interface{}) error {
	res := r.scope(ctx, tenantID).Model(&domain.Conversation{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) List(ctx context.Context, tenantID int64, filter ConversationFilter) ([]domain.Conversation, int64, error) {
	query := r.scope(ctx, tenantID).Model(&domain.Conversation{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if len(filter.InstanceIDs) > 0 {
		query = query.Where("instance_id IN ?", filter.InstanceIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	var rows []domain.Conversation
	err := query.
		Order(SortClause(filter.Sort, filter.Order, conversationSortColumns, "updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
