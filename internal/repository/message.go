package repository

import (
	"context"

	"github.com/talkincode/wadesk/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository message data access; messages are append only
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByConversation(ctx context.Context, tenantID, conversationID int64, page, pageSize int) ([]domain.Message, int64, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return ForTenant(r.db, msg.TenantID).WithContext(ctx).Create(msg)
}

// ListByConversation pages messages oldest first
func (r *GormMessageRepository) ListByConversation(ctx context.Context, tenantID, conversationID int64, page, pageSize int) ([]domain.Message, int64, error) {
	query := ForTenant(r.db, tenantID).WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	var rows []domain.Message
	err := query.Order("created_at ASC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}
