package audit

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry one operator action
type Entry struct {
	TenantID int64
	UserID   int64
	Username string
	Action   string
	IP       string
	Detail   string
}

// Service writes audit entries off the request path on a bounded pool
type Service struct {
	db   *gorm.DB
	pool *ants.Pool
	wg   sync.WaitGroup
}

func NewService(db *gorm.DB, size int) (*Service, error) {
	if size <= 0 {
		size = 8
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		zap.L().Error("audit writer panic", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, err
	}
	return &Service{db: db, pool: pool}, nil
}

// Record queues the entry. When the pool rejects the task the entry is
// written inline.
func (s *Service) Record(e Entry) {
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.write(e)
	})
	if err != nil {
		zap.L().Warn("audit pool submit failed, writing inline", zap.Error(err))
		s.write(e)
		s.wg.Done()
	}
}

func (s *Service) write(e Entry) {
	row := domain.AuditLog{
		ID:        common.UUIDint64(),
		TenantID:  e.TenantID,
		UserID:    e.UserID,
		Username:  e.Username,
		Action:    e.Action,
		IP:        e.IP,
		Detail:    e.Detail,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		zap.L().Error("audit write failed",
			zap.Int64("tenant_id", e.TenantID),
			zap.String("action", e.Action),
			zap.Error(err))
	}
}

// Wait blocks until queued entries are written
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Release() {
	s.wg.Wait()
	s.pool.Release()
}
