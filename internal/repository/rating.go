package repository

import (
	"context"
	"errors"
	"time"

	"github.com/talkincode/wadesk/internal/domain"
	"gorm.io/gorm"
)

var ErrRatingClosed = errors.New("rating already answered or expired")

type RatingRepository interface {
	Create(ctx context.Context, r *domain.Rating) error
	// GetByToken resolves a public rating link; it is not tenant scoped
	GetByToken(ctx context.Context, token string) (*domain.Rating, error)
	// Answer stores the score once, before the link expires
	Answer(ctx context.Context, id int64, score int, comment string, at time.Time) error
}

type GormRatingRepository struct {
	db *gorm.DB
}

func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

func (r *GormRatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	return ForTenant(r.db, rating.TenantID).WithContext(ctx).Create(rating)
}

func (r *GormRatingRepository) GetByToken(ctx context.Context, token string) (*domain.Rating, error) {
	var rating domain.Rating
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *GormRatingRepository) Answer(ctx context.Context, id int64, score int, comment string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Rating{}).
		Where("id = ? AND answered_at IS NULL AND expires_at > ?", id, at).
		Updates(map[string]interface{}{
			"score":       score,
			"comment":     comment,
			"answered_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRatingClosed
	}
	return nil
}
