package dashboard

import (
	"context"
	"time"

	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"gorm.io/gorm"
)

// window resolves the range against a default start and open end
func (r Range) window(defaultFrom time.Time) (time.Time, time.Time) {
	from, to := r.From, r.To
	if from.IsZero() {
		from = defaultFrom
	}
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return from, to
}

func between(q *gorm.DB, column string, from, to time.Time) *gorm.DB {
	return q.Where(column+" >= ? AND "+column+" < ?", from, to)
}

func detailCatalog() map[string]detailQuery {
	return map[string]detailQuery{
		"conversations_today": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			from, to := r.window(startOfDay(now))
			var rows []domain.Conversation
			err := between(tdb.Model(&domain.Conversation{}), "created_at", from, to).
				Order("created_at DESC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
		"open_conversations": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			var rows []domain.Conversation
			q := tdb.Model(&domain.Conversation{}).Where("status = ?", domain.ConversationOpen)
			if !r.From.IsZero() || !r.To.IsZero() {
				from, to := r.window(time.Time{})
				q = between(q, "updated_at", from, to)
			}
			err := q.Order("updated_at DESC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
		"leads_today": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			from, to := r.window(startOfDay(now))
			var rows []domain.Lead
			err := between(tdb.Model(&domain.Lead{}), "created_at", from, to).
				Order("created_at DESC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
		"appointments_upcoming": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			from, to := r.window(now)
			if r.To.IsZero() {
				to = from.Add(upcomingWindow)
			}
			var rows []domain.Appointment
			err := between(tdb.Model(&domain.Appointment{}), "scheduled_at", from, to).
				Where("status <> ?", "cancelled").
				Order("scheduled_at ASC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
		"messages_today": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			from, to := r.window(startOfDay(now))
			var rows []domain.Message
			err := between(tdb.Model(&domain.Message{}), "created_at", from, to).
				Order("created_at DESC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
		"low_ratings": func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error) {
			from, to := r.window(now.AddDate(0, 0, -30))
			var rows []domain.Rating
			err := between(tdb.Model(&domain.Rating{}), "answered_at", from, to).
				Where("score <= ?", 2).
				Order("answered_at DESC").Limit(detailLimit).Find(&rows).Error
			return rows, err
		},
	}
}
