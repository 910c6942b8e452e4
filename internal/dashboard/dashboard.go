// Package dashboard computes tenant analytics for the admin dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/araddon/dateparse"
	"github.com/montanaflynn/stats"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/repository"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// SummaryTTL is how long a tenant summary stays cached
const SummaryTTL = 30 * time.Second

const (
	detailLimit    = 500
	metricWindow   = 2 * time.Minute
	upcomingWindow = 7 * 24 * time.Hour
)

var (
	ErrUnknownDetailType = errors.New("unknown detail type")
	ErrInvalidRange      = errors.New("invalid date range")
)

type Summary struct {
	ConversationsTotal       int64   `json:"conversations_total"`
	ConversationsOpen        int64   `json:"conversations_open"`
	ConversationsClosedToday int64   `json:"conversations_closed_today"`
	MessagesToday            int64   `json:"messages_today"`
	LeadsTotal               int64   `json:"leads_total"`
	LeadsToday               int64   `json:"leads_today"`
	UpcomingAppointments     int64   `json:"upcoming_appointments"`
	AverageRating            float64 `json:"average_rating"`
	GeneratedAt              string  `json:"generated_at"`
}

type AgentLoad struct {
	AgentID int64 `json:"agent_id,string"`
	Open    int64 `json:"open"`
}

type OperationalStats struct {
	OpenByAgent      []AgentLoad `json:"open_by_agent"`
	TotalUnread      int64       `json:"total_unread"`
	UnassignedOpen   int64       `json:"unassigned_open"`
	RatingsAnswered  int64       `json:"ratings_answered"`
	RatingMean       float64     `json:"rating_mean"`
	RatingMedian     float64     `json:"rating_median"`
	HostCPUPercent   float64     `json:"host_cpu_percent"`
	HostMemPercent   float64     `json:"host_mem_percent"`
	HostMetricsAvail bool        `json:"host_metrics_available"`
}

// Range bounds detail queries; zero values fall back to the query default
type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange accepts any format dateparse understands. Empty strings leave
// the bound open.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	var r Range
	var err error
	if from != "" {
		if r.From, err = dateparse.ParseIn(from, loc); err != nil {
			return r, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
		}
	}
	if to != "" {
		if r.To, err = dateparse.ParseIn(to, loc); err != nil {
			return r, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("%w: to before from", ErrInvalidRange)
	}
	return r, nil
}

type detailQuery func(ctx context.Context, tdb *repository.TenantDB, r Range, now time.Time) (interface{}, error)

type Service struct {
	db       *gorm.DB
	services *app.Services
	now      func() time.Time
	details  map[string]detailQuery
}

func NewService(db *gorm.DB, services *app.Services) *Service {
	if services == nil {
		services = &app.Services{}
	}
	return &Service{db: db, services: services, now: time.Now, details: detailCatalog()}
}

// DetailTypes lists the accepted detail discriminators
func (s *Service) DetailTypes() []string {
	out := make([]string, 0, len(s.details))
	for k := range s.details {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) tenant(ctx context.Context, tenantID int64) *repository.TenantDB {
	return repository.ForTenant(s.db, tenantID).WithContext(ctx)
}

func count(q *gorm.DB, dst *int64) error {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	*dst = n
	return nil
}

// scalar reads a single aggregate column; NULL becomes nil
func scalar(q *gorm.DB, expr string) (interface{}, error) {
	var v interface{}
	if err := q.Select(expr).Row().Scan(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Summary returns the headline counters, cached per tenant when a cache
// service is configured.
func (s *Service) Summary(ctx context.Context, tenantID int64) (*Summary, error) {
	key := fmt.Sprintf("dashboard:summary:%d", tenantID)
	if c := s.services.Cache; c != nil {
		var cached Summary
		if c.Get(key, &cached) {
			return &cached, nil
		}
	}

	now := s.now()
	today := startOfDay(now)
	var out Summary
	g, gctx := errgroup.WithContext(ctx)
	tdb := func() *repository.TenantDB { return s.tenant(gctx, tenantID) }

	g.Go(func() error {
		return count(tdb().Model(&domain.Conversation{}), &out.ConversationsTotal)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Conversation{}).Where("status = ?", domain.ConversationOpen), &out.ConversationsOpen)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Conversation{}).
			Where("status = ? AND closed_at >= ?", domain.ConversationClosed, today), &out.ConversationsClosedToday)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Message{}).Where("created_at >= ?", today), &out.MessagesToday)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Lead{}), &out.LeadsTotal)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Lead{}).Where("created_at >= ?", today), &out.LeadsToday)
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Appointment{}).
			Where("scheduled_at >= ? AND scheduled_at < ? AND status <> ?", now, now.Add(upcomingWindow), "cancelled"),
			&out.UpcomingAppointments)
	})
	var avg interface{}
	g.Go(func() error {
		v, err := scalar(tdb().Model(&domain.Rating{}).Where("answered_at IS NOT NULL"), "AVG(CAST(score AS FLOAT))")
		avg = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(err, "dashboard summary")
	}
	out.AverageRating = round2(cast.ToFloat64(avg))
	out.GeneratedAt = now.Format(time.RFC3339)

	if c := s.services.Cache; c != nil {
		_ = c.Set(key, out, SummaryTTL)
	}
	return &out, nil
}

// OperationalStats reports live workload and rating distribution
func (s *Service) OperationalStats(ctx context.Context, tenantID int64) (*OperationalStats, error) {
	var out OperationalStats
	var loads []map[string]interface{}
	var unread interface{}
	var scores []float64

	g, gctx := errgroup.WithContext(ctx)
	tdb := func() *repository.TenantDB { return s.tenant(gctx, tenantID) }

	g.Go(func() error {
		return tdb().Model(&domain.Conversation{}).
			Select("assigned_agent_id AS agent_id, COUNT(*) AS open_count").
			Where("status = ? AND assigned_agent_id IS NOT NULL", domain.ConversationOpen).
			Group("assigned_agent_id").
			Find(&loads).Error
	})
	g.Go(func() error {
		v, err := scalar(tdb().Model(&domain.Conversation{}).Where("status = ?", domain.ConversationOpen), "SUM(unread_count)")
		unread = v
		return err
	})
	g.Go(func() error {
		return count(tdb().Model(&domain.Conversation{}).
			Where("status = ? AND assigned_agent_id IS NULL", domain.ConversationOpen), &out.UnassignedOpen)
	})
	g.Go(func() error {
		return tdb().Model(&domain.Rating{}).Where("answered_at IS NOT NULL").Pluck("score", &scores).Error
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(err, "operational stats")
	}

	out.OpenByAgent = make([]AgentLoad, 0, len(loads))
	for _, row := range loads {
		out.OpenByAgent = append(out.OpenByAgent, AgentLoad{
			AgentID: cast.ToInt64(row["agent_id"]),
			Open:    cast.ToInt64(row["open_count"]),
		})
	}
	sort.Slice(out.OpenByAgent, func(i, j int) bool {
		if out.OpenByAgent[i].Open != out.OpenByAgent[j].Open {
			return out.OpenByAgent[i].Open > out.OpenByAgent[j].Open
		}
		return out.OpenByAgent[i].AgentID < out.OpenByAgent[j].AgentID
	})
	out.TotalUnread = cast.ToInt64(unread)
	out.RatingsAnswered = int64(len(scores))
	if len(scores) > 0 {
		mean, _ := stats.Mean(scores)
		median, _ := stats.Median(scores)
		out.RatingMean = round2(mean)
		out.RatingMedian = round2(median)
	}

	if m := s.services.Metrics; m != nil {
		cpu, okCPU := m.Latest(app.MetricSystemCPU, metricWindow)
		mem, okMem := m.Latest(app.MetricSystemMem, metricWindow)
		// gauges are stored as percent * 100
		out.HostCPUPercent = round2(cpu / 100)
		out.HostMemPercent = round2(mem / 100)
		out.HostMetricsAvail = okCPU || okMem
	}
	return &out, nil
}

// Detail runs one catalog query. Unknown types return ErrUnknownDetailType.
func (s *Service) Detail(ctx context.Context, tenantID int64, typ string, r Range) (interface{}, error) {
	q, ok := s.details[typ]
	if !ok {
		return nil, ErrUnknownDetailType
	}
	rows, err := q(ctx, s.tenant(ctx, tenantID), r, s.now())
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "dashboard detail %s", typ)
	}
	return rows, nil
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}
