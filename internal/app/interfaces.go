package app

import (
	"context"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/wadesk/config"
	"github.com/talkincode/wadesk/internal/audit"
	"github.com/talkincode/wadesk/internal/payment"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ServicesProvider exposes the optional collaborator set
type ServicesProvider interface {
	Services() *Services
}

// BusProvider exposes the in-process event bus
type BusProvider interface {
	Bus() EventBus.Bus
}

// JobsProvider exposes the maintenance jobs
type JobsProvider interface {
	Jobs() []JobStatus
	RunJobNow(name string) error
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	ServicesProvider
	BusProvider
	JobsProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}

// PaymentService ingests normalized provider events
type PaymentService interface {
	HandleEvent(ctx context.Context, evt payment.Event) error
}

// AuditService records operator actions; Record must not block the caller
type AuditService interface {
	Record(entry audit.Entry)
}

// TwoFactorService issues and checks TOTP secrets
type TwoFactorService interface {
	GenerateSecret(account string) (secret string, url string, err error)
	Validate(code, secret string) bool
}

// TransportManager delivers outbound messages through a connected instance
// and returns the transport-assigned message id.
type TransportManager interface {
	SendMessage(ctx context.Context, instanceID int64, chatID, text string) (string, error)
}

// MetricsReader reads sampled host gauges
type MetricsReader interface {
	Latest(name string, window time.Duration) (float64, bool)
}

// CacheService is a small TTL key/value cache for computed responses
type CacheService interface {
	Get(key string, dst interface{}) bool
	Set(key string, value interface{}, ttl time.Duration) error
}

// MailerService sends plain alert mails
type MailerService interface {
	Send(to []string, subject, body string) error
}
