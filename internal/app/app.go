package app

import (
	"os"
	"runtime/debug"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/wadesk/config"
	"github.com/talkincode/wadesk/internal/audit"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	services  *Services
	bus       EventBus.Bus
	jobsMu    sync.RWMutex
	jobs      []*job
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ ServicesProvider  = (*Application)(nil)
	_ JobsProvider      = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{
		appConfig: appConfig,
		services:  &Services{},
		bus:       EventBus.New(),
	}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Services() *Services {
	return a.services
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// InitLogger installs the global zap logger
func InitLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	var err error
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	InitLogger(cfg)

	// Initialize metrics with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}
	a.services.Metrics = metrics.Reader{}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.checkSystemTenant()
	a.checkSuper()

	a.initJob()
}

// SetServices installs the collaborator handles built by the caller. Nil
// fields keep their current value.
func (a *Application) SetServices(s Services) {
	if s.Payment != nil {
		a.services.Payment = s.Payment
	}
	if s.Audit != nil {
		a.services.Audit = s.Audit
	}
	if s.TwoFactor != nil {
		a.services.TwoFactor = s.TwoFactor
	}
	if s.Transport != nil {
		a.services.Transport = s.Transport
	}
	if s.Metrics != nil {
		a.services.Metrics = s.Metrics
	}
	if s.Cache != nil {
		a.services.Cache = s.Cache
	}
	if s.Mailer != nil {
		a.services.Mailer = s.Mailer
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
		return err
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
	a.checkSystemTenant()
	a.checkSuper()
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if rel, ok := a.services.Audit.(interface{ Release() }); ok {
		rel.Release()
	}
	if cl, ok := a.services.Cache.(interface{ Close() error }); ok {
		_ = cl.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}

func auditEntry(tenantID, userID int64, username, action, ip, detail string) audit.Entry {
	return audit.Entry{
		TenantID: tenantID,
		UserID:   userID,
		Username: username,
		Action:   action,
		IP:       ip,
		Detail:   detail,
	}
}
