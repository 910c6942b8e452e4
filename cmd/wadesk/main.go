package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/talkincode/wadesk/config"
	"github.com/talkincode/wadesk/internal/adminapi"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/audit"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/cache"
	"github.com/talkincode/wadesk/internal/chat"
	"github.com/talkincode/wadesk/internal/dashboard"
	"github.com/talkincode/wadesk/internal/mailer"
	"github.com/talkincode/wadesk/internal/payment"
	"github.com/talkincode/wadesk/internal/realtime"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/internal/whatsapp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	auditPoolSize   = 16
	shutdownTimeout = 10 * time.Second
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:          "wadesk",
		Short:        "Multi-tenant WhatsApp service desk backend",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to wadesk.yml (default: ./wadesk.yml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, websocket and webhook server",
		RunE:  runServe,
	})
	root.AddCommand(migrateCmd())
	root.AddCommand(initdbCmd())
	root.AddCommand(hashPasswordCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	app.InitLogger(cfg)
	return cfg, nil
}

// openApplication connects the store without starting jobs
func openApplication(cfg *config.AppConfig) (*app.Application, error) {
	db, err := app.OpenDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	application := app.NewApplication(cfg)
	application.OverrideDB(db)
	return application, nil
}

func migrateCmd() *cobra.Command {
	var track bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			application, err := openApplication(cfg)
			if err != nil {
				return err
			}
			if err := application.MigrateDB(track); err != nil {
				return err
			}
			zap.S().Info("database migrated")
			return nil
		},
	}
	cmd.Flags().BoolVar(&track, "track", false, "log executed migration statements")
	return cmd
}

func initdbCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Drop every table and recreate the schema with seed records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("initdb destroys all data, rerun with --yes to confirm")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			application, err := openApplication(cfg)
			if err != nil {
				return err
			}
			application.InitDb()
			zap.S().Info("database initialized")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm destructive reinitialization")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for a sys_user password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()
	db := application.DB()

	services := app.Services{
		Payment:   payment.NewLedgerService(db),
		TwoFactor: auth.NewTOTPService(cfg.System.Appid),
	}
	if auditSvc, err := audit.NewService(db, auditPoolSize); err != nil {
		zap.L().Warn("audit service disabled", zap.Error(err))
	} else {
		services.Audit = auditSvc
	}
	if boltCache, err := cache.Open(path.Join(cfg.GetDataDir(), "cache.db")); err != nil {
		zap.L().Warn("cache disabled", zap.Error(err))
	} else {
		services.Cache = boltCache
	}
	if m := mailer.New(cfg.Smtp); m != nil {
		services.Mailer = m
	}

	var wa *whatsapp.Manager
	if cfg.WhatsApp.Enabled {
		manager, err := whatsapp.NewManager(ctx, db, cfg.Database.Type)
		if err != nil {
			zap.L().Error("whatsapp transport disabled", zap.Error(err))
		} else {
			wa = manager
			services.Transport = wa
			wa.Start()
			defer wa.Close()
		}
	}
	application.SetServices(services)

	chatSvc := chat.NewService(chat.Repositories{
		Conversations: repository.NewGormConversationRepository(db),
		Messages:      repository.NewGormMessageRepository(db),
		Instances:     repository.NewGormInstanceRepository(db),
		Ratings:       repository.NewGormRatingRepository(db),
	}, realtime.NewHub(), application.Services(), chat.Options{
		PublicURL:       cfg.Web.PublicURL,
		AlertRecipients: cfg.Smtp.Alerts,
	})
	if err := chatSvc.Subscribe(application.Bus()); err != nil {
		return fmt.Errorf("subscribe rating events: %w", err)
	}

	srv := webserver.Init(application)
	adminapi.Init(adminapi.Deps{
		Verifier:  auth.NewVerifier(cfg.Web.Secret, application.Services(), auth.DefaultSources(db)...),
		Chat:      chatSvc,
		Dashboard: dashboard.NewService(db, application.Services()),
		WhatsApp:  wa,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
	return nil
}
