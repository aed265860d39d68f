package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/JaiminPatel345/glowup-sub002/config"
	httpadapter "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http"
	apiv1 "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1"
	handlers "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1/handlers"
	authmw "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/middleware"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/mailer"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/memory"
	natsadapter "github.com/JaiminPatel345/glowup-sub002/internal/adapters/nats"
	repo "github.com/JaiminPatel345/glowup-sub002/internal/adapters/postgres"
	"github.com/JaiminPatel345/glowup-sub002/internal/password"
	"github.com/JaiminPatel345/glowup-sub002/internal/ratelimit"
	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg      *config.Config
	logger   pkglog.Logger
	db       *gorm.DB
	natsConn *nats.Conn
	echo     *echo.Echo
	sweeper  *Sweeper
}

type stores struct {
	users   usecase.UserRepository
	refresh usecase.RefreshTokenRepository
	actions usecase.ActionTokenRepository
	ready   func(ctx context.Context) error
}

// New wires the service from cfg. Resources opened before a failure are closed.
func New(ctx context.Context, cfg *config.Config, logger pkglog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	signer, err := usecase.NewJWTSigner(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("jwt signer: %w", err)
	}

	var events usecase.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats connect failed, events disabled")
		} else {
			a.natsConn = nc
			events = natsadapter.NewEventPublisher(nc, natsadapter.Subjects{
				UserCreated:     cfg.NATSUserCreatedSubject,
				UserDeactivated: cfg.NATSUserDeactivateSubject,
			})
			if _, err := natsadapter.NewVerifyHandler(signer, logger).Subscribe(nc, cfg.NATSVerifySubject, cfg.AppName); err != nil {
				logger.Warn().Err(err).Str("subject", cfg.NATSVerifySubject).Msg("nats subscribe failed")
			}
		}
	}

	var mail usecase.Mailer = mailer.NewLogMailer(logger)
	if cfg.MailerURL != "" {
		mail = mailer.NewHTTPClient(cfg.MailerURL, cfg.MailerTimeout)
	}

	sessions := usecase.NewSessionRegistry(st.refresh, logger, usecase.WithReuseGrace(cfg.RefreshReuseGrace))
	service := usecase.NewAuthService(cfg, logger, st.users, sessions, st.actions, password.NewHasher(cfg.BcryptCost), mail, events, signer)
	handler := handlers.NewAuthHandler(service, logger, cfg.ExposeInternalErr)
	authMW := authmw.NewAuthMiddleware(signer)
	router := httpadapter.NewRouter(cfg, logger,
		apiv1.NewRouter(handler, authMW.Handler, limits(cfg)),
		authmw.GeneralRateLimit(window(cfg.GeneralRate())),
		st.ready,
	)

	e := echo.New()
	router.Setup(e)

	a.echo = e
	a.sweeper = NewSweeper(sessions, st.actions, cfg.SweepInterval, logger)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	if a.cfg.Storage == "memory" {
		a.logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return &stores{
			users:   memory.NewUserRepository(),
			refresh: memory.NewRefreshTokenRepository(),
			actions: memory.NewActionTokenRepository(),
		}, nil
	}

	db, err := gorm.Open(postgres.Open(buildDSN(a.cfg)), &gorm.Config{
		Logger:                 loggerForGorm(a.cfg),
		NamingStrategy:         schema.NamingStrategy{SingularTable: true},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return a.initDatabase(ctx, db)
}

// initDatabase migrates db and builds the postgres stores. On failure the
// connection is closed.
func (a *App) initDatabase(ctx context.Context, db *gorm.DB) (st *stores, err error) {
	a.db = db
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	migrateCtx, cancel := context.WithTimeout(ctx, 6*a.cfg.DBTimeout)
	defer cancel()
	if err = repo.Migrate(migrateCtx, sqlDB); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &stores{
		users:   repo.NewAuthUserRepository(db),
		refresh: repo.NewRefreshTokenRepository(db),
		actions: repo.NewActionTokenRepository(db),
		ready: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.cfg.DBTimeout)
			defer cancel()
			return sqlDB.PingContext(ctx)
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.echo.Shutdown(shutdownCtx)
	}()
	go func() {
		addr := fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort)
		a.logger.Info().Str("addr", addr).Str("storage", a.cfg.Storage).Msg("auth service listening")
		errCh <- a.echo.Start(addr)
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func limits(cfg *config.Config) apiv1.Limits {
	return apiv1.Limits{
		Login:    authmw.FailureRateLimit(window(cfg.LoginRate()), authmw.ByIP("login")),
		Register: authmw.RateLimit(window(cfg.RegisterRate()), authmw.ByIP("register")),
		Reset:    authmw.RateLimit(window(cfg.ResetRate()), authmw.ByIP("reset")),
	}
}

func window(rule config.RateRule) ratelimit.Limiter {
	return ratelimit.NewWindow(rule.Window, rule.Max)
}

func buildDSN(cfg *config.Config) string {
	if cfg.DBURL != "" {
		return cfg.DBURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, int(cfg.DBTimeout.Seconds()))
}

func loggerForGorm(cfg *config.Config) logger.Interface {
	level := logger.Warn
	if cfg.IsLocal() {
		level = logger.Info
	}
	return logger.Default.LogMode(level)
}
