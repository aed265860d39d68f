package app

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JaiminPatel345/glowup-sub002/config"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/memory"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

func TestSweeperRemovesExpiredTokens(t *testing.T) {
	ctx := context.Background()
	refresh := memory.NewRefreshTokenRepository()
	actions := memory.NewActionTokenRepository()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	require.NoError(t, refresh.Create(ctx, &domain.RefreshToken{ID: "1", UserID: "u", TokenHash: "old", ExpiresAt: past}))
	require.NoError(t, refresh.Create(ctx, &domain.RefreshToken{ID: "2", UserID: "u", TokenHash: "new", ExpiresAt: future}))
	require.NoError(t, actions.Create(ctx, &domain.ActionToken{ID: "3", UserID: "u", Purpose: domain.PurposePasswordReset, TokenHash: "old", ExpiresAt: past}))

	s := NewSweeper(usecase.NewSessionRegistry(refresh, pkglog.Nop()), actions, time.Minute, pkglog.Nop())
	s.Sweep(ctx)

	_, err := refresh.FindByHash(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = refresh.FindByHash(ctx, "new")
	assert.NoError(t, err)
	n, err := actions.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	s := NewSweeper(usecase.NewSessionRegistry(memory.NewRefreshTokenRepository(), pkglog.Nop()), memory.NewActionTokenRepository(), time.Millisecond, pkglog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestBuildDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "app", DBPassword: "pw", DBName: "authdb", DBSSLMode: "disable", DBTimeout: 5 * time.Second}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=authdb sslmode=disable connect_timeout=5", buildDSN(cfg))

	cfg.DBURL = "postgres://app:pw@db/authdb"
	assert.Equal(t, "postgres://app:pw@db/authdb", buildDSN(cfg))
}

func TestNewWithMemoryStorage(t *testing.T) {
	t.Setenv("AUTH_STORAGE", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("NATS_URL", "nats://127.0.0.1:1")
	t.Setenv("AUTH_APP_ENV", "test")

	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := New(context.Background(), cfg, pkglog.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.db)
	assert.Nil(t, a.natsConn, "unreachable nats is not fatal")
	assert.NotNil(t, a.echo)
}

func TestInitDatabaseClosesOnMigrateFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// Any migration query fails; the only expected call is Close.
	mock.ExpectClose()

	a := &App{cfg: &config.Config{DBTimeout: time.Second}, logger: pkglog.Nop()}
	st, err := a.initDatabase(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
	assert.Nil(t, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}
