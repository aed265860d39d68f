//go:build integration

package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:16-alpine",
		tcPostgres.WithDatabase("authdb_test"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := Migrate(ctx, sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestIntegrationUserAndSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewAuthUserRepository(db)
	tokens := NewRefreshTokenRepository(db)

	user := &domain.User{ID: uuid.NewString(), Email: "a@b.com", PasswordHash: "x", Role: domain.RoleUser, IsActive: true, PasswordUpdatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.User{ID: uuid.NewString(), Email: "A@B.COM", PasswordHash: "x", Role: domain.RoleUser, IsActive: true, PasswordUpdatedAt: time.Now()}
	if err := users.Create(ctx, dup); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := users.FindByEmail(ctx, "A@b.com"); err != nil {
		t.Fatalf("find by email: %v", err)
	}

	rt := &domain.RefreshToken{ID: uuid.NewString(), UserID: user.ID, TokenHash: "hash-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := tokens.Create(ctx, rt); err != nil {
		t.Fatalf("create token: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tokens.Consume(ctx, "hash-1", time.Now(), domain.RevokeRotated); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one redemption, got %d", wins)
	}

	if err := users.Deactivate(ctx, user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	name := "Ana"
	if _, err := users.UpdateProfile(ctx, user.ID, domain.ProfileUpdate{FirstName: &name}); !errors.Is(err, domain.ErrDeactivated) {
		t.Fatalf("expected deactivated, got %v", err)
	}
}
