package usecase

import (
	"context"
	"time"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

// UserRepository persists users. Lookups return domain.ErrNotFound when nothing matches;
// Create returns domain.ErrDuplicateEmail on a unique violation.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error)
	SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

// RefreshTokenRepository stores refresh sessions keyed by token hash.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Consume moves an active token to the revoked state in a single conditional
	// statement and returns it. domain.ErrNotFound if no active token matched.
	Consume(ctx context.Context, hash string, now time.Time, reason string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, hash string, now time.Time, reason string) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ActionTokenRepository stores single-use mailed tokens.
type ActionTokenRepository interface {
	Create(ctx context.Context, token *domain.ActionToken) error
	// Consume deletes the matching unexpired token and returns it.
	Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (*domain.ActionToken, error)
	DeleteForUser(ctx context.Context, userID string, purpose domain.TokenPurpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
	SendEmailVerification(ctx context.Context, email, link string) error
}

type EventPublisher interface {
	UserCreated(ctx context.Context, user *domain.User) error
	UserDeactivated(ctx context.Context, userID string) error
}
