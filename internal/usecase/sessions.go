package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const revokeReuseDetected = "reuse_detected"

// SessionRegistry binds refresh tokens to users. A token is redeemable once:
// ISSUED -> REDEEMED | REVOKED | EXPIRED, with no way back to ISSUED.
type SessionRegistry struct {
	repo       RefreshTokenRepository
	logger     pkglog.Logger
	now        func() time.Time
	reuseGrace time.Duration
}

type RegistryOption func(*SessionRegistry)

// WithReuseGrace treats a rotated token presented again within d of its rotation
// as a lost race rather than a replay, so the winner's new session survives.
func WithReuseGrace(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) { r.reuseGrace = d }
}

func NewSessionRegistry(repo RefreshTokenRepository, logger pkglog.Logger, opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SessionRegistry) Register(ctx context.Context, userID, jti string, expiresAt time.Time) error {
	rec := &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(jti),
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// Redeem invalidates the session for jti and returns its owner. Concurrent redemptions
// of the same token race on one conditional update; only the first succeeds.
// Presenting an already rotated token revokes every session of its owner, unless
// it was rotated less than the reuse grace ago.
func (r *SessionRegistry) Redeem(ctx context.Context, jti string) (string, error) {
	hash := hashToken(jti)
	rec, err := r.repo.Consume(ctx, hash, r.now(), domain.RevokeRotated)
	if err == nil {
		return rec.UserID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", domain.Internal("redeem session", err)
	}

	if prev, ferr := r.repo.FindByHash(ctx, hash); ferr == nil && prev.RevokedReason != nil && *prev.RevokedReason == domain.RevokeRotated {
		if prev.RevokedAt != nil && r.now().Sub(*prev.RevokedAt) < r.reuseGrace {
			r.logger.Info().Str("user_id", prev.UserID).Msg("rotated refresh token presented within grace period")
			return "", domain.ErrUnauthorized
		}
		n, rerr := r.repo.RevokeAllForUser(ctx, prev.UserID, r.now(), revokeReuseDetected)
		if rerr != nil {
			r.logger.Error().Err(rerr).Str("user_id", prev.UserID).Msg("revoke sessions after refresh token reuse")
		} else {
			r.logger.Warn().Str("user_id", prev.UserID).Int64("revoked", n).Msg("refresh token reuse detected")
		}
	}
	return "", domain.ErrUnauthorized
}

// Revoke ends the session for jti. It never fails from the caller's point of view:
// unknown, expired, and already revoked tokens are all fine.
func (r *SessionRegistry) Revoke(ctx context.Context, jti string) {
	if jti == "" {
		return
	}
	if err := r.repo.Revoke(ctx, hashToken(jti), r.now(), domain.RevokeLogout); err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn().Err(err).Msg("revoke refresh token")
	}
}

func (r *SessionRegistry) RevokeAll(ctx context.Context, userID, reason string) error {
	if _, err := r.repo.RevokeAllForUser(ctx, userID, r.now(), reason); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// Sweep deletes sessions that expired before now.
func (r *SessionRegistry) Sweep(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpired(ctx, r.now())
}
