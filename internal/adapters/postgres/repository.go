package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
)

const uniqueViolation = "23505"

type authUserRepo struct{ db *gorm.DB }

type refreshTokenRepo struct{ db *gorm.DB }

type actionTokenRepo struct{ db *gorm.DB }

func NewAuthUserRepository(db *gorm.DB) usecase.UserRepository { return &authUserRepo{db: db} }
func NewRefreshTokenRepository(db *gorm.DB) usecase.RefreshTokenRepository {
	return &refreshTokenRepo{db: db}
}
func NewActionTokenRepository(db *gorm.DB) usecase.ActionTokenRepository {
	return &actionTokenRepo{db: db}
}

func (r *authUserRepo) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *authUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("lower(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *authUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateProfile changes only active users, in one conditional statement.
func (r *authUserRepo) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	fields := map[string]interface{}{}
	if upd.FirstName != nil {
		fields["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		fields["last_name"] = nullable(*upd.LastName)
	}
	if upd.ProfileImageURL != nil {
		fields["profile_image_url"] = nullable(*upd.ProfileImageURL)
	}
	var user domain.User
	res := r.db.WithContext(ctx).Model(&user).Clauses(clause.Returning{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !existing.IsActive {
			return nil, domain.ErrDeactivated
		}
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *authUserRepo) SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"password_hash": hash, "password_updated_at": at})
}

func (r *authUserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]interface{}{"email_verified": true})
}

func (r *authUserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"last_login_at": at})
}

func (r *authUserRepo) Deactivate(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]interface{}{"is_active": false})
}

func (r *authUserRepo) update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *refreshTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *refreshTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

// Consume is a compare-and-set: of two concurrent calls for the same hash only one
// sees an affected row.
func (r *refreshTokenRepo) Consume(ctx context.Context, hash string, now time.Time, reason string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	res := r.db.WithContext(ctx).Model(&token).Clauses(clause.Returning{}).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
		Updates(map[string]interface{}{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return &token, nil
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, hash string, now time.Time, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Updates(map[string]interface{}{"revoked_at": now, "revoked_reason": reason}).Error
}

func (r *refreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]interface{}{"revoked_at": now, "revoked_reason": reason})
	return res.RowsAffected, res.Error
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *actionTokenRepo) Create(ctx context.Context, token *domain.ActionToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// Consume deletes the token whether or not it has expired, so a stale token is
// purged on first presentation.
func (r *actionTokenRepo) Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (*domain.ActionToken, error) {
	var token domain.ActionToken
	res := r.db.WithContext(ctx).Clauses(clause.Returning{}).
		Where("token_hash = ? AND purpose = ?", hash, purpose).
		Delete(&token)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || !now.Before(token.ExpiresAt) {
		return nil, domain.ErrNotFound
	}
	return &token, nil
}

func (r *actionTokenRepo) DeleteForUser(ctx context.Context, userID string, purpose domain.TokenPurpose) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND purpose = ?", userID, purpose).Delete(&domain.ActionToken{}).Error
}

func (r *actionTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&domain.ActionToken{})
	return res.RowsAffected, res.Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
