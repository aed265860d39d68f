// Package memory keeps users and tokens in process memory. It backs local runs
// (AUTH_STORAGE=memory) and service tests; data is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[string]*domain.User{}, byEmail: map[string]string{}}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := r.byEmail[key]; taken {
		return domain.ErrDuplicateEmail
	}
	cp := *user
	r.users[user.ID] = &cp
	r.byEmail[key] = user.ID
	return nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !u.IsActive {
		return nil, domain.ErrDeactivated
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = nullable(*upd.LastName)
	}
	if upd.ProfileImageURL != nil {
		u.ProfileImageURL = nullable(*upd.ProfileImageURL)
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *UserRepository) SetPasswordHash(_ context.Context, id, hash string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.PasswordUpdatedAt = at
	})
}

func (r *UserRepository) MarkEmailVerified(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.EmailVerified = true })
}

func (r *UserRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.LastLoginAt = &at })
}

func (r *UserRepository) Deactivate(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) { u.IsActive = false })
}

// SetRole is used to seed administrators.
func (r *UserRepository) SetRole(id string, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) { u.Role = role })
}

func (r *UserRepository) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

type RefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: map[string]*domain.RefreshToken{}}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

func (r *RefreshTokenRepository) FindByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepository) Consume(_ context.Context, hash string, now time.Time, reason string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok || !t.Active(now) {
		return nil, domain.ErrNotFound
	}
	revoke(t, now, reason)
	cp := *t
	return &cp, nil
}

func (r *RefreshTokenRepository) Revoke(_ context.Context, hash string, now time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok && t.RevokedAt == nil {
		revoke(t, now, reason)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, now time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			revoke(t, now, reason)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.tokens {
		if !t.ExpiresAt.After(before) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

func revoke(t *domain.RefreshToken, now time.Time, reason string) {
	at := now
	why := reason
	t.RevokedAt = &at
	t.RevokedReason = &why
}

type ActionTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.ActionToken
}

func NewActionTokenRepository() *ActionTokenRepository {
	return &ActionTokenRepository{tokens: map[string]*domain.ActionToken{}}
}

func (r *ActionTokenRepository) Create(_ context.Context, token *domain.ActionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

func (r *ActionTokenRepository) Consume(_ context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (*domain.ActionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok || t.Purpose != purpose {
		return nil, domain.ErrNotFound
	}
	delete(r.tokens, hash)
	if !now.Before(t.ExpiresAt) {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *ActionTokenRepository) DeleteForUser(_ context.Context, userID string, purpose domain.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose {
			delete(r.tokens, hash)
		}
	}
	return nil
}

func (r *ActionTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.tokens {
		if !t.ExpiresAt.After(before) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
