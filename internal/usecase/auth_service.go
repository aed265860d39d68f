package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaiminPatel345/glowup-sub002/config"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/password"
	"github.com/JaiminPatel345/glowup-sub002/internal/tokenverify"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const (
	maxEmailLength = 255
	maxNameLength  = 100
	maxURLLength   = 2048
)

type VerificationResult = tokenverify.Result

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  *string
}

type Service interface {
	Register(ctx context.Context, traceID string, in RegisterInput) (*domain.User, *Tokens, error)
	Login(ctx context.Context, traceID, email, password string) (*domain.User, *Tokens, error)
	Refresh(ctx context.Context, traceID, refreshToken string) (*Tokens, error)
	// Logout always succeeds; revocation problems are logged, not returned.
	Logout(ctx context.Context, traceID, refreshToken string)
	ChangePassword(ctx context.Context, traceID, userID, currentPassword, newPassword string) error
	// RequestPasswordReset answers the same way whether or not the email is registered.
	RequestPasswordReset(ctx context.Context, traceID, email string) error
	ConfirmPasswordReset(ctx context.Context, traceID, token, newPassword string) error
	VerifyEmail(ctx context.Context, traceID, token string) error
	VerifyToken(ctx context.Context, traceID, token string) (*VerificationResult, error)
	Me(ctx context.Context, traceID, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, traceID, userID string, upd domain.ProfileUpdate) (*domain.User, error)
	Deactivate(ctx context.Context, traceID, userID string) error
}

type authService struct {
	cfg      *config.Config
	logger   pkglog.Logger
	users    UserRepository
	sessions *SessionRegistry
	actions  ActionTokenRepository
	hasher   *password.Hasher
	mailer   Mailer
	events   EventPublisher
	signer   JWTSigner
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(cfg *config.Config, logger pkglog.Logger, users UserRepository, sessions *SessionRegistry, actions ActionTokenRepository, hasher *password.Hasher, mailer Mailer, events EventPublisher, signer JWTSigner) Service {
	return &authService{cfg: cfg, logger: logger, users: users, sessions: sessions, actions: actions, hasher: hasher, mailer: mailer, events: events, signer: signer, now: time.Now}
}

func (s *authService) Register(ctx context.Context, traceID string, in RegisterInput) (*domain.User, *Tokens, error) {
	norm := normalizeEmail(in.Email)
	if err := validateEmail(norm); err != nil {
		return nil, nil, err
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, nil, err
	}
	firstName := strings.TrimSpace(in.FirstName)
	if len(firstName) > maxNameLength {
		return nil, nil, domain.Validation("First name is too long")
	}
	lastName, err := normalizeOptional(in.LastName, maxNameLength, "Last name is too long")
	if err != nil {
		return nil, nil, err
	}
	role, err := domain.ParseRole(s.cfg.DefaultRole)
	if err != nil {
		role = domain.RoleUser
	}

	if _, err := s.users.FindByEmail(ctx, norm); err == nil {
		return nil, nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.Internal("lookup user", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, domain.Internal("register", err)
	}
	now := s.now()
	user := &domain.User{
		ID:                uuid.NewString(),
		Email:             norm,
		PasswordHash:      hash,
		FirstName:         firstName,
		LastName:          lastName,
		Role:              role,
		IsActive:          true,
		PasswordUpdatedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, nil, domain.ErrDuplicateEmail
		}
		return nil, nil, domain.Internal("create user", err)
	}

	s.sendVerification(ctx, traceID, user)
	if s.events != nil {
		if err := s.events.UserCreated(ctx, user); err != nil {
			s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("publish user created")
		}
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("user registered")
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, traceID, email, plain string) (*domain.User, *Tokens, error) {
	norm := normalizeEmail(email)
	if norm == "" || plain == "" {
		return nil, nil, domain.Validation("Email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, norm)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.Internal("lookup user", err)
		}
		// Burn the same bcrypt work as a real comparison.
		_, _ = s.hasher.Verify(plain, s.dummy())
		s.logger.Info().Str("trace_id", traceID).Msg("signin failed")
		return nil, nil, domain.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(plain, user.PasswordHash)
	if err != nil || !ok || !user.IsActive {
		s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("signin failed")
		return nil, nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("update last login")
	} else {
		user.LastLoginAt = &now
	}
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("signin")
	return user, tokens, nil
}

func (s *authService) Refresh(ctx context.Context, traceID, refreshToken string) (*Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.ErrUnauthorized
	}
	sub, jti, ok := s.parseRefresh(refreshToken)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	owner, err := s.sessions.Redeem(ctx, jti)
	if err != nil {
		return nil, err
	}
	if owner != sub {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, sub)
	if err != nil || !user.IsActive {
		return nil, domain.ErrUnauthorized
	}
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("tokens refreshed")
	return tokens, nil
}

func (s *authService) Logout(ctx context.Context, traceID, refreshToken string) {
	_, jti, ok := s.parseRefresh(refreshToken)
	if !ok {
		// Expired or forged: nothing redeemable to revoke.
		return
	}
	s.sessions.Revoke(ctx, jti)
	s.logger.Info().Str("trace_id", traceID).Msg("signout")
}

func (s *authService) ChangePassword(ctx context.Context, traceID, userID, currentPassword, newPassword string) error {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return domain.Internal("verify password", err)
	}
	if !ok {
		return domain.ErrWrongPassword
	}
	if err := password.Validate(newPassword); err != nil {
		return err
	}
	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, user.ID, domain.RevokePasswordChanged); err != nil {
		s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("revoke sessions after password change")
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("password changed")
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, traceID, email string) error {
	norm := normalizeEmail(email)
	if err := validateEmail(norm); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, norm)
	if err != nil || !user.IsActive {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("trace_id", traceID).Msg("password reset lookup")
		}
		return nil
	}
	if err := s.actions.DeleteForUser(ctx, user.ID, domain.PurposePasswordReset); err != nil {
		s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("drop previous reset tokens")
	}
	raw, err := s.createActionToken(ctx, user.ID, domain.PurposePasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("create reset token")
		return nil
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, s.link("reset-password", raw)); err != nil {
			s.logger.Error().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("send reset mail")
		}
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("password reset start")
	return nil
}

func (s *authService) ConfirmPasswordReset(ctx context.Context, traceID, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrInvalidActionToken
	}
	if err := password.Validate(newPassword); err != nil {
		return err
	}
	rec, err := s.actions.Consume(ctx, hashToken(token), domain.PurposePasswordReset, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidActionToken
		}
		return domain.Internal("consume reset token", err)
	}
	user, err := s.activeUser(ctx, rec.UserID)
	if err != nil {
		return domain.ErrInvalidActionToken
	}
	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, user.ID, domain.RevokePasswordChanged); err != nil {
		s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("revoke sessions after password reset")
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", user.ID).Msg("password reset finished")
	return nil
}

func (s *authService) VerifyEmail(ctx context.Context, traceID, token string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrInvalidActionToken
	}
	rec, err := s.actions.Consume(ctx, hashToken(token), domain.PurposeEmailVerification, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidActionToken
		}
		return domain.Internal("consume verification token", err)
	}
	if err := s.users.MarkEmailVerified(ctx, rec.UserID); err != nil {
		return domain.Internal("mark email verified", err)
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", rec.UserID).Msg("email verified")
	return nil
}

func (s *authService) VerifyToken(ctx context.Context, traceID, token string) (*VerificationResult, error) {
	result, err := tokenverify.Verify(s.signer, token, s.now)
	if err != nil {
		return nil, tokenverify.Unauthorized(err)
	}
	s.logger.Debug().Str("trace_id", traceID).Str("user_id", result.UserID).Msg("token verified")
	return result, nil
}

func (s *authService) Me(ctx context.Context, _ string, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Internal("lookup user", err)
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, traceID, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	if upd.Empty() {
		return nil, domain.Validation("Nothing to update")
	}
	if upd.FirstName != nil {
		v := strings.TrimSpace(*upd.FirstName)
		if v == "" || len(v) > maxNameLength {
			return nil, domain.Validation("First name must be between 1 and 100 characters")
		}
		upd.FirstName = &v
	}
	if upd.LastName != nil {
		v := strings.TrimSpace(*upd.LastName)
		if len(v) > maxNameLength {
			return nil, domain.Validation("Last name is too long")
		}
		upd.LastName = &v
	}
	if upd.ProfileImageURL != nil {
		if err := validateImageURL(*upd.ProfileImageURL); err != nil {
			return nil, err
		}
	}
	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDeactivated):
			return nil, err
		}
		return nil, domain.Internal("update profile", err)
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", userID).Msg("profile updated")
	return user, nil
}

func (s *authService) Deactivate(ctx context.Context, traceID, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.Internal("deactivate user", err)
	}
	if err := s.sessions.RevokeAll(ctx, userID, domain.RevokeDeactivated); err != nil {
		s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", userID).Msg("revoke sessions after deactivation")
	}
	if s.events != nil {
		if err := s.events.UserDeactivated(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("trace_id", traceID).Str("user_id", userID).Msg("publish user deactivated")
		}
	}
	s.logger.Info().Str("trace_id", traceID).Str("user_id", userID).Msg("user deactivated")
	return nil
}

func (s *authService) issueTokens(ctx context.Context, user *domain.User) (*Tokens, error) {
	access, err := s.signer.SignAccessToken(AccessClaims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: domain.PermissionsFor(user.Role),
	}, s.cfg.AccessTTL)
	if err != nil {
		return nil, domain.Internal("sign access token", err)
	}
	jti := uuid.NewString()
	refresh, err := s.signer.SignRefreshToken(user.ID, jti, s.cfg.RefreshTTL)
	if err != nil {
		return nil, domain.Internal("sign refresh token", err)
	}
	if err := s.sessions.Register(ctx, user.ID, jti, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return nil, domain.Internal("issue tokens", err)
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

func (s *authService) parseRefresh(token string) (sub, jti string, ok bool) {
	tok, claims, err := s.signer.Parse(token)
	if err != nil || tok == nil || !tok.Valid {
		return "", "", false
	}
	if typ, _ := claims["typ"].(string); typ != tokenTypeRefresh {
		return "", "", false
	}
	sub, _ = claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	return sub, jti, sub != "" && jti != ""
}

func (s *authService) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Internal("lookup user", err)
	}
	if !user.IsActive {
		return nil, domain.ErrDeactivated
	}
	return user, nil
}

func (s *authService) setPassword(ctx context.Context, userID, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return domain.Internal("hash password", err)
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash, s.now()); err != nil {
		return domain.Internal("store password", err)
	}
	return nil
}

func (s *authService) createActionToken(ctx context.Context, userID string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	raw, err := generateActionToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	rec := &domain.ActionToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.actions.Create(ctx, rec); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *authService) sendVerification(ctx context.Context, traceID string, user *domain.User) {
	raw, err := s.createActionToken(ctx, user.ID, domain.PurposeEmailVerification, s.cfg.VerifyTokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("create verification token")
		return
	}
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendEmailVerification(ctx, user.Email, s.link("verify-email", raw)); err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Str("user_id", user.ID).Msg("send verification mail")
	}
}

func (s *authService) link(path, token string) string {
	return fmt.Sprintf("%s/%s?token=%s", strings.TrimRight(s.cfg.PublicAppURL, "/"), path, url.QueryEscape(token))
}

func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validateEmail(email string) error {
	if email == "" {
		return domain.Validation("Email is required")
	}
	if len(email) > maxEmailLength {
		return domain.Validation("Email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Validation("Email is invalid")
	}
	return nil
}

func validateImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxURLLength {
		return domain.Validation("Profile image URL is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Validation("Profile image URL is invalid")
	}
	return nil
}

func normalizeOptional(v *string, max int, msg string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > max {
		return nil, domain.Validation(msg)
	}
	return &trimmed, nil
}
