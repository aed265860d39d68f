package tokenverify

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrTokenExpired   = errors.New("token_expired")
	ErrSubjectMissing = errors.New("subject_missing")
)

type Parser interface {
	Parse(token string) (*jwt.Token, jwt.MapClaims, error)
}

type Result struct {
	UserID      string
	Email       string
	Role        domain.Role
	Permissions []domain.Permission
	ExpiresAt   time.Time
	Claims      map[string]any
}

// Verify parses and validates an access token, returning the identity it carries and the
// remaining claims (without sub/email/role/permissions). Refresh tokens are rejected.
func Verify(parser Parser, token string, nowFn func() time.Time) (*Result, error) {
	if parser == nil || token == "" {
		return nil, ErrInvalidToken
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	tok, claims, err := parser.Parse(token)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || tok == nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if typ, ok := claims["typ"].(string); ok && typ != "access" {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || nowFn().After(exp.Time) {
		return nil, ErrTokenExpired
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrSubjectMissing
	}
	email, _ := claims["email"].(string)
	role, err := domain.ParseRole(stringClaim(claims, "role", string(domain.RoleUser)))
	if err != nil {
		return nil, ErrInvalidToken
	}

	filtered := map[string]any{}
	for k, v := range claims {
		switch k {
		case "sub", "email", "role", "permissions":
			continue
		}
		filtered[k] = v
	}
	return &Result{
		UserID:      sub,
		Email:       email,
		Role:        role,
		Permissions: permissionsClaim(claims["permissions"]),
		ExpiresAt:   exp.Time,
		Claims:      filtered,
	}, nil
}

// Unauthorized collapses every verification failure into one client-facing error so
// callers cannot tell a forged token from an expired one.
func Unauthorized(err error) error {
	if err == nil {
		return nil
	}
	return domain.ErrUnauthorized
}

func stringClaim(claims jwt.MapClaims, key, def string) string {
	if v, ok := claims[key].(string); ok && v != "" {
		return v
	}
	return def
}

func permissionsClaim(v any) []domain.Permission {
	switch raw := v.(type) {
	case []any:
		out := make([]domain.Permission, 0, len(raw))
		for _, p := range raw {
			if s, ok := p.(string); ok {
				out = append(out, domain.Permission(s))
			}
		}
		return out
	case []string:
		out := make([]domain.Permission, 0, len(raw))
		for _, s := range raw {
			out = append(out, domain.Permission(s))
		}
		return out
	}
	return nil
}
