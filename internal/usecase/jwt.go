package usecase

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JaiminPatel345/glowup-sub002/config"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccessClaims is the identity embedded in an access token.
type AccessClaims struct {
	UserID      string
	Email       string
	Role        domain.Role
	Permissions []domain.Permission
}

type JWTSigner interface {
	SignAccessToken(claims AccessClaims, ttl time.Duration) (string, error)
	SignRefreshToken(subject, jti string, ttl time.Duration) (string, error)
	Parse(token string) (*jwt.Token, jwt.MapClaims, error)
}

type SignerOption func(*jwtSigner)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) SignerOption {
	return func(s *jwtSigner) { s.now = now }
}

type jwtSigner struct {
	cfg       *config.Config
	hmacKey   []byte
	private   *rsa.PrivateKey
	publicKey *rsa.PublicKey
	now       func() time.Time
}

func NewJWTSigner(cfg *config.Config, opts ...SignerOption) (JWTSigner, error) {
	s := &jwtSigner{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.JWTSecret != "" {
		s.hmacKey = []byte(cfg.JWTSecret)
		return s, nil
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKey))
		if err != nil {
			return nil, err
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, err
		}
		s.private = priv
		s.publicKey = pub
		return s, nil
	}
	return nil, errors.New("jwt secret or key pair required")
}

func (s *jwtSigner) SignAccessToken(claims AccessClaims, ttl time.Duration) (string, error) {
	perms := make([]string, 0, len(claims.Permissions))
	for _, p := range claims.Permissions {
		perms = append(perms, string(p))
	}
	std := s.baseClaims(claims.UserID, uuid.NewString(), tokenTypeAccess, ttl)
	std["email"] = claims.Email
	std["role"] = string(claims.Role)
	std["permissions"] = perms
	return s.sign(jwt.NewWithClaims(jwt.GetSigningMethod(s.method()), std))
}

func (s *jwtSigner) SignRefreshToken(subject, jti string, ttl time.Duration) (string, error) {
	std := s.baseClaims(subject, jti, tokenTypeRefresh, ttl)
	return s.sign(jwt.NewWithClaims(jwt.GetSigningMethod(s.method()), std))
}

func (s *jwtSigner) baseClaims(subject, jti, typ string, ttl time.Duration) jwt.MapClaims {
	now := s.now().UTC()
	return jwt.MapClaims{
		"sub": subject,
		"jti": jti,
		"typ": typ,
		"iss": s.cfg.JWTIssuer,
		"aud": s.cfg.JWTAudience,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
}

func (s *jwtSigner) Parse(tokenStr string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithAudience(s.cfg.JWTAudience),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithLeeway(s.cfg.JWTLeeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{s.method()}),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if s.hmacKey != nil {
			return s.hmacKey, nil
		}
		return s.publicKey, nil
	})
	return token, claims, err
}

func (s *jwtSigner) sign(token *jwt.Token) (string, error) {
	if s.hmacKey != nil {
		return token.SignedString(s.hmacKey)
	}
	if s.private == nil {
		return "", errors.New("private key not configured")
	}
	return token.SignedString(s.private)
}

func (s *jwtSigner) method() string {
	if s.hmacKey != nil {
		return jwt.SigningMethodHS256.Alg()
	}
	return jwt.SigningMethodRS256.Alg()
}
