package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JaiminPatel345/glowup-sub002/config"
	httpadapter "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http"
	apiv1 "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/api/v1/handlers"
	authmw "github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/middleware"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/mailer"
	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/memory"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/password"
	"github.com/JaiminPatel345/glowup-sub002/internal/ratelimit"
	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const strongPassword = "Str0ng!Pass"

type server struct {
	e     *echo.Echo
	users *memory.UserRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		HTTPBasePath:     "/api/v1",
		CORSAllowOrigins: []string{"*"},
		JWTSecret:        "test-secret",
		JWTIssuer:        "auth-service",
		JWTAudience:      "mobile",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		VerifyTokenTTL:   24 * time.Hour,
		PublicAppURL:     "glowup://auth",
		DefaultRole:      "user",
	}
	logger := pkglog.Nop()
	users := memory.NewUserRepository()
	signer, err := usecase.NewJWTSigner(cfg)
	require.NoError(t, err)
	svc := usecase.NewAuthService(cfg, logger, users,
		usecase.NewSessionRegistry(memory.NewRefreshTokenRepository(), logger),
		memory.NewActionTokenRepository(), password.NewHasher(bcrypt.MinCost),
		mailer.NewLogMailer(logger), nil, signer)

	limits := apiv1.Limits{
		Login:    authmw.FailureRateLimit(ratelimit.NewWindow(15*time.Minute, 5), authmw.ByIP("login")),
		Register: authmw.RateLimit(ratelimit.NewWindow(time.Hour, 3), authmw.ByIP("register")),
		Reset:    authmw.RateLimit(ratelimit.NewWindow(time.Hour, 3), authmw.ByIP("reset")),
	}
	api := apiv1.NewRouter(handlers.NewAuthHandler(svc, logger, false), authmw.NewAuthMiddleware(signer).Handler, limits)
	general := authmw.GeneralRateLimit(ratelimit.NewWindow(15*time.Minute, 1000))

	e := echo.New()
	httpadapter.NewRouter(cfg, logger, api, general, nil).Setup(e)
	return &server{e: e, users: users}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "192.0.2.10:4000"
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

type session struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *server) register(t *testing.T, email string) session {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": email, "password": strongPassword, "firstName": "Ada"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var out session
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newServer(t)
	reg := s.register(t, "ada@example.com")

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": strongPassword})
	require.Equal(t, http.StatusOK, code, env.Error)
	var login session
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, reg.User.ID, login.User.ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"email":"ada@example.com"`)
	assert.NotContains(t, string(env.Data), "password")

	code, env = s.do(t, http.MethodGet, "/api/v1/auth/validate", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"valid":true`)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, code, env.Error)
	var rotated session
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code, "a rotated token is dead")

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesNeedBearer(t *testing.T) {
	s := newServer(t)
	reg := s.register(t, "ada@example.com")

	for _, bearer := range []string{"", "garbage", reg.RefreshToken} {
		code, env := s.do(t, http.MethodGet, "/api/v1/auth/me", bearer, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.False(t, env.Success)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "ADA@example.com", "password": strongPassword})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email is already registered", env.Error)
}

func TestRegisterRateLimit(t *testing.T) {
	s := newServer(t)
	for i := 0; i < 3; i++ {
		code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "bad", "password": "x"})
		require.Equal(t, http.StatusBadRequest, code)
	}
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "bad", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, domain.ErrRateLimited.Msg, env.Error)
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "Wr0ng!Pass"})
		require.Equal(t, http.StatusUnauthorized, code)
		require.Equal(t, "Invalid email or password", env.Error)
	}
	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": strongPassword})
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestChangePasswordSignsOutOtherSessions(t *testing.T) {
	s := newServer(t)
	reg := s.register(t, "ada@example.com")

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": "Wr0ng!Pass", "newPassword": "N3w!Password"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.ErrWrongPassword.Msg, env.Error)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": strongPassword, "newPassword": "N3w!Password"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminDeactivation(t *testing.T) {
	s := newServer(t)
	target := s.register(t, "ada@example.com")
	admin := s.register(t, "root@example.com")
	require.NoError(t, s.users.SetRole(admin.User.ID, domain.RoleAdmin))

	path := "/api/v1/users/" + target.User.ID + "/deactivate"
	code, _ := s.do(t, http.MethodPost, path, target.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code, "plain users lack users:manage")

	// Role is read from the token, so the admin signs in again.
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "root@example.com", "password": strongPassword})
	require.Equal(t, http.StatusOK, code)
	var adminSession session
	require.NoError(t, json.Unmarshal(env.Data, &adminSession))

	code, _ = s.do(t, http.MethodPost, path, adminSession.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": strongPassword})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email or password", env.Error)
	code, _ = s.do(t, http.MethodPatch, "/api/v1/auth/me", target.AccessToken, map[string]string{"firstName": "Eve"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestDeleteMe(t *testing.T) {
	s := newServer(t)
	reg := s.register(t, "ada@example.com")

	code, _ := s.do(t, http.MethodDelete, "/api/v1/auth/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/v1/auth/me", reg.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}
