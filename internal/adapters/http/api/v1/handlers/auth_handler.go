package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/JaiminPatel345/glowup-sub002/internal/adapters/http/middleware"
	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
	res "github.com/JaiminPatel345/glowup-sub002/pkg/http"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const resetRequestedMessage = "If that email is registered, a reset link has been sent"

type AuthHandler struct {
	service        usecase.Service
	logger         pkglog.Logger
	exposeInternal bool
}

// NewAuthHandler builds the HTTP handlers. With exposeInternal set, 500 responses carry
// the underlying error text instead of a generic message.
func NewAuthHandler(s usecase.Service, logger pkglog.Logger, exposeInternal bool) *AuthHandler {
	return &AuthHandler{service: s, logger: logger, exposeInternal: exposeInternal}
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type updateProfileRequest struct {
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

type sessionResponse struct {
	User         domain.Profile `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
}

type validateResponse struct {
	Valid       bool                `json:"valid"`
	UserID      string              `json:"userId"`
	Email       string              `json:"email"`
	Role        domain.Role         `json:"role"`
	Permissions []domain.Permission `json:"permissions"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	req := new(registerRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	user, tokens, err := h.service.Register(c.Request().Context(), requestIDFromCtx(c), usecase.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusCreated, newSession(user, tokens))
}

func (h *AuthHandler) Login(c echo.Context) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	user, tokens, err := h.service.Login(c.Request().Context(), requestIDFromCtx(c), req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusOK, newSession(user, tokens))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	tokens, err := h.service.Refresh(c.Request().Context(), requestIDFromCtx(c), req.RefreshToken)
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusOK, tokens)
}

// Logout answers 200 for any body, including one that fails to parse.
func (h *AuthHandler) Logout(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err == nil {
		h.service.Logout(c.Request().Context(), requestIDFromCtx(c), req.RefreshToken)
	}
	return res.Message(c, http.StatusOK, "Logged out")
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	req := new(changePasswordRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	err := h.service.ChangePassword(c.Request().Context(), requestIDFromCtx(c), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, "Password changed")
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	req := new(resetPasswordRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.RequestPasswordReset(c.Request().Context(), requestIDFromCtx(c), req.Email); err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, resetRequestedMessage)
}

func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	req := new(confirmResetRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.ConfirmPasswordReset(c.Request().Context(), requestIDFromCtx(c), req.Token, req.NewPassword); err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, "Password has been reset")
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := new(verifyEmailRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	if err := h.service.VerifyEmail(c.Request().Context(), requestIDFromCtx(c), req.Token); err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, "Email verified")
}

func (h *AuthHandler) Validate(c echo.Context) error {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return h.respondError(c, domain.ErrUnauthorized)
	}
	result, err := h.service.VerifyToken(c.Request().Context(), requestIDFromCtx(c), token)
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusOK, validateResponse{
		Valid:       true,
		UserID:      result.UserID,
		Email:       result.Email,
		Role:        result.Role,
		Permissions: result.Permissions,
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.service.Me(c.Request().Context(), requestIDFromCtx(c), middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusOK, map[string]domain.Profile{"user": user.Profile()})
}

func (h *AuthHandler) UpdateMe(c echo.Context) error {
	req := new(updateProfileRequest)
	if err := c.Bind(req); err != nil {
		return badPayload(c)
	}
	user, err := h.service.UpdateProfile(c.Request().Context(), requestIDFromCtx(c), middleware.UserID(c), domain.ProfileUpdate{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return res.JSON(c, http.StatusOK, map[string]domain.Profile{"user": user.Profile()})
}

func (h *AuthHandler) DeleteMe(c echo.Context) error {
	if err := h.service.Deactivate(c.Request().Context(), requestIDFromCtx(c), middleware.UserID(c)); err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, "Account deactivated")
}

func (h *AuthHandler) DeactivateUser(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return h.respondError(c, domain.Validation("User id is required"))
	}
	if err := h.service.Deactivate(c.Request().Context(), requestIDFromCtx(c), id); err != nil {
		return h.respondError(c, err)
	}
	return res.Message(c, http.StatusOK, "Account deactivated")
}

// respondError translates a service error into its status code and envelope.
func (h *AuthHandler) respondError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := domain.PublicMessage(err)
	if kind == domain.KindInternal {
		h.logger.Error().Err(err).Str("trace_id", requestIDFromCtx(c)).Str("path", c.Path()).Msg("request failed")
		if h.exposeInternal {
			msg = err.Error()
		}
	}
	return res.ErrorJSON(c, status, msg)
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func newSession(user *domain.User, tokens *usecase.Tokens) sessionResponse {
	return sessionResponse{
		User:         user.Profile(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
}

func badPayload(c echo.Context) error {
	return res.ErrorJSON(c, http.StatusBadRequest, "Invalid request payload")
}

func requestIDFromCtx(c echo.Context) string {
	if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		return reqID
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
