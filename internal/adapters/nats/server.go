package natsadapter

import (
	"encoding/json"
	"errors"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
	"github.com/JaiminPatel345/glowup-sub002/internal/tokenverify"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

// VerifyHandler answers token verification requests from other services.
type VerifyHandler struct {
	parser    tokenverify.Parser
	logger    pkglog.Logger
	now       func() time.Time
	respondFn func(msg *nats.Msg, resp verifyResponse)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid       bool                `json:"valid"`
	UserID      string              `json:"user_id,omitempty"`
	Email       string              `json:"email,omitempty"`
	Role        domain.Role         `json:"role,omitempty"`
	Permissions []domain.Permission `json:"permissions,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func NewVerifyHandler(parser tokenverify.Parser, logger pkglog.Logger) *VerifyHandler {
	return &VerifyHandler{parser: parser, logger: logger, now: time.Now, respondFn: respond}
}

func (h *VerifyHandler) Subscribe(conn *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	if conn == nil {
		return nil, errors.New("nats connection is nil")
	}
	return conn.QueueSubscribe(subject, queue, h.handle)
}

func (h *VerifyHandler) handle(msg *nats.Msg) {
	var req verifyRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.respondFn(msg, verifyResponse{Error: "invalid_payload"})
		return
	}
	result, err := tokenverify.Verify(h.parser, req.Token, h.now)
	if err != nil {
		h.logger.Debug().Err(err).Str("subject", msg.Subject).Msg("token rejected")
		h.respondFn(msg, verifyResponse{Error: domain.KindUnauthorized.String()})
		return
	}
	h.respondFn(msg, verifyResponse{
		Valid:       true,
		UserID:      result.UserID,
		Email:       result.Email,
		Role:        result.Role,
		Permissions: result.Permissions,
	})
}

func respond(msg *nats.Msg, resp verifyResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
