package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

// Conn is the subset of *nats.Conn used by the adapter.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ Conn = (*nats.Conn)(nil)

type Subjects struct {
	UserCreated     string
	UserDeactivated string
}

// EventPublisher announces account lifecycle changes to the user-profile service.
type EventPublisher struct {
	conn     Conn
	subjects Subjects
	now      func() time.Time
}

func NewEventPublisher(conn Conn, subjects Subjects) *EventPublisher {
	return &EventPublisher{conn: conn, subjects: subjects, now: time.Now}
}

type userCreatedEvent struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   *string   `json:"last_name,omitempty"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

type userDeactivatedEvent struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *EventPublisher) UserCreated(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, p.subjects.UserCreated, userCreatedEvent{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       string(user.Role),
		OccurredAt: p.now().UTC(),
	})
}

func (p *EventPublisher) UserDeactivated(ctx context.Context, userID string) error {
	return p.publish(ctx, p.subjects.UserDeactivated, userDeactivatedEvent{ID: userID, OccurredAt: p.now().UTC()})
}

func (p *EventPublisher) publish(ctx context.Context, subject string, payload interface{}) error {
	if p.conn == nil {
		return errors.New("nats connection is nil")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.conn.FlushWithContext(ctx)
}
