package app

import (
	"context"
	"time"

	"github.com/JaiminPatel345/glowup-sub002/internal/usecase"
	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

// Sweeper periodically deletes expired refresh and action tokens.
type Sweeper struct {
	sessions *usecase.SessionRegistry
	actions  usecase.ActionTokenRepository
	interval time.Duration
	logger   pkglog.Logger
	now      func() time.Time
}

func NewSweeper(sessions *usecase.SessionRegistry, actions usecase.ActionTokenRepository, interval time.Duration, logger pkglog.Logger) *Sweeper {
	return &Sweeper{sessions: sessions, actions: actions, interval: interval, logger: logger, now: time.Now}
}

// Run sweeps every interval until ctx is done. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	sessions, err := s.sessions.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep refresh tokens")
	}
	actions, err := s.actions.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep action tokens")
	}
	if sessions+actions > 0 {
		s.logger.Debug().Int64("refresh_tokens", sessions).Int64("action_tokens", actions).Msg("expired tokens removed")
	}
}
