package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

// Sweeper reaps idle sessions so the session store does not grow without
// bound. Users with a live connection are never reaped.
type Sweeper struct {
	Registry *Registry
	Sessions core.SessionStore
	TTL      time.Duration
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.TTL)
	active := s.Registry.ActiveUserIDs()

	var stale []domain.UserID
	err := s.Sessions.Iterate(ctx, func(sess *domain.Session) bool {
		if _, live := active[sess.UserID]; live {
			return true
		}
		if sess.LastSeen.Before(cutoff) {
			stale = append(stale, sess.UserID)
		}
		return true
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.sweeper").Msg("session iterate failed")
		return
	}

	for _, uid := range stale {
		if err := s.Sessions.Delete(ctx, uid); err != nil {
			log.Error().Err(err).Str("module", "app.sweeper").Str("user", string(uid)).Msg("session delete failed")
		}
	}
	if len(stale) > 0 {
		log.Info().Str("module", "app.sweeper").Int("reaped", len(stale)).Msg("idle sessions swept")
	}
}
