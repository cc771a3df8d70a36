package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/validate"
)

// EchoService handles the anonymous message board.
type EchoService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewEchoService(s store.Store, log zerolog.Logger) *EchoService {
	return &EchoService{store: s, log: log.With().Str("component", "echoes").Logger(), now: time.Now}
}

// WithClock replaces the time used to decide which echoes are still visible.
func (s *EchoService) WithClock(now func() time.Time) *EchoService {
	s.now = now
	return s
}

// Now returns the service clock.
func (s *EchoService) Now() time.Time { return s.now() }

// List returns at most model.EchoListLimit unexpired echoes, newest first.
// Expired rows are filtered, not deleted.
func (s *EchoService) List(ctx context.Context) ([]*model.EchoEntry, error) {
	now := s.now()
	rows, err := s.store.Echoes().ListActive(ctx, now, model.EchoListLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("list echoes failed")
		return nil, err
	}
	res := make([]*model.EchoEntry, 0, len(rows))
	for _, e := range rows {
		if e.Visible(now) {
			res = append(res, e)
		}
	}
	return res, nil
}

// Create posts content anonymously. Surrounding whitespace is dropped before
// the length check and before storage.
func (s *EchoService) Create(ctx context.Context, content string) (*model.EchoEntry, error) {
	content = strings.TrimSpace(content)
	if err := validate.EchoContent(content); err != nil {
		return nil, err
	}
	e, err := s.store.Echoes().Create(ctx, content)
	if err != nil {
		s.log.Error().Err(err).Msg("create echo failed")
		return nil, err
	}
	s.log.Debug().Str("echo_id", e.ID).Time("expires_at", e.ExpiresAt).Msg("echo created")
	return e, nil
}
