package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/store"
	"github.com/zym9863/Dream-s-Exit/internal/validate"
)

// MemoryService orchestrates memory journal use cases.
type MemoryService struct {
	store store.Store
	log   zerolog.Logger
}

func NewMemoryService(s store.Store, log zerolog.Logger) *MemoryService {
	return &MemoryService{store: s, log: log.With().Str("component", "memories").Logger()}
}

// List returns every entry, newest first.
func (s *MemoryService) List(ctx context.Context) ([]*model.MemoryEntry, error) {
	res, err := s.store.Memories().List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list memories failed")
		return nil, err
	}
	return res, nil
}

func (s *MemoryService) Get(ctx context.Context, id string) (*model.MemoryEntry, error) {
	if err := validate.ID(id); err != nil {
		return nil, err
	}
	m, err := s.store.Memories().Get(ctx, id)
	if err != nil {
		s.logFailure(err, id, "get memory failed")
		return nil, err
	}
	return m, nil
}

// Create validates f and stores a new entry owned by owner. An empty owner
// records an anonymous entry.
func (s *MemoryService) Create(ctx context.Context, owner string, f model.MemoryFields) (*model.MemoryEntry, error) {
	if err := validate.MemoryFields(f); err != nil {
		return nil, err
	}
	m, err := s.store.Memories().Create(ctx, owner, f)
	if err != nil {
		s.log.Error().Err(err).Msg("create memory failed")
		return nil, err
	}
	s.log.Debug().Str("memory_id", m.ID).Bool("anonymous", owner == "").Msg("memory created")
	return m, nil
}

// Update rewrites the editable fields of id. Owner and creation time are kept.
func (s *MemoryService) Update(ctx context.Context, id string, f model.MemoryFields) (*model.MemoryEntry, error) {
	if err := validate.ID(id); err != nil {
		return nil, err
	}
	if err := validate.MemoryFields(f); err != nil {
		return nil, err
	}
	m, err := s.store.Memories().Update(ctx, id, f)
	if err != nil {
		s.logFailure(err, id, "update memory failed")
		return nil, err
	}
	s.log.Debug().Str("memory_id", m.ID).Msg("memory updated")
	return m, nil
}

// Delete removes id and reports how many rows went away. Deleting an unknown
// id is not an error.
func (s *MemoryService) Delete(ctx context.Context, id string) (int64, error) {
	if err := validate.ID(id); err != nil {
		return 0, err
	}
	n, err := s.store.Memories().Delete(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("memory_id", id).Msg("delete memory failed")
		return 0, err
	}
	s.log.Debug().Str("memory_id", id).Int64("rows", n).Msg("memory deleted")
	return n, nil
}

// logFailure keeps misses out of the error log.
func (s *MemoryService) logFailure(err error, id, msg string) {
	if model.IsNotFound(err) {
		s.log.Debug().Str("memory_id", id).Msg("memory not found")
		return
	}
	s.log.Error().Err(err).Str("memory_id", id).Msg(msg)
}
