// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Store is the in-memory rank cache backed by a RankRepository.
//
// Thread-safety: the internal map is protected by mu. Reads vastly outnumber
// writes (permission checks happen per game action), so lookups take the
// read lock only.
type Store struct {
	repo  RankRepository
	mu    sync.RWMutex
	ranks map[string]*Rank
}

// NewStore creates an empty store over the given repository. Call Load
// before first use.
func NewStore(repo RankRepository) *Store {
	return &Store{
		repo:  repo,
		ranks: make(map[string]*Rank),
	}
}

// Load populates the cache from persistence. If no persisted rank has
// IsDefault set, a synthetic default rank is created and persisted so the
// exactly-one-default invariant holds from startup.
func (s *Store) Load(ctx context.Context) error {
	persisted, err := s.repo.FindAll(ctx)
	if err != nil {
		return oops.In("rank").Code("STORE_LOAD_FAILED").Wrap(err)
	}

	ranks := make(map[string]*Rank, len(persisted))
	hasDefault := false
	for _, r := range persisted {
		ranks[r.ID] = r
		if r.IsDefault {
			hasDefault = true
		}
	}

	if !hasDefault {
		def := NewDefaultRank()
		if saveErr := s.repo.Save(ctx, def); saveErr != nil {
			return oops.In("rank").Code("STORE_LOAD_FAILED").
				With("operation", "persist synthetic default rank").
				Wrap(saveErr)
		}
		ranks[def.ID] = def
		slog.Info("no default rank in persistence, created synthetic default",
			"rank_id", def.ID)
	}

	s.mu.Lock()
	s.ranks = ranks
	s.mu.Unlock()
	return nil
}

// Get returns the rank with the given id.
func (s *Store) Get(id string) (*Rank, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ranks[id]
	return r, ok
}

// All returns every cached rank.
func (s *Store) All() []*Rank {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rank, 0, len(s.ranks))
	for _, r := range s.ranks {
		out = append(out, r)
	}
	return out
}

// Default returns the rank with IsDefault set. Falls back to the synthetic
// default id if the cache is somehow missing one; Load guarantees that does
// not happen in normal operation.
func (s *Store) Default() *Rank {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ranks {
		if r.IsDefault {
			return r
		}
	}
	return s.ranks[DefaultRankID]
}

// Put inserts or replaces a rank in the cache.
func (s *Store) Put(r *Rank) {
	s.mu.Lock()
	s.ranks[r.ID] = r
	s.mu.Unlock()
}

// Remove deletes a rank from the cache.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.ranks, id)
	s.mu.Unlock()
}

// Len returns the number of cached ranks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ranks)
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
